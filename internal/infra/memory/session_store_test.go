package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"brainplay/internal/domain"
)

func questions() []domain.Question {
	return []domain.Question{
		{ID: "q_0_aaaa1111", Text: "2+2?", OptionA: "3", OptionB: "4", OptionC: "5", OptionD: "6", CorrectAnswer: domain.AnswerB},
		{ID: "q_1_bbbb2222", Text: "Capital of France?", OptionA: "Paris", OptionB: "Rome", OptionC: "Oslo", OptionD: "Bern", CorrectAnswer: domain.AnswerA},
	}
}

func TestCreateQuizGeneratesSixDigitPin(t *testing.T) {
	store := NewSessionStore()

	quiz, err := store.CreateQuiz(context.Background(), questions(), true, false)
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	if len(quiz.GamePin) != 6 {
		t.Fatalf("pin = %q, want 6 digits", quiz.GamePin)
	}
	if quiz.GamePin[0] == '0' {
		t.Fatalf("pin must not start with zero: %q", quiz.GamePin)
	}
	if quiz.Status != domain.StatusLobby || quiz.CurrentQuestionIndex != 0 {
		t.Fatalf("unexpected initial quiz: %+v", quiz)
	}
}

func TestJoinGameNicknamePerPin(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	first, _ := store.CreateQuiz(ctx, questions(), true, false)
	second, _ := store.CreateQuiz(ctx, questions(), true, false)

	if _, err := store.JoinGame(ctx, first.GamePin, domain.PlayerDraft{Nickname: "ada"}); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := store.JoinGame(ctx, first.GamePin, domain.PlayerDraft{Nickname: "ada"}); !errors.Is(err, domain.ErrNicknameTaken) {
		t.Fatalf("expected ErrNicknameTaken, got %v", err)
	}
	if _, err := store.JoinGame(ctx, second.GamePin, domain.PlayerDraft{Nickname: "ada"}); err != nil {
		t.Fatalf("same nickname in another game should be allowed: %v", err)
	}
}

func TestConcurrentSubmissionsKeepScoreConsistent(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	quiz, _ := store.CreateQuiz(ctx, questions(), true, false)
	player, err := store.JoinGame(ctx, quiz.GamePin, domain.PlayerDraft{Nickname: "ada"})
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			// 5000ms and beyond earns no speed bonus, so each is worth 100
			if _, err := store.SubmitAnswer(ctx, player.ID, "q_0_aaaa1111", domain.AnswerB, 5000, domain.AnswerB); err != nil {
				t.Errorf("submit: %v", err)
			}
		}()
	}
	wg.Wait()

	players, err := store.GetPlayers(ctx, quiz.GamePin)
	if err != nil {
		t.Fatalf("get players: %v", err)
	}
	if players[0].Score != n*100 {
		t.Fatalf("score = %d, want %d", players[0].Score, n*100)
	}
	if len(players[0].AnsweredQuestions) != n {
		t.Fatalf("answers = %d, want %d", len(players[0].AnsweredQuestions), n)
	}
}

func TestGetPlayersSortedByScore(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	quiz, _ := store.CreateQuiz(ctx, questions(), true, false)
	slow, _ := store.JoinGame(ctx, quiz.GamePin, domain.PlayerDraft{Nickname: "slow"})
	fast, _ := store.JoinGame(ctx, quiz.GamePin, domain.PlayerDraft{Nickname: "fast"})

	store.SubmitAnswer(ctx, slow.ID, "q_0_aaaa1111", domain.AnswerB, 4900, domain.AnswerB)
	store.SubmitAnswer(ctx, fast.ID, "q_0_aaaa1111", domain.AnswerB, 100, domain.AnswerB)

	players, err := store.GetPlayers(ctx, quiz.GamePin)
	if err != nil {
		t.Fatalf("get players: %v", err)
	}
	if players[0].Nickname != "fast" || players[1].Nickname != "slow" {
		t.Fatalf("unexpected order: %q, %q", players[0].Nickname, players[1].Nickname)
	}
}

func TestStatusTransitionTable(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	quiz, _ := store.CreateQuiz(ctx, questions(), true, false)
	pin := quiz.GamePin

	if err := store.UpdateQuizStatus(ctx, pin, domain.StatusFinished); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("lobby->finished must fail, got %v", err)
	}
	if err := store.UpdateQuizStatus(ctx, pin, domain.StatusInProgress); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := store.UpdateQuizStatus(ctx, pin, domain.StatusInProgress); err != nil {
		t.Fatalf("same-status update must be a no-op, got %v", err)
	}
	if err := store.UpdateQuizStatus(ctx, pin, domain.StatusLobby); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("in_progress->lobby must fail, got %v", err)
	}
	if err := store.UpdateQuizStatus(ctx, pin, domain.StatusFinished); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if err := store.UpdateQuizStatus(ctx, pin, domain.StatusLobby); err != nil {
		t.Fatalf("restart: %v", err)
	}
	got, _, _ := store.GetQuizByPin(ctx, pin)
	if got.StartedAt != nil || got.EndedAt != nil || got.IsShowingResults {
		t.Fatalf("restart must reset progress: %+v", got)
	}

	if err := store.UpdateQuizStatus(ctx, "000000", domain.StatusInProgress); !errors.Is(err, domain.ErrGameNotFound) {
		t.Fatalf("expected ErrGameNotFound, got %v", err)
	}
}

func TestUpdateCurrentQuestionGuardsBounds(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	quiz, _ := store.CreateQuiz(ctx, questions(), true, false)

	if err := store.UpdateCurrentQuestion(ctx, quiz.GamePin, len(questions())); !errors.Is(err, domain.ErrQuestionIndexOutOfBounds) {
		t.Fatalf("expected bounds error, got %v", err)
	}
	store.SetShowingResults(ctx, quiz.GamePin, true)
	if err := store.UpdateCurrentQuestion(ctx, quiz.GamePin, 1); err != nil {
		t.Fatalf("advance: %v", err)
	}
	got, _, _ := store.GetQuizByPin(ctx, quiz.GamePin)
	if got.CurrentQuestionIndex != 1 || got.IsShowingResults {
		t.Fatalf("advance must clear results flag: %+v", got)
	}
}

func TestSubscribeSnapshotAndSlowConsumer(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	quiz, _ := store.CreateQuiz(ctx, questions(), true, false)

	events, cancel, err := store.Subscribe(ctx, quiz.GamePin)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	select {
	case ev := <-events:
		if ev.Quiz == nil || ev.Quiz.GamePin != quiz.GamePin {
			t.Fatalf("expected initial snapshot, got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("no initial snapshot")
	}

	// flood a subscriber that never reads; broadcasts must not block
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			store.SetShowingResults(ctx, quiz.GamePin, i%2 == 0)
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("broadcast blocked on a slow subscriber")
	}

	cancel()
	cancel() // idempotent
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("channel must be closed after cancel")
		}
	}
}

func TestClockInjection(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewSessionStoreWithClock(func() time.Time { return fixed })
	ctx := context.Background()

	quiz, _ := store.CreateQuiz(ctx, questions(), true, false)
	if !quiz.CreatedAt.Equal(fixed) {
		t.Fatalf("CreatedAt = %v, want %v", quiz.CreatedAt, fixed)
	}
	store.UpdateQuizStatus(ctx, quiz.GamePin, domain.StatusInProgress)
	got, _, _ := store.GetQuizByPin(ctx, quiz.GamePin)
	if got.StartedAt == nil || !got.StartedAt.Equal(fixed) {
		t.Fatalf("StartedAt = %v, want %v", got.StartedAt, fixed)
	}
}
