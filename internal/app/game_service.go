package app

import (
	"context"
	"io"
	"log"
	"strings"

	"brainplay/internal/csvimport"
	"brainplay/internal/domain"
	"brainplay/internal/game"
	"golang.org/x/sync/singleflight"
)

// SessionStore is the durable record of quizzes, players, and answers, plus
// the realtime change feed for a game PIN. Implementations live under
// internal/infra (in-memory, Redis).
type SessionStore interface {
	CreateQuiz(ctx context.Context, questions []domain.Question, allowLateJoin, penalizeWrongAnswers bool) (domain.Quiz, error)
	// GetQuizByPin reports ok=false on a miss; a miss is not an error.
	GetQuizByPin(ctx context.Context, pin string) (domain.Quiz, bool, error)
	JoinGame(ctx context.Context, pin string, draft domain.PlayerDraft) (domain.Player, error)
	// GetPlayers returns players with full answer history, ordered by
	// descending score. The order is a convenience; ranking goes through
	// the ranking engine.
	GetPlayers(ctx context.Context, pin string) ([]domain.Player, error)
	SubmitAnswer(ctx context.Context, playerID, questionID string, answer domain.Answer, timeTakenMs int64, correctAnswer domain.Answer) (domain.AnswerResult, error)
	GetPlayerAnswers(ctx context.Context, playerID string) ([]domain.PlayerAnswer, error)
	UpdateQuizStatus(ctx context.Context, pin string, status domain.Status) error
	UpdateCurrentQuestion(ctx context.Context, pin string, index int) error
	SetShowingResults(ctx context.Context, pin string, showing bool) error
	// Subscribe delivers quiz snapshots and players-changed notifications
	// for the PIN. The caller must invoke cancel to avoid leaks; cancel is
	// idempotent.
	Subscribe(ctx context.Context, pin string) (<-chan domain.Event, func(), error)
}

// Archiver persists the final standing of a finished game. Optional.
type Archiver interface {
	Archive(ctx context.Context, quiz domain.Quiz, entries []domain.LeaderboardEntry) error
}

// ValidationError carries the accumulated CSV upload problems.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// GameService contains the quiz hosting and play use cases.
type GameService struct {
	store    SessionStore
	archiver Archiver
	players  singleflight.Group
}

func NewGameService(store SessionStore, archiver Archiver) *GameService {
	return &GameService{store: store, archiver: archiver}
}

// CreateGameFromCSV parses and validates an uploaded question bank and opens
// a lobby for it. Validation failures come back as *ValidationError.
func (s *GameService) CreateGameFromCSV(ctx context.Context, upload io.Reader, allowLateJoin, penalizeWrongAnswers bool) (domain.Quiz, error) {
	rows, err := csvimport.Parse(upload)
	if err != nil {
		return domain.Quiz{}, err
	}
	if result := csvimport.Validate(rows); !result.Valid {
		return domain.Quiz{}, &ValidationError{Problems: result.Errors}
	}
	return s.store.CreateQuiz(ctx, csvimport.ConvertRows(rows), allowLateJoin, penalizeWrongAnswers)
}

// CreateGame opens a lobby for an already-built question list.
func (s *GameService) CreateGame(ctx context.Context, questions []domain.Question, allowLateJoin, penalizeWrongAnswers bool) (domain.Quiz, error) {
	return s.store.CreateQuiz(ctx, questions, allowLateJoin, penalizeWrongAnswers)
}

// GetQuizByPin looks up the quiz for a PIN; ok=false on a miss.
func (s *GameService) GetQuizByPin(ctx context.Context, pin string) (domain.Quiz, bool, error) {
	return s.store.GetQuizByPin(ctx, pin)
}

// Join registers a new player in the lobby for the PIN.
func (s *GameService) Join(ctx context.Context, pin string, draft domain.PlayerDraft) (domain.Player, error) {
	draft.Avatar = draft.Avatar.Normalize()
	return s.store.JoinGame(ctx, pin, draft)
}

// Players fetches the full player list for a PIN. Every players-changed
// broadcast makes all subscribed clients refetch at once, so concurrent
// fetches for the same PIN are coalesced.
func (s *GameService) Players(ctx context.Context, pin string) ([]domain.Player, error) {
	result, err, _ := s.players.Do(pin, func() (interface{}, error) {
		return s.store.GetPlayers(ctx, pin)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Player), nil
}

// SubmitAnswer scores a player's answer against the quiz's current content
// and persists it. An unrecognized answer letter is recorded as no answer
// and scored as wrong.
func (s *GameService) SubmitAnswer(ctx context.Context, pin, playerID, questionID string, answer domain.Answer, timeTakenMs int64) (domain.AnswerResult, error) {
	quiz, ok, err := s.store.GetQuizByPin(ctx, pin)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if !ok {
		return domain.AnswerResult{}, domain.ErrGameNotFound
	}
	question, ok := quiz.QuestionByID(questionID)
	if !ok {
		return domain.AnswerResult{}, domain.ErrQuestionNotFound
	}
	if !answer.Valid() {
		answer = domain.AnswerNone
	}
	return s.store.SubmitAnswer(ctx, playerID, questionID, answer, timeTakenMs, question.CorrectAnswer)
}

// PlayerAnswers returns a player's answer history in submission order.
func (s *GameService) PlayerAnswers(ctx context.Context, playerID string) ([]domain.PlayerAnswer, error) {
	return s.store.GetPlayerAnswers(ctx, playerID)
}

// Leaderboard derives the ranked standings for a PIN.
func (s *GameService) Leaderboard(ctx context.Context, pin string) ([]domain.LeaderboardEntry, error) {
	players, err := s.Players(ctx, pin)
	if err != nil {
		return nil, err
	}
	return game.BuildLeaderboard(players), nil
}

// UpdateQuizStatus moves the quiz through its status table. Entering
// finished also archives the final standings when an archiver is wired.
func (s *GameService) UpdateQuizStatus(ctx context.Context, pin string, status domain.Status) error {
	if err := s.store.UpdateQuizStatus(ctx, pin, status); err != nil {
		return err
	}
	if status == domain.StatusFinished {
		s.archiveFinished(ctx, pin)
	}
	return nil
}

// UpdateCurrentQuestion advances the shared question index.
func (s *GameService) UpdateCurrentQuestion(ctx context.Context, pin string, index int) error {
	return s.store.UpdateCurrentQuestion(ctx, pin, index)
}

// SetShowingResults toggles the shared results flag. Best-effort.
func (s *GameService) SetShowingResults(ctx context.Context, pin string, showing bool) error {
	return s.store.SetShowingResults(ctx, pin, showing)
}

// Subscribe returns the realtime event feed for a PIN.
func (s *GameService) Subscribe(ctx context.Context, pin string) (<-chan domain.Event, func(), error) {
	return s.store.Subscribe(ctx, pin)
}

func (s *GameService) archiveFinished(ctx context.Context, pin string) {
	if s.archiver == nil {
		return
	}
	quiz, ok, err := s.store.GetQuizByPin(ctx, pin)
	if err != nil || !ok {
		log.Printf("archive %s: quiz fetch failed: %v", pin, err)
		return
	}
	entries, err := s.Leaderboard(ctx, pin)
	if err != nil {
		log.Printf("archive %s: leaderboard failed: %v", pin, err)
		return
	}
	// archiving is best-effort; a failed write must not fail the finish
	if err := s.archiver.Archive(ctx, quiz, entries); err != nil {
		log.Printf("archive %s: %v", pin, err)
	}
}

var _ game.Advancer = (*GameService)(nil)
