// Package memory is the in-process implementation of app.SessionStore,
// suitable for single-instance deployments and tests.
package memory

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"brainplay/internal/domain"
	"brainplay/internal/game"
	"github.com/google/uuid"
)

const pinAttempts = 5

// SessionStore keeps quizzes, players, and answers in process memory and
// fans mutations out to per-PIN subscriber channels. Score increments happen
// under the store lock, so concurrent submissions cannot lose an update.
type SessionStore struct {
	now func() time.Time
	rnd *rand.Rand

	mu          sync.RWMutex
	quizzes     map[string]*domain.Quiz          // by game PIN
	players     map[string]*domain.Player        // by player id
	pinPlayers  map[string][]string              // join order per PIN
	nicknames   map[string]map[string]string     // PIN -> nickname -> player id
	subscribers map[string]map[chan domain.Event]struct{}
}

func NewSessionStore() *SessionStore {
	return NewSessionStoreWithClock(time.Now)
}

// NewSessionStoreWithClock allows deterministic timestamps in tests.
func NewSessionStoreWithClock(now func() time.Time) *SessionStore {
	return &SessionStore{
		now:         now,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		quizzes:     make(map[string]*domain.Quiz),
		players:     make(map[string]*domain.Player),
		pinPlayers:  make(map[string][]string),
		nicknames:   make(map[string]map[string]string),
		subscribers: make(map[string]map[chan domain.Event]struct{}),
	}
}

func (s *SessionStore) CreateQuiz(_ context.Context, questions []domain.Question, allowLateJoin, penalizeWrongAnswers bool) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pin, err := s.generatePinLocked()
	if err != nil {
		return domain.Quiz{}, err
	}

	quiz := &domain.Quiz{
		ID:                   uuid.NewString(),
		GamePin:              pin,
		AdminID:              "admin_" + uuid.NewString()[:8],
		Questions:            questions,
		Status:               domain.StatusLobby,
		CurrentQuestionIndex: 0,
		CreatedAt:            s.now(),
		AllowLateJoin:        allowLateJoin,
		PenalizeWrongAnswers: penalizeWrongAnswers,
	}
	s.quizzes[pin] = quiz
	s.nicknames[pin] = make(map[string]string)
	s.broadcastQuizLocked(pin)
	return *quiz, nil
}

func (s *SessionStore) GetQuizByPin(_ context.Context, pin string) (domain.Quiz, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[pin]
	if !ok {
		return domain.Quiz{}, false, nil
	}
	return *quiz, true, nil
}

func (s *SessionStore) JoinGame(_ context.Context, pin string, draft domain.PlayerDraft) (domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	quiz, ok := s.quizzes[pin]
	if !ok {
		return domain.Player{}, domain.ErrGameNotFound
	}
	if quiz.Status == domain.StatusFinished {
		return domain.Player{}, domain.ErrGameEnded
	}
	if quiz.Status == domain.StatusInProgress && !quiz.AllowLateJoin {
		return domain.Player{}, domain.ErrGameLocked
	}
	if _, taken := s.nicknames[pin][draft.Nickname]; taken {
		return domain.Player{}, domain.ErrNicknameTaken
	}

	now := s.now()
	player := &domain.Player{
		ID:                uuid.NewString(),
		GamePin:           pin,
		Nickname:          draft.Nickname,
		Team:              draft.Team,
		School:            draft.School,
		Avatar:            draft.Avatar,
		Score:             0,
		AnsweredQuestions: []domain.PlayerAnswer{},
		JoinedAt:          now,
		LastActivityAt:    now,
	}
	s.players[player.ID] = player
	s.pinPlayers[pin] = append(s.pinPlayers[pin], player.ID)
	s.nicknames[pin][draft.Nickname] = player.ID
	s.broadcastLocked(pin, domain.Event{PlayersChanged: true})
	return clonePlayer(player), nil
}

func (s *SessionStore) GetPlayers(_ context.Context, pin string) ([]domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.pinPlayers[pin]
	players := make([]domain.Player, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.players[id]; ok {
			players = append(players, clonePlayer(p))
		}
	}
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Score > players[j].Score
	})
	return players, nil
}

func (s *SessionStore) SubmitAnswer(_ context.Context, playerID, questionID string, answer domain.Answer, timeTakenMs int64, correctAnswer domain.Answer) (domain.AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[playerID]
	if !ok {
		return domain.AnswerResult{}, domain.ErrPlayerNotFound
	}

	isCorrect := answer.Valid() && answer == correctAnswer
	points := game.Score(isCorrect, timeTakenMs)

	now := s.now()
	player.AnsweredQuestions = append(player.AnsweredQuestions, domain.PlayerAnswer{
		QuestionID:   questionID,
		Answer:       answer,
		IsCorrect:    isCorrect,
		TimeTakenMs:  timeTakenMs,
		PointsEarned: points,
		AnsweredAt:   now,
	})
	player.Score += points
	player.LastActivityAt = now

	s.broadcastLocked(player.GamePin, domain.Event{PlayersChanged: true})
	return domain.AnswerResult{IsCorrect: isCorrect, PointsEarned: points}, nil
}

func (s *SessionStore) GetPlayerAnswers(_ context.Context, playerID string) ([]domain.PlayerAnswer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	player, ok := s.players[playerID]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	answers := make([]domain.PlayerAnswer, len(player.AnsweredQuestions))
	copy(answers, player.AnsweredQuestions)
	sort.SliceStable(answers, func(i, j int) bool {
		return answers[i].AnsweredAt.Before(answers[j].AnsweredAt)
	})
	return answers, nil
}

func (s *SessionStore) UpdateQuizStatus(_ context.Context, pin string, status domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	quiz, ok := s.quizzes[pin]
	if !ok {
		return domain.ErrGameNotFound
	}
	if quiz.Status == status {
		return nil
	}
	if !quiz.Status.CanTransition(status) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, quiz.Status, status)
	}

	now := s.now()
	quiz.Status = status
	switch status {
	case domain.StatusInProgress:
		quiz.StartedAt = &now
	case domain.StatusFinished:
		quiz.EndedAt = &now
	case domain.StatusLobby:
		// restart flow: back to a clean lobby
		quiz.CurrentQuestionIndex = 0
		quiz.IsShowingResults = false
		quiz.StartedAt = nil
		quiz.EndedAt = nil
	}
	s.broadcastQuizLocked(pin)
	return nil
}

func (s *SessionStore) UpdateCurrentQuestion(_ context.Context, pin string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	quiz, ok := s.quizzes[pin]
	if !ok {
		return domain.ErrGameNotFound
	}
	if index < 0 || index >= len(quiz.Questions) {
		return fmt.Errorf("%w: %d of %d", domain.ErrQuestionIndexOutOfBounds, index, len(quiz.Questions))
	}
	quiz.CurrentQuestionIndex = index
	quiz.IsShowingResults = false
	s.broadcastQuizLocked(pin)
	return nil
}

func (s *SessionStore) SetShowingResults(_ context.Context, pin string, showing bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	quiz, ok := s.quizzes[pin]
	if !ok {
		// best-effort: log and keep the game moving
		log.Printf("set showing results: no quiz for pin %s", pin)
		return nil
	}
	quiz.IsShowingResults = showing
	s.broadcastQuizLocked(pin)
	return nil
}

// Subscribe registers a per-PIN event channel. The current quiz snapshot, if
// any, is delivered first so the subscriber starts from authoritative state.
func (s *SessionStore) Subscribe(_ context.Context, pin string) (<-chan domain.Event, func(), error) {
	ch := make(chan domain.Event, 8)

	s.mu.Lock()
	if s.subscribers[pin] == nil {
		s.subscribers[pin] = make(map[chan domain.Event]struct{})
	}
	s.subscribers[pin][ch] = struct{}{}
	var initial *domain.Quiz
	if quiz, ok := s.quizzes[pin]; ok {
		snapshot := *quiz
		initial = &snapshot
	}
	s.mu.Unlock()

	if initial != nil {
		ch <- domain.Event{Quiz: initial}
	}

	cancel := func() {
		s.mu.Lock()
		if subs, ok := s.subscribers[pin]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(s.subscribers, pin)
			}
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

func (s *SessionStore) broadcastQuizLocked(pin string) {
	quiz, ok := s.quizzes[pin]
	if !ok {
		return
	}
	snapshot := *quiz
	s.broadcastLocked(pin, domain.Event{Quiz: &snapshot})
}

func (s *SessionStore) broadcastLocked(pin string, event domain.Event) {
	for ch := range s.subscribers[pin] {
		select {
		case ch <- event:
		default:
			// drop the oldest pending event; each snapshot fully
			// replaces local state, so slow clients lose nothing
			// they cannot recover
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}

func (s *SessionStore) generatePinLocked() (string, error) {
	for i := 0; i < pinAttempts; i++ {
		pin := fmt.Sprintf("%06d", s.rnd.Intn(900000)+100000)
		if _, taken := s.quizzes[pin]; !taken {
			return pin, nil
		}
	}
	return "", fmt.Errorf("generate game pin: space exhausted after %d attempts", pinAttempts)
}

func clonePlayer(p *domain.Player) domain.Player {
	out := *p
	out.AnsweredQuestions = make([]domain.PlayerAnswer, len(p.AnsweredQuestions))
	copy(out.AnsweredQuestions, p.AnsweredQuestions)
	return out
}
