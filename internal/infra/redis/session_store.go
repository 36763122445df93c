// Package redis is the Redis-backed implementation of app.SessionStore.
// Records are stored as JSON values and hashes per game PIN; realtime events
// travel over a pub/sub channel per PIN, so multiple service instances fan
// out the same mutations.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"brainplay/internal/domain"
	"brainplay/internal/game"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const pinAttempts = 5

// SessionStore layout:
//
//	game:{pin}:quiz       JSON quiz record
//	game:{pin}:players    hash playerID -> JSON profile (without score/answers)
//	game:{pin}:scores     hash playerID -> integer score (HIncrBy, atomic)
//	game:{pin}:nicknames  hash nickname -> playerID (HSetNX reservation)
//	game:{pin}:events     pub/sub channel carrying domain.Event JSON
//	player:{id}:game      back-reference playerID -> pin
//	player:{id}:answers   list of JSON answer records, submission order
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client: client,
		ttl:    ttl,
		now:    time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *SessionStore) CreateQuiz(ctx context.Context, questions []domain.Question, allowLateJoin, penalizeWrongAnswers bool) (domain.Quiz, error) {
	quiz := domain.Quiz{
		ID:                   uuid.NewString(),
		AdminID:              "admin_" + uuid.NewString()[:8],
		Questions:            questions,
		Status:               domain.StatusLobby,
		CurrentQuestionIndex: 0,
		CreatedAt:            s.now(),
		AllowLateJoin:        allowLateJoin,
		PenalizeWrongAnswers: penalizeWrongAnswers,
	}

	for i := 0; i < pinAttempts; i++ {
		quiz.GamePin = s.randomPin()
		data, err := json.Marshal(quiz)
		if err != nil {
			return domain.Quiz{}, fmt.Errorf("marshal quiz: %w", err)
		}
		ok, err := s.client.SetNX(ctx, s.quizKey(quiz.GamePin), data, s.ttl).Result()
		if err != nil {
			return domain.Quiz{}, fmt.Errorf("persist quiz: %w", err)
		}
		if ok {
			s.publish(ctx, quiz.GamePin, domain.Event{Quiz: &quiz})
			return quiz, nil
		}
	}
	return domain.Quiz{}, fmt.Errorf("generate game pin: space exhausted after %d attempts", pinAttempts)
}

func (s *SessionStore) GetQuizByPin(ctx context.Context, pin string) (domain.Quiz, bool, error) {
	data, err := s.client.Get(ctx, s.quizKey(pin)).Bytes()
	if err == redis.Nil {
		return domain.Quiz{}, false, nil
	}
	if err != nil {
		return domain.Quiz{}, false, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(data, &quiz); err != nil {
		return domain.Quiz{}, false, fmt.Errorf("unmarshal quiz: %w", err)
	}
	return quiz, true, nil
}

func (s *SessionStore) JoinGame(ctx context.Context, pin string, draft domain.PlayerDraft) (domain.Player, error) {
	quiz, ok, err := s.GetQuizByPin(ctx, pin)
	if err != nil {
		return domain.Player{}, err
	}
	if !ok {
		return domain.Player{}, domain.ErrGameNotFound
	}
	if quiz.Status == domain.StatusFinished {
		return domain.Player{}, domain.ErrGameEnded
	}
	if quiz.Status == domain.StatusInProgress && !quiz.AllowLateJoin {
		return domain.Player{}, domain.ErrGameLocked
	}

	now := s.now()
	player := domain.Player{
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

	// the reservation is the uniqueness check; no separate read, no race
	reserved, err := s.client.HSetNX(ctx, s.nicknamesKey(pin), draft.Nickname, player.ID).Result()
	if err != nil {
		return domain.Player{}, fmt.Errorf("reserve nickname: %w", err)
	}
	if !reserved {
		return domain.Player{}, domain.ErrNicknameTaken
	}

	profile, err := json.Marshal(player)
	if err != nil {
		return domain.Player{}, fmt.Errorf("marshal player: %w", err)
	}
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, s.playersKey(pin), player.ID, profile)
	pipe.HSet(ctx, s.scoresKey(pin), player.ID, 0)
	pipe.Set(ctx, s.playerPinKey(player.ID), pin, s.ttl)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.playersKey(pin), s.ttl)
		pipe.Expire(ctx, s.scoresKey(pin), s.ttl)
		pipe.Expire(ctx, s.nicknamesKey(pin), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.Player{}, fmt.Errorf("persist player: %w", err)
	}

	s.publish(ctx, pin, domain.Event{PlayersChanged: true})
	return player, nil
}

func (s *SessionStore) GetPlayers(ctx context.Context, pin string) ([]domain.Player, error) {
	profiles, err := s.client.HGetAll(ctx, s.playersKey(pin)).Result()
	if err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}
	scores, err := s.client.HGetAll(ctx, s.scoresKey(pin)).Result()
	if err != nil {
		return nil, fmt.Errorf("load scores: %w", err)
	}

	players := make([]domain.Player, 0, len(profiles))
	for id, raw := range profiles {
		var player domain.Player
		if err := json.Unmarshal([]byte(raw), &player); err != nil {
			return nil, fmt.Errorf("unmarshal player %s: %w", id, err)
		}
		if scoreStr, ok := scores[id]; ok {
			if score, err := strconv.Atoi(scoreStr); err == nil {
				player.Score = score
			}
		}
		answers, err := s.GetPlayerAnswers(ctx, id)
		if err != nil {
			return nil, err
		}
		player.AnsweredQuestions = answers
		players = append(players, player)
	}

	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Score > players[j].Score
	})
	return players, nil
}

func (s *SessionStore) SubmitAnswer(ctx context.Context, playerID, questionID string, answer domain.Answer, timeTakenMs int64, correctAnswer domain.Answer) (domain.AnswerResult, error) {
	pin, err := s.client.Get(ctx, s.playerPinKey(playerID)).Result()
	if err == redis.Nil {
		return domain.AnswerResult{}, domain.ErrPlayerNotFound
	}
	if err != nil {
		return domain.AnswerResult{}, fmt.Errorf("resolve player game: %w", err)
	}

	isCorrect := answer.Valid() && answer == correctAnswer
	points := game.Score(isCorrect, timeTakenMs)
	record := domain.PlayerAnswer{
		QuestionID:   questionID,
		Answer:       answer,
		IsCorrect:    isCorrect,
		TimeTakenMs:  timeTakenMs,
		PointsEarned: points,
		AnsweredAt:   s.now(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return domain.AnswerResult{}, fmt.Errorf("marshal answer: %w", err)
	}
	if err := s.client.RPush(ctx, s.answersKey(playerID), data).Err(); err != nil {
		return domain.AnswerResult{}, fmt.Errorf("persist answer: %w", err)
	}
	if s.ttl > 0 {
		s.client.Expire(ctx, s.answersKey(playerID), s.ttl)
	}

	// HIncrBy applies the delta atomically on the server, so two racing
	// submissions for the same player cannot lose an update. The result is
	// still returned when the increment fails; the caller must confirm
	// separately before trusting the durable total.
	if err := s.client.HIncrBy(ctx, s.scoresKey(pin), playerID, int64(points)).Err(); err != nil {
		log.Printf("increment score for player %s: %v", playerID, err)
	}

	s.publish(ctx, pin, domain.Event{PlayersChanged: true})
	return domain.AnswerResult{IsCorrect: isCorrect, PointsEarned: points}, nil
}

func (s *SessionStore) GetPlayerAnswers(ctx context.Context, playerID string) ([]domain.PlayerAnswer, error) {
	raw, err := s.client.LRange(ctx, s.answersKey(playerID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	answers := make([]domain.PlayerAnswer, 0, len(raw))
	for _, item := range raw {
		var answer domain.PlayerAnswer
		if err := json.Unmarshal([]byte(item), &answer); err != nil {
			return nil, fmt.Errorf("unmarshal answer: %w", err)
		}
		answers = append(answers, answer)
	}
	return answers, nil
}

func (s *SessionStore) UpdateQuizStatus(ctx context.Context, pin string, status domain.Status) error {
	quiz, ok, err := s.GetQuizByPin(ctx, pin)
	if err != nil {
		return err
	}
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
		quiz.CurrentQuestionIndex = 0
		quiz.IsShowingResults = false
		quiz.StartedAt = nil
		quiz.EndedAt = nil
	}
	return s.saveQuiz(ctx, quiz)
}

func (s *SessionStore) UpdateCurrentQuestion(ctx context.Context, pin string, index int) error {
	quiz, ok, err := s.GetQuizByPin(ctx, pin)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrGameNotFound
	}
	if index < 0 || index >= len(quiz.Questions) {
		return fmt.Errorf("%w: %d of %d", domain.ErrQuestionIndexOutOfBounds, index, len(quiz.Questions))
	}
	quiz.CurrentQuestionIndex = index
	quiz.IsShowingResults = false
	return s.saveQuiz(ctx, quiz)
}

func (s *SessionStore) SetShowingResults(ctx context.Context, pin string, showing bool) error {
	quiz, ok, err := s.GetQuizByPin(ctx, pin)
	if err != nil || !ok {
		// best-effort: log and keep the game moving
		log.Printf("set showing results for %s: %v (found=%v)", pin, err, ok)
		return nil
	}
	quiz.IsShowingResults = showing
	if err := s.saveQuiz(ctx, quiz); err != nil {
		log.Printf("set showing results for %s: %v", pin, err)
	}
	return nil
}

// Subscribe bridges the PIN's pub/sub channel onto a domain.Event channel.
// The current quiz snapshot, if any, is delivered first. Cancel is idempotent.
func (s *SessionStore) Subscribe(ctx context.Context, pin string) (<-chan domain.Event, func(), error) {
	pubsub := s.client.Subscribe(ctx, s.eventsKey(pin))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe to game %s: %w", pin, err)
	}

	ch := make(chan domain.Event, 8)
	if quiz, ok, err := s.GetQuizByPin(ctx, pin); err == nil && ok {
		ch <- domain.Event{Quiz: &quiz}
	}

	go func() {
		defer close(ch)
		for msg := range pubsub.Channel() {
			var event domain.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("decode event for %s: %v", pin, err)
				continue
			}
			select {
			case ch <- event:
			default:
				// drop the oldest pending event; snapshots fully
				// replace local state
				select {
				case <-ch:
				default:
				}
				ch <- event
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			_ = pubsub.Close()
		})
	}
	return ch, cancel, nil
}

func (s *SessionStore) saveQuiz(ctx context.Context, quiz domain.Quiz) error {
	data, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	if err := s.client.Set(ctx, s.quizKey(quiz.GamePin), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("persist quiz: %w", err)
	}
	s.publish(ctx, quiz.GamePin, domain.Event{Quiz: &quiz})
	return nil
}

func (s *SessionStore) publish(ctx context.Context, pin string, event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("marshal event for %s: %v", pin, err)
		return
	}
	if err := s.client.Publish(ctx, s.eventsKey(pin), data).Err(); err != nil {
		log.Printf("publish event for %s: %v", pin, err)
	}
}

func (s *SessionStore) randomPin() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("%06d", s.rnd.Intn(900000)+100000)
}

func (s *SessionStore) quizKey(pin string) string      { return "game:" + pin + ":quiz" }
func (s *SessionStore) playersKey(pin string) string   { return "game:" + pin + ":players" }
func (s *SessionStore) scoresKey(pin string) string    { return "game:" + pin + ":scores" }
func (s *SessionStore) nicknamesKey(pin string) string { return "game:" + pin + ":nicknames" }
func (s *SessionStore) eventsKey(pin string) string    { return "game:" + pin + ":events" }
func (s *SessionStore) playerPinKey(id string) string  { return "player:" + id + ":game" }
func (s *SessionStore) answersKey(id string) string    { return "player:" + id + ":answers" }
