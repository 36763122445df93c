package game

import (
	"context"
	"log"
	"sync"
	"time"

	"brainplay/internal/domain"
)

// Phase is the local play phase of one connected client.
type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseQuestion Phase = "question-active"
	PhaseResults  Phase = "results-shown"
	PhaseFinished Phase = "finished"
)

const (
	// DefaultQuestionTime is the per-question answering budget.
	DefaultQuestionTime = 10 * time.Second
	// DefaultResultsTime is how long the results window holds before the
	// host advances.
	DefaultResultsTime = 10 * time.Second
)

// Advancer drives the shared game forward through the session store. Only
// the host-role machine calls it.
type Advancer interface {
	UpdateQuizStatus(ctx context.Context, pin string, status domain.Status) error
	UpdateCurrentQuestion(ctx context.Context, pin string, index int) error
	SetShowingResults(ctx context.Context, pin string, showing bool) error
}

// MachineConfig configures one client-side state machine.
type MachineConfig struct {
	QuestionTime time.Duration
	ResultsTime  time.Duration
	IsHost       bool
	Advancer     Advancer
	// OnPhase, when set, is invoked after every phase change, outside the
	// machine lock.
	OnPhase func(Phase)
}

// Machine tracks the play phase of a single connected client. Each client
// runs its own countdown on receiving a state transition; countdowns across
// clients drift by propagation latency, which is accepted.
type Machine struct {
	cfg MachineConfig

	mu             sync.Mutex
	closed         bool
	pin            string
	quiz           domain.Quiz
	haveQuiz       bool
	phase          Phase
	questionIndex  int
	hasAnswered    bool
	selectedAnswer domain.Answer
	timer          *time.Timer
}

// NewMachine builds a machine in the lobby phase.
func NewMachine(cfg MachineConfig) *Machine {
	if cfg.QuestionTime <= 0 {
		cfg.QuestionTime = DefaultQuestionTime
	}
	if cfg.ResultsTime <= 0 {
		cfg.ResultsTime = DefaultResultsTime
	}
	return &Machine{cfg: cfg, phase: PhaseLobby, questionIndex: -1}
}

// ApplyQuiz feeds an authoritative quiz snapshot into the machine. Snapshots
// replace all prior quiz state; an index change resets the selected answer,
// the answered flag, and the countdown unconditionally.
func (m *Machine) ApplyQuiz(quiz domain.Quiz) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	m.pin = quiz.GamePin
	prevPhase := m.phase
	newQuestion := false

	switch quiz.Status {
	case domain.StatusFinished:
		m.stopTimerLocked()
		m.phase = PhaseFinished
	case domain.StatusLobby:
		m.stopTimerLocked()
		m.phase = PhaseLobby
		m.questionIndex = -1
		m.hasAnswered = false
		m.selectedAnswer = domain.AnswerNone
	case domain.StatusInProgress:
		if !m.haveQuiz || quiz.CurrentQuestionIndex != m.questionIndex || m.phase == PhaseLobby {
			m.questionIndex = quiz.CurrentQuestionIndex
			m.hasAnswered = false
			m.selectedAnswer = domain.AnswerNone
			m.phase = PhaseQuestion
			m.resetTimerLocked(m.cfg.QuestionTime, m.questionExpired)
			newQuestion = true
		}
	}

	m.quiz = quiz
	m.haveQuiz = true
	phase := m.phase
	m.mu.Unlock()

	if (phase != prevPhase || newQuestion) && m.cfg.OnPhase != nil {
		m.cfg.OnPhase(phase)
	}
}

// MarkAnswered records the player's answer and forces the one-way transition
// into the results phase. It reports false when the answer window is already
// closed (answered or expired).
func (m *Machine) MarkAnswered(answer domain.Answer) bool {
	m.mu.Lock()
	if m.closed || m.phase != PhaseQuestion || m.hasAnswered {
		m.mu.Unlock()
		return false
	}
	m.hasAnswered = true
	m.selectedAnswer = answer
	m.enterResultsLocked()
	m.mu.Unlock()

	if m.cfg.OnPhase != nil {
		m.cfg.OnPhase(PhaseResults)
	}
	return true
}

// Phase returns the current play phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// HasAnswered reports whether the player already answered the current question.
func (m *Machine) HasAnswered() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasAnswered
}

// SelectedAnswer returns the answer picked for the current question, if any.
func (m *Machine) SelectedAnswer() domain.Answer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectedAnswer
}

// Close cancels any pending timer. A closed machine ignores further input;
// skipping this leaks timers that fire against stale state.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.stopTimerLocked()
}

func (m *Machine) questionExpired() {
	m.mu.Lock()
	if m.closed || m.phase != PhaseQuestion {
		m.mu.Unlock()
		return
	}
	m.enterResultsLocked()
	m.mu.Unlock()

	if m.cfg.OnPhase != nil {
		m.cfg.OnPhase(PhaseResults)
	}
}

func (m *Machine) enterResultsLocked() {
	m.phase = PhaseResults
	m.resetTimerLocked(m.cfg.ResultsTime, m.resultsElapsed)

	if m.cfg.IsHost && m.cfg.Advancer != nil {
		pin := m.pin
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			// best-effort: a failed flag update must not stall the game
			if err := m.cfg.Advancer.SetShowingResults(ctx, pin, true); err != nil {
				log.Printf("set showing results for %s: %v", pin, err)
			}
		}()
	}
}

func (m *Machine) resultsElapsed() {
	m.mu.Lock()
	if m.closed || m.phase != PhaseResults {
		m.mu.Unlock()
		return
	}
	isHost := m.cfg.IsHost && m.cfg.Advancer != nil
	isLast := m.quiz.IsLastQuestion()
	nextIndex := m.questionIndex + 1
	pin := m.pin
	m.mu.Unlock()

	// Only the host drives the next step; other clients wait for the
	// snapshot pushed through the sync layer.
	if !isHost {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if isLast {
		if err := m.cfg.Advancer.UpdateQuizStatus(ctx, pin, domain.StatusFinished); err != nil {
			log.Printf("finish game %s: %v", pin, err)
		}
		return
	}
	if err := m.cfg.Advancer.UpdateCurrentQuestion(ctx, pin, nextIndex); err != nil {
		log.Printf("advance game %s to question %d: %v", pin, nextIndex, err)
	}
}

func (m *Machine) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Machine) resetTimerLocked(d time.Duration, fn func()) {
	m.stopTimerLocked()
	m.timer = time.AfterFunc(d, fn)
}
