package domain

import "time"

// Answer is a single answer letter. The zero value means "no answer given".
type Answer string

const (
	AnswerA    Answer = "A"
	AnswerB    Answer = "B"
	AnswerC    Answer = "C"
	AnswerD    Answer = "D"
	AnswerNone Answer = ""
)

// Valid reports whether a is one of the four answer letters.
func (a Answer) Valid() bool {
	switch a {
	case AnswerA, AnswerB, AnswerC, AnswerD:
		return true
	}
	return false
}

// Question is an immutable multiple-choice question. IDs are unique within a quiz.
type Question struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	OptionA       string `json:"optionA"`
	OptionB       string `json:"optionB"`
	OptionC       string `json:"optionC"`
	OptionD       string `json:"optionD"`
	CorrectAnswer Answer `json:"correctAnswer"`
}

// Option returns the text of the option selected by the given answer letter.
func (q Question) Option(a Answer) string {
	switch a {
	case AnswerA:
		return q.OptionA
	case AnswerB:
		return q.OptionB
	case AnswerC:
		return q.OptionC
	case AnswerD:
		return q.OptionD
	}
	return ""
}

// Quiz is one hosting session, identified by its game PIN while active.
type Quiz struct {
	ID                   string     `json:"id"`
	GamePin              string     `json:"gamePin"`
	AdminID              string     `json:"adminId"`
	Questions            []Question `json:"questions"`
	Status               Status     `json:"status"`
	CurrentQuestionIndex int        `json:"currentQuestionIndex"`
	IsShowingResults     bool       `json:"isShowingResults"`
	CreatedAt            time.Time  `json:"createdAt"`
	StartedAt            *time.Time `json:"startedAt,omitempty"`
	EndedAt              *time.Time `json:"endedAt,omitempty"`
	AllowLateJoin        bool       `json:"allowLateJoin"`
	PenalizeWrongAnswers bool       `json:"penalizeWrongAnswers"`
}

// IsLastQuestion reports whether the current index is the final question.
func (q Quiz) IsLastQuestion() bool {
	return q.CurrentQuestionIndex == len(q.Questions)-1
}

// CurrentQuestion returns the question at the current index.
func (q Quiz) CurrentQuestion() (Question, bool) {
	if q.CurrentQuestionIndex < 0 || q.CurrentQuestionIndex >= len(q.Questions) {
		return Question{}, false
	}
	return q.Questions[q.CurrentQuestionIndex], true
}

// QuestionByID looks a question up within the quiz.
func (q Quiz) QuestionByID(id string) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// PlayerDraft carries the caller-supplied fields of a joining player.
type PlayerDraft struct {
	Nickname string `json:"nickname"`
	Team     string `json:"team,omitempty"`
	School   string `json:"school,omitempty"`
	Avatar   Avatar `json:"avatar"`
}

// Player is a joined participant. Score may go negative.
type Player struct {
	ID                string         `json:"id"`
	GamePin           string         `json:"gamePin"`
	Nickname          string         `json:"nickname"`
	Team              string         `json:"team,omitempty"`
	School            string         `json:"school,omitempty"`
	Avatar            Avatar         `json:"avatar"`
	Score             int            `json:"score"`
	AnsweredQuestions []PlayerAnswer `json:"answeredQuestions"`
	JoinedAt          time.Time      `json:"joinedAt"`
	LastActivityAt    time.Time      `json:"lastActivityAt"`
}

// PlayerAnswer is one append-only answer record for a player.
type PlayerAnswer struct {
	QuestionID   string    `json:"questionId"`
	Answer       Answer    `json:"answer"`
	IsCorrect    bool      `json:"isCorrect"`
	TimeTakenMs  int64     `json:"timeTakenMs"`
	PointsEarned int       `json:"pointsEarned"`
	AnsweredAt   time.Time `json:"answeredAt"`
}

// AnswerResult is what a submission returns to the answering client.
type AnswerResult struct {
	IsCorrect    bool `json:"isCorrect"`
	PointsEarned int  `json:"pointsEarned"`
}

// LeaderboardEntry is derived from the current player set and never stored.
type LeaderboardEntry struct {
	PlayerID       string  `json:"playerId"`
	Nickname       string  `json:"nickname"`
	Team           string  `json:"team,omitempty"`
	Avatar         Avatar  `json:"avatar"`
	Score          int     `json:"score"`
	CorrectAnswers int     `json:"correctAnswers"`
	TotalQuestions int     `json:"totalQuestions"`
	Accuracy       float64 `json:"accuracy"`
	Rank           int     `json:"rank"`
}

// Event is one realtime notification for a game PIN. Exactly one of the two
// views is meaningful: a Quiz snapshot replaces all local quiz state, while
// PlayersChanged tells the client to refetch the full player list.
type Event struct {
	Quiz           *Quiz `json:"quiz,omitempty"`
	PlayersChanged bool  `json:"playersChanged,omitempty"`
}
