package domain

// Status is the lifecycle state of a quiz.
type Status string

const (
	StatusLobby      Status = "lobby"
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
)

// Valid reports whether s is one of the three quiz statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusLobby, StatusInProgress, StatusFinished:
		return true
	}
	return false
}

// transitions is the allowed status table. finished -> lobby supports the
// restart flow; setting the current status again is an idempotent no-op.
var transitions = map[Status][]Status{
	StatusLobby:      {StatusInProgress},
	StatusInProgress: {StatusFinished},
	StatusFinished:   {StatusLobby},
}

// CanTransition reports whether a quiz may move from s to next.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
