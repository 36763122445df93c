package domain

import "errors"

var (
	// ErrGameNotFound is returned when no quiz exists for a game PIN.
	ErrGameNotFound = errors.New("game not found")
	// ErrGameEnded is returned on join attempts against a finished quiz.
	ErrGameEnded = errors.New("game has ended")
	// ErrGameLocked is returned on late joins when the quiz disallows them.
	ErrGameLocked = errors.New("game already in progress")
	// ErrNicknameTaken is returned when the nickname already exists for the PIN.
	ErrNicknameTaken = errors.New("nickname already taken")
	// ErrPlayerNotFound is returned when a player id does not resolve.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrQuestionNotFound indicates a submitted question ID is not in the quiz.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidTransition is returned for a status change outside the table.
	ErrInvalidTransition = errors.New("invalid quiz status transition")
	// ErrQuestionIndexOutOfBounds is returned when the index leaves the quiz.
	ErrQuestionIndexOutOfBounds = errors.New("question index out of bounds")
)
