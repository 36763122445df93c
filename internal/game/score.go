// Package game holds the pure play rules: scoring, ranking, and the
// per-client play-phase state machine.
package game

import "math"

const (
	basePoints   = 100
	wrongPenalty = -20
	maxBonus     = 50.0
	// bonusWindowMs is where the speed bonus linearly decays to zero.
	bonusWindowMs = 5000
)

// Score computes the points earned for a single submission. Wrong answers
// cost a fixed 20 points regardless of timing. Correct answers earn 100 plus
// a speed bonus that decays linearly from 50 at 0ms to 0 at 5000ms; the sum
// is truncated toward zero. Timings arrive from the client, so negative
// values are clamped to 0 and never raise the bonus past its cap.
func Score(isCorrect bool, timeTakenMs int64) int {
	if !isCorrect {
		return wrongPenalty
	}
	if timeTakenMs < 0 {
		timeTakenMs = 0
	}
	bonus := 0.0
	if timeTakenMs < bonusWindowMs {
		bonus = math.Max(0, maxBonus-float64(timeTakenMs)/100)
	}
	return int(math.Floor(basePoints + bonus))
}
