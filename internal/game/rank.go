package game

import (
	"sort"

	"brainplay/internal/domain"
)

// LeaderboardRanks assigns competition ranks to scores: each rank is one plus
// the number of strictly greater scores, ties share a rank, and the sequence
// skips by the tie-group size. The result is positionally aligned with the
// input, whatever its order.
func LeaderboardRanks(scores []int) []int {
	if len(scores) == 0 {
		return []int{}
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	ranks := make([]int, len(scores))
	currentRank := 1
	lastScore := scores[order[0]]
	for pos, idx := range order {
		if scores[idx] != lastScore {
			currentRank = pos + 1
			lastScore = scores[idx]
		}
		ranks[idx] = currentRank
	}
	return ranks
}

// BuildLeaderboard derives display entries from the current player set,
// sorted by descending score with competition ranks and per-player accuracy.
func BuildLeaderboard(players []domain.Player) []domain.LeaderboardEntry {
	sorted := make([]domain.Player, len(players))
	copy(sorted, players)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	scores := make([]int, len(sorted))
	for i, p := range sorted {
		scores[i] = p.Score
	}
	ranks := LeaderboardRanks(scores)

	entries := make([]domain.LeaderboardEntry, len(sorted))
	for i, p := range sorted {
		correct := 0
		for _, a := range p.AnsweredQuestions {
			if a.IsCorrect {
				correct++
			}
		}
		total := len(p.AnsweredQuestions)
		accuracy := 0.0
		if total > 0 {
			accuracy = float64(correct) / float64(total) * 100
		}
		entries[i] = domain.LeaderboardEntry{
			PlayerID:       p.ID,
			Nickname:       p.Nickname,
			Team:           p.Team,
			Avatar:         p.Avatar,
			Score:          p.Score,
			CorrectAnswers: correct,
			TotalQuestions: total,
			Accuracy:       accuracy,
			Rank:           ranks[i],
		}
	}
	return entries
}
