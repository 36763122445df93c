package csvimport

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"brainplay/internal/domain"
)

// WriteResults writes the final leaderboard as a CSV download: one row per
// entry, ranked order preserved from the input.
func WriteResults(w io.Writer, entries []domain.LeaderboardEntry) error {
	writer := csv.NewWriter(w)
	header := []string{"Rank", "Nickname", "Team", "Score", "Correct Answers", "Questions Answered", "Accuracy"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write results header: %w", err)
	}

	for _, e := range entries {
		record := []string{
			strconv.Itoa(e.Rank),
			e.Nickname,
			e.Team,
			strconv.Itoa(e.Score),
			strconv.Itoa(e.CorrectAnswers),
			strconv.Itoa(e.TotalQuestions),
			fmt.Sprintf("%.1f%%", e.Accuracy),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write results row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// FormatMillis renders a duration in milliseconds for display: "Ns" below a
// minute, "m:ss" above.
func FormatMillis(ms int64) string {
	seconds := ms / 1000
	minutes := seconds / 60
	if minutes > 0 {
		return fmt.Sprintf("%d:%02d", minutes, seconds%60)
	}
	return fmt.Sprintf("%ds", seconds)
}
