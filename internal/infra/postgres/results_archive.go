// Package postgres persists finished games for later review. The live game
// never reads from here; Postgres is the cold archive behind the hot
// session store.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"brainplay/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ResultsArchive writes final standings of finished games as JSONB rows.
type ResultsArchive struct {
	pool *pgxpool.Pool
}

func NewResultsArchive(pool *pgxpool.Pool) *ResultsArchive {
	return &ResultsArchive{pool: pool}
}

// Archive stores the quiz record and its final leaderboard. Re-archiving the
// same game (finish, restart, finish again) overwrites the previous row.
func (a *ResultsArchive) Archive(ctx context.Context, quiz domain.Quiz, entries []domain.LeaderboardEntry) error {
	quizData, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	standings, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal standings: %w", err)
	}

	_, err = a.pool.Exec(ctx, `
		INSERT INTO game_results (game_id, game_pin, quiz, standings, player_count, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (game_id) DO UPDATE SET
			quiz = EXCLUDED.quiz,
			standings = EXCLUDED.standings,
			player_count = EXCLUDED.player_count,
			ended_at = EXCLUDED.ended_at`,
		quiz.ID, quiz.GamePin, quizData, standings, len(entries), quiz.EndedAt)
	if err != nil {
		return fmt.Errorf("archive game %s: %w", quiz.GamePin, err)
	}
	return nil
}

// LoadStandings returns the archived leaderboard for a game id.
func (a *ResultsArchive) LoadStandings(ctx context.Context, gameID string) ([]domain.LeaderboardEntry, error) {
	var raw []byte
	err := a.pool.QueryRow(ctx, `SELECT standings FROM game_results WHERE game_id=$1`, gameID).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("load standings: %w", err)
	}
	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("unmarshal standings: %w", err)
	}
	return entries, nil
}
