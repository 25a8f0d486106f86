package results

import (
	"context"
	"database/sql"
	"fmt"
)

// Result is one won game.
type Result struct {
	GameID    string `json:"gameId"`
	Round     int    `json:"round"`
	PlayerID  string `json:"playerId"`  // user id, or anonymous cookie id for guests
	Username  string `json:"username"`  // empty for guests
	Dimension int    `json:"dimension"`
	Moves     int    `json:"moves"`
	Seconds   int    `json:"seconds"`
	DailyDate string `json:"dailyDate"` // YYYY-MM-DD for daily boards, "" otherwise
}

// Row is one leaderboard line.
type Row struct {
	PlayerID  string `json:"playerId"`
	Username  string `json:"username"`
	Moves     int    `json:"moves"`
	Seconds   int    `json:"seconds"`
	CreatedAt string `json:"createdAt"`
}

// Store persists results in SQLite.
type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Insert records a result. A second insert for the same game round is ignored.
func (s *Store) Insert(ctx context.Context, r Result) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO results
			(game_id, round, player_id, username, dimension, moves, seconds, daily_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.GameID, r.Round, r.PlayerID, r.Username, r.Dimension, r.Moves, r.Seconds, r.DailyDate,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// AlreadyPlayedDaily reports whether playerID has a recorded win for date.
func (s *Store) AlreadyPlayedDaily(ctx context.Context, playerID, date string) (bool, error) {
	var cnt int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM results WHERE player_id=? AND daily_date=?`,
		playerID, date,
	).Scan(&cnt)
	return cnt > 0, err
}

// Leaderboard returns the best results for a board size, fastest first, then
// fewest moves, then earliest. A non-empty daily restricts it to that day's board.
func (s *Store) Leaderboard(ctx context.Context, dimension int, daily string, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT player_id, username, moves, seconds, created_at
		FROM results
		WHERE dimension=?`
	args := []any{dimension}
	if daily != "" {
		query += ` AND daily_date=?`
		args = append(args, daily)
	}
	query += ` ORDER BY seconds ASC, moves ASC, created_at ASC, id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Row, 0, limit)
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.PlayerID, &r.Username, &r.Moves, &r.Seconds, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
