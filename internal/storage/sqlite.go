package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/euan-turner/Connect4/internal/game"
)

// SQLiteStore keeps games in an embedded SQLite database. It answers the
// same queries as PostgresStore and needs no external service.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path. ":memory:" gives a
// private in-memory database.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite database: %w", err)
	}
	// One connection: SQLite serialises writers anyway, and an in-memory
	// database only exists on the connection that created it.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error opening sqlite database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}

	log.Info().Str("path", path).Msg("sqlite-opened")
	return store, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
		PRAGMA busy_timeout = 5000;

		CREATE TABLE IF NOT EXISTS games (
			id TEXT PRIMARY KEY,
			player1 TEXT NOT NULL,
			player2 TEXT NOT NULL,
			winner TEXT,
			is_forfeit INTEGER NOT NULL DEFAULT 0,
			is_draw INTEGER NOT NULL DEFAULT 0,
			duration_seconds INTEGER,
			move_count INTEGER,
			moves TEXT,
			created_at INTEGER NOT NULL,
			ended_at INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_games_player1 ON games(player1);
		CREATE INDEX IF NOT EXISTS idx_games_player2 ON games(player2);
		CREATE INDEX IF NOT EXISTS idx_games_winner ON games(winner);
		CREATE INDEX IF NOT EXISTS idx_games_created_at ON games(created_at);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveGame stores a completed game. Draws are stored with a NULL winner.
func (s *SQLiteStore) SaveGame(ctx context.Context, g *game.Game) error {
	rec := NewCompletedGame(g)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO games (id, player1, player2, winner, is_forfeit, is_draw,
		                   duration_seconds, move_count, moves, created_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`,
		rec.ID,
		rec.Player1,
		rec.Player2,
		rec.winnerParam(),
		rec.IsForfeit,
		rec.IsDraw,
		rec.DurationSeconds,
		rec.MoveCount,
		rec.Moves,
		rec.CreatedAt.Unix(),
		rec.EndedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving game %s: %w", rec.ID, err)
	}
	return nil
}

// GetLeaderboard returns the top players by wins
func (s *SQLiteStore) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		WITH player_stats AS (
			SELECT
				username,
				SUM(CASE WHEN winner = username THEN 1 ELSE 0 END) AS wins,
				SUM(CASE WHEN winner IS NULL THEN 1 ELSE 0 END) AS draws,
				SUM(CASE WHEN winner != username AND winner IS NOT NULL THEN 1 ELSE 0 END) AS losses,
				COUNT(*) AS games
			FROM (
				SELECT player1 AS username, winner FROM games
				UNION ALL
				SELECT player2 AS username, winner FROM games WHERE player2 != ?
			) subq
			GROUP BY username
		)
		SELECT
			username, wins, losses, draws, games,
			CASE WHEN games > 0 THEN ROUND(CAST(wins AS REAL) / games * 100, 1) ELSE 0.0 END AS win_rate
		FROM player_stats
		ORDER BY wins DESC, win_rate DESC, username ASC
		LIMIT ?
	`, game.BotUsername, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	rank := 1
	for rows.Next() {
		var entry LeaderboardEntry
		if err := rows.Scan(&entry.Username, &entry.Wins, &entry.Losses, &entry.Draws, &entry.Games, &entry.WinRate); err != nil {
			return nil, err
		}
		entry.Rank = rank
		entries = append(entries, entry)
		rank++
	}
	return entries, rows.Err()
}

// GetPlayerStats returns detailed statistics for a player
func (s *SQLiteStore) GetPlayerStats(ctx context.Context, username string) (*PlayerStats, error) {
	stats := PlayerStats{Username: username}
	err := s.db.QueryRowContext(ctx, `
		WITH player_games AS (
			SELECT
				winner,
				duration_seconds,
				CASE WHEN player1 = ?1 THEN player2 ELSE player1 END AS opponent
			FROM games
			WHERE player1 = ?1 OR player2 = ?1
		)
		SELECT
			COALESCE(SUM(CASE WHEN winner = ?1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN winner IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN winner != ?1 AND winner IS NOT NULL THEN 1 ELSE 0 END), 0),
			COUNT(*),
			COALESCE(SUM(CASE WHEN opponent = ?2 AND winner = ?1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN opponent = ?2 AND winner = ?2 THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(duration_seconds), 0.0)
		FROM player_games
	`, username, game.BotUsername).Scan(
		&stats.Wins,
		&stats.Draws,
		&stats.Losses,
		&stats.TotalGames,
		&stats.BotWins,
		&stats.BotLosses,
		&stats.AvgGameLength,
	)
	if err != nil {
		return nil, err
	}

	if stats.TotalGames > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.TotalGames) * 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT winner FROM games
		WHERE player1 = ?1 OR player2 = ?1
		ORDER BY ended_at DESC, rowid DESC
		LIMIT ?2
	`, username, streakLookback)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var winners []*string
	for rows.Next() {
		var w sql.NullString
		if err := rows.Scan(&w); err != nil {
			return nil, err
		}
		if w.Valid {
			winners = append(winners, &w.String)
		} else {
			winners = append(winners, nil)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	stats.CurrentStreak = currentStreak(username, winners)

	return &stats, nil
}

// GetAnalytics returns aggregated game analytics
func (s *SQLiteStore) GetAnalytics(ctx context.Context) (*GameAnalytics, error) {
	return s.analyticsAt(ctx, time.Now())
}

func (s *SQLiteStore) analyticsAt(ctx context.Context, now time.Time) (*GameAnalytics, error) {
	today, thisHour := analyticsWindow(now)

	var analytics GameAnalytics
	var mostFrequentWinner sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			(SELECT COUNT(*) FROM (
				SELECT player1 AS p FROM games
				UNION SELECT player2 FROM games WHERE player2 != ?3
			)),
			COALESCE(AVG(duration_seconds), 0.0),
			COALESCE(SUM(CASE WHEN player2 = ?3 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN created_at >= ?1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN created_at >= ?2 THEN 1 ELSE 0 END), 0),
			(SELECT winner FROM games WHERE winner IS NOT NULL GROUP BY winner ORDER BY COUNT(*) DESC, winner ASC LIMIT 1)
		FROM games
	`, today.Unix(), thisHour.Unix(), game.BotUsername).Scan(
		&analytics.TotalGames,
		&analytics.TotalPlayers,
		&analytics.AvgGameDuration,
		&analytics.BotGamesPlayed,
		&analytics.GamesToday,
		&analytics.GamesThisHour,
		&mostFrequentWinner,
	)
	if err != nil {
		return nil, err
	}

	analytics.MostFrequentWinner = mostFrequentWinner.String
	return &analytics, nil
}

// ClearAllGames deletes every stored game
func (s *SQLiteStore) ClearAllGames(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM games`); err != nil {
		return fmt.Errorf("clearing games: %w", err)
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
