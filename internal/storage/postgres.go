package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/euan-turner/Connect4/internal/game"
)

const streakLookback = 50

// PostgresStore handles database operations
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dbURL, retrying while the database starts up,
// and creates the schema if needed.
func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	err = retry.Do(
		func() error { return pool.Ping(ctx) },
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Debug().Err(err).Uint("attempt", n+1).Msg("postgres-ping-retry")
		}),
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}

	log.Info().Str("host", config.ConnConfig.Host).Msg("postgres-connected")
	return store, nil
}

// initSchema creates the necessary tables
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS games (
			id UUID PRIMARY KEY,
			player1 VARCHAR(50) NOT NULL,
			player2 VARCHAR(50) NOT NULL,
			winner VARCHAR(50),
			is_forfeit BOOLEAN DEFAULT FALSE,
			is_draw BOOLEAN DEFAULT FALSE,
			duration_seconds INTEGER,
			move_count INTEGER,
			moves JSONB,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			ended_at TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_games_player1 ON games(player1);
		CREATE INDEX IF NOT EXISTS idx_games_player2 ON games(player2);
		CREATE INDEX IF NOT EXISTS idx_games_winner ON games(winner);
		CREATE INDEX IF NOT EXISTS idx_games_created_at ON games(created_at);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// SaveGame stores a completed game. Draws are stored with a NULL winner.
func (s *PostgresStore) SaveGame(ctx context.Context, g *game.Game) error {
	rec := NewCompletedGame(g)

	query := `
		INSERT INTO games (id, player1, player2, winner, is_forfeit, is_draw,
		                   duration_seconds, move_count, moves, created_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := s.pool.Exec(ctx, query,
		rec.ID,
		rec.Player1,
		rec.Player2,
		rec.winnerParam(),
		rec.IsForfeit,
		rec.IsDraw,
		rec.DurationSeconds,
		rec.MoveCount,
		rec.Moves,
		rec.CreatedAt,
		rec.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("saving game %s: %w", rec.ID, err)
	}
	return nil
}

// GetLeaderboard returns the top players by wins
func (s *PostgresStore) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	query := `
		WITH player_stats AS (
			SELECT
				username,
				COUNT(*) FILTER (WHERE winner = username) as wins,
				COUNT(*) FILTER (WHERE winner IS NULL) as draws,
				COUNT(*) FILTER (WHERE winner != username AND winner IS NOT NULL) as losses,
				COUNT(*) as games
			FROM (
				SELECT player1 as username, winner FROM games
				UNION ALL
				SELECT player2 as username, winner FROM games WHERE player2 != $2
			) subq
			GROUP BY username
		)
		SELECT
			username, wins, losses, draws, games,
			CASE WHEN games > 0 THEN ROUND(wins::numeric / games * 100, 1)::float8 ELSE 0 END as win_rate
		FROM player_stats
		ORDER BY wins DESC, win_rate DESC, username ASC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit, game.BotUsername)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	rank := 1
	for rows.Next() {
		var entry LeaderboardEntry
		err := rows.Scan(&entry.Username, &entry.Wins, &entry.Losses, &entry.Draws, &entry.Games, &entry.WinRate)
		if err != nil {
			return nil, err
		}
		entry.Rank = rank
		entries = append(entries, entry)
		rank++
	}

	return entries, rows.Err()
}

// GetPlayerStats returns detailed statistics for a player
func (s *PostgresStore) GetPlayerStats(ctx context.Context, username string) (*PlayerStats, error) {
	query := `
		WITH player_games AS (
			SELECT
				g.*,
				CASE
					WHEN g.player1 = $1 THEN g.player2
					ELSE g.player1
				END as opponent
			FROM games g
			WHERE g.player1 = $1 OR g.player2 = $1
		)
		SELECT
			COUNT(*) FILTER (WHERE winner = $1) as wins,
			COUNT(*) FILTER (WHERE winner IS NULL) as draws,
			COUNT(*) FILTER (WHERE winner != $1 AND winner IS NOT NULL) as losses,
			COUNT(*) as total_games,
			COUNT(*) FILTER (WHERE opponent = $2 AND winner = $1) as bot_wins,
			COUNT(*) FILTER (WHERE opponent = $2 AND winner = $2) as bot_losses,
			COALESCE(AVG(duration_seconds), 0)::float8 as avg_game_length
		FROM player_games
	`

	stats := PlayerStats{Username: username}
	err := s.pool.QueryRow(ctx, query, username, game.BotUsername).Scan(
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

	rows, err := s.pool.Query(ctx, `
		SELECT winner FROM games
		WHERE player1 = $1 OR player2 = $1
		ORDER BY ended_at DESC
		LIMIT $2
	`, username, streakLookback)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var winners []*string
	for rows.Next() {
		var w *string
		if err := rows.Scan(&w); err != nil {
			return nil, err
		}
		winners = append(winners, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	stats.CurrentStreak = currentStreak(username, winners)

	return &stats, nil
}

// GetAnalytics returns aggregated game analytics
func (s *PostgresStore) GetAnalytics(ctx context.Context) (*GameAnalytics, error) {
	today, thisHour := analyticsWindow(time.Now())

	query := `
		SELECT
			COUNT(*) as total_games,
			(SELECT COUNT(DISTINCT p) FROM (
				SELECT player1 AS p FROM games
				UNION SELECT player2 FROM games WHERE player2 != $3
			) players) as total_players,
			COALESCE(AVG(duration_seconds), 0)::float8 as avg_duration,
			COUNT(*) FILTER (WHERE player2 = $3) as bot_games,
			COUNT(*) FILTER (WHERE created_at >= $1) as games_today,
			COUNT(*) FILTER (WHERE created_at >= $2) as games_this_hour,
			(SELECT winner FROM games WHERE winner IS NOT NULL GROUP BY winner ORDER BY COUNT(*) DESC, winner ASC LIMIT 1) as most_frequent_winner
		FROM games
	`

	var analytics GameAnalytics
	var mostFrequentWinner *string

	err := s.pool.QueryRow(ctx, query, today, thisHour, game.BotUsername).Scan(
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

	if mostFrequentWinner != nil {
		analytics.MostFrequentWinner = *mostFrequentWinner
	}

	return &analytics, nil
}

// ClearAllGames deletes every stored game
func (s *PostgresStore) ClearAllGames(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM games`); err != nil {
		return fmt.Errorf("clearing games: %w", err)
	}
	return nil
}

// Close closes the database connection pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
