package storage

import (
	"context"
	"time"

	"github.com/euan-turner/Connect4/internal/game"
)

// DefaultLeaderboardLimit is used when a caller asks for zero or fewer rows
const DefaultLeaderboardLimit = 10

// Store persists finished games and answers the statistics queries
type Store interface {
	SaveGame(ctx context.Context, g *game.Game) error
	GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	GetPlayerStats(ctx context.Context, username string) (*PlayerStats, error)
	GetAnalytics(ctx context.Context) (*GameAnalytics, error)
	ClearAllGames(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)

// analyticsWindow returns the start of the current UTC day and hour
func analyticsWindow(now time.Time) (today, thisHour time.Time) {
	now = now.UTC()
	return now.Truncate(24 * time.Hour), now.Truncate(time.Hour)
}
