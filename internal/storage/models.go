package storage

import (
	"encoding/json"
	"time"

	"github.com/euan-turner/Connect4/internal/game"
)

// CompletedGame represents a finished game stored in the database
type CompletedGame struct {
	ID              string    `json:"id"`
	Player1         string    `json:"player1"`
	Player2         string    `json:"player2"`
	Winner          string    `json:"winner"`
	IsForfeit       bool      `json:"isForfeit"`
	IsDraw          bool      `json:"isDraw"`
	DurationSeconds int       `json:"durationSeconds"`
	MoveCount       int       `json:"moveCount"`
	Moves           string    `json:"moves"` // JSON string
	CreatedAt       time.Time `json:"createdAt"`
	EndedAt         time.Time `json:"endedAt"`
}

// NewCompletedGame flattens a finished game into its stored form
func NewCompletedGame(g *game.Game) CompletedGame {
	state := g.GetState()
	moves := g.MoveHistory()

	movesJSON, err := json.Marshal(moves)
	if err != nil {
		movesJSON = []byte("[]")
	}

	return CompletedGame{
		ID:              g.ID,
		Player1:         state.Player1,
		Player2:         state.Player2,
		Winner:          state.Winner,
		IsForfeit:       state.Result == string(game.ResultForfeit),
		IsDraw:          state.Result == string(game.ResultDraw),
		DurationSeconds: g.GetDuration(),
		MoveCount:       len(moves),
		Moves:           string(movesJSON),
		CreatedAt:       g.StartTime,
		EndedAt:         g.EndTime,
	}
}

// winnerParam maps "no winner" to SQL NULL
func (c CompletedGame) winnerParam() *string {
	if c.Winner == "" {
		return nil
	}
	w := c.Winner
	return &w
}

// LeaderboardEntry represents a player's ranking
type LeaderboardEntry struct {
	Rank     int     `json:"rank"`
	Username string  `json:"username"`
	Wins     int     `json:"wins"`
	Losses   int     `json:"losses"`
	Draws    int     `json:"draws"`
	Games    int     `json:"games"`
	WinRate  float64 `json:"winRate"`
}

// PlayerStats represents detailed player statistics
type PlayerStats struct {
	Username      string  `json:"username"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	Draws         int     `json:"draws"`
	TotalGames    int     `json:"totalGames"`
	WinRate       float64 `json:"winRate"`
	BotWins       int     `json:"botWins"`
	BotLosses     int     `json:"botLosses"`
	AvgGameLength float64 `json:"avgGameLength"`
	CurrentStreak int     `json:"currentStreak"`
}

// GameAnalytics represents aggregated game analytics
type GameAnalytics struct {
	TotalGames         int     `json:"totalGames"`
	TotalPlayers       int     `json:"totalPlayers"`
	AvgGameDuration    float64 `json:"avgGameDuration"`
	BotGamesPlayed     int     `json:"botGamesPlayed"`
	GamesToday         int     `json:"gamesToday"`
	GamesThisHour      int     `json:"gamesThisHour"`
	MostFrequentWinner string  `json:"mostFrequentWinner"`
}

// currentStreak counts consecutive wins for username from the newest game
// backwards. winners is ordered newest first; nil means a draw.
func currentStreak(username string, winners []*string) int {
	streak := 0
	for _, w := range winners {
		if w == nil || *w != username {
			break
		}
		streak++
	}
	return streak
}
