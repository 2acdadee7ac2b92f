package game

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"lukechampine.com/frand"
)

// DefaultDepth is the search depth used when none is configured.
const DefaultDepth = 5

// Difficulty names a preset search depth.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty accepts easy, medium or hard in any case.
func ParseDifficulty(s string) (Difficulty, bool) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, true
	}
	return "", false
}

// Depth returns the search depth for the difficulty.
func (d Difficulty) Depth() int {
	switch d {
	case DifficultyEasy:
		return 2
	case DifficultyMedium:
		return 4
	case DifficultyHard:
		return 7
	}
	return DefaultDepth
}

// BotSettings configures the machine player.
type BotSettings struct {
	Depth      int
	Timeout    time.Duration
	RandomTies bool
	Iterative  bool
	Weights    Weights
}

// DefaultBotSettings returns the settings used when nothing is configured
func DefaultBotSettings() BotSettings {
	return BotSettings{
		Depth:   DefaultDepth,
		Weights: DefaultWeights,
	}
}

// Bot represents the AI player
type Bot struct {
	mark     Mark
	settings BotSettings
}

// NewBot creates a new bot instance
func NewBot(mark Mark, settings BotSettings) *Bot {
	if settings.Depth < 1 {
		settings.Depth = DefaultDepth
	}
	if settings.Weights == (Weights{}) {
		settings.Weights = DefaultWeights
	}
	return &Bot{
		mark:     mark,
		settings: settings,
	}
}

// Mark returns the side the bot plays
func (bot *Bot) Mark() Mark {
	return bot.mark
}

// Settings returns the bot configuration
func (bot *Bot) Settings() BotSettings {
	return bot.settings
}

// GetBestMove searches board in place and returns the chosen move. Callers
// that share the board with other goroutines must pass a clone.
func (bot *Bot) GetBestMove(ctx context.Context, board *Board) (Result, error) {
	if bot.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, bot.settings.Timeout)
		defer cancel()
	}

	var ties TieBreaker = FirstTieBreaker{}
	if bot.settings.RandomTies {
		ties = RandomTieBreaker{}
	}
	searcher := NewSearcher(
		WithEvaluator(NewEvaluator(bot.settings.Weights)),
		WithTieBreaker(ties),
		WithIterativeDeepening(bot.settings.Iterative),
	)

	start := time.Now()
	res, err := searcher.FindBestMove(ctx, board, bot.mark, bot.settings.Depth)
	if err != nil {
		return Result{}, err
	}
	if !res.Complete {
		log.Warn().
			Int("depth", bot.settings.Depth).
			Int("reached", res.Depth).
			Dur("elapsed", time.Since(start)).
			Msg("bot search cut short, using best move so far")
	}
	return res, nil
}

// GetRandomValidMove returns a random valid column, or -1 on a full board
func GetRandomValidMove(board *Board) int {
	validCols := board.ValidMoves()
	if len(validCols) == 0 {
		return -1
	}
	return validCols[frand.Intn(len(validCols))]
}
