// Package selfplay pits two engine configurations against each other.
package selfplay

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/euan-turner/Connect4/internal/game"
)

// MaxOpening is the longest random opening allowed. No side can have four
// discs before the seventh ply.
const MaxOpening = 6

// Config describes a self-play run
type Config struct {
	Games   int
	Workers int
	// Opening is the number of random plies played before the engines take
	// over, so that deterministic engines still produce varied games.
	Opening int
	First   game.BotSettings
	Second  game.BotSettings
}

// Record is one finished game. Winner is Empty for a draw.
type Record struct {
	Index    int
	Winner   game.Mark
	Moves    []int
	Duration time.Duration
}

// Summary tallies a run
type Summary struct {
	Games      int
	FirstWins  int
	SecondWins int
	Draws      int
	AvgLength  float64
}

func (s Summary) String() string {
	return fmt.Sprintf("games=%d first=%d second=%d draws=%d avg_length=%.1f",
		s.Games, s.FirstWins, s.SecondWins, s.Draws, s.AvgLength)
}

// Run plays cfg.Games games on cfg.Workers goroutines. Records come back in
// game order. The first failing game cancels the rest.
func Run(ctx context.Context, cfg Config) ([]Record, error) {
	if cfg.Games < 0 {
		return nil, fmt.Errorf("games must not be negative, got %d", cfg.Games)
	}
	if cfg.Opening < 0 || cfg.Opening > MaxOpening {
		return nil, fmt.Errorf("opening must be between 0 and %d, got %d", MaxOpening, cfg.Opening)
	}
	workers := max(cfg.Workers, 1)

	records := make([]Record, cfg.Games)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range cfg.Games {
		g.Go(func() error {
			rec, err := PlayOne(ctx, cfg.First, cfg.Second, cfg.Opening)
			if err != nil {
				return fmt.Errorf("game %d: %w", i, err)
			}
			rec.Index = i
			records[i] = rec
			log.Debug().
				Int("game", i).
				Str("winner", rec.Winner.String()).
				Int("moves", len(rec.Moves)).
				Dur("elapsed", rec.Duration).
				Msg("selfplay-game-finished")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// PlayOne plays a single game: opening random plies, then the two engines
// alternate until the board is decided.
func PlayOne(ctx context.Context, first, second game.BotSettings, opening int) (Record, error) {
	start := time.Now()
	board := game.NewBoard()
	bots := map[game.Mark]*game.Bot{
		game.First:  game.NewBot(game.First, first),
		game.Second: game.NewBot(game.Second, second),
	}

	var moves []int
	for range opening {
		col := game.GetRandomValidMove(board)
		if _, err := board.MakeMove(col, board.SideToMove()); err != nil {
			return Record{}, err
		}
		moves = append(moves, col)
	}

	for !board.IsTerminal() {
		if err := ctx.Err(); err != nil {
			return Record{}, err
		}
		mark := board.SideToMove()
		res, err := bots[mark].GetBestMove(ctx, board)
		if err != nil {
			return Record{}, err
		}
		if _, err := board.MakeMove(res.Column, mark); err != nil {
			return Record{}, err
		}
		moves = append(moves, res.Column)
	}

	winner, _ := board.Winner()
	return Record{Winner: winner, Moves: moves, Duration: time.Since(start)}, nil
}

// Summarize tallies the outcome of every record
func Summarize(records []Record) Summary {
	s := Summary{
		Games: len(records),
		FirstWins: lo.CountBy(records, func(r Record) bool {
			return r.Winner == game.First
		}),
		SecondWins: lo.CountBy(records, func(r Record) bool {
			return r.Winner == game.Second
		}),
		Draws: lo.CountBy(records, func(r Record) bool {
			return r.Winner == game.Empty
		}),
	}
	if len(records) > 0 {
		total := lo.SumBy(records, func(r Record) int { return len(r.Moves) })
		s.AvgLength = float64(total) / float64(len(records))
	}
	return s
}
