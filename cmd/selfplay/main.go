package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/euan-turner/Connect4/internal/game"
	"github.com/euan-turner/Connect4/internal/selfplay"
)

var (
	games       = flag.Int("games", 20, "number of games to play")
	workers     = flag.Int("workers", runtime.NumCPU(), "games played concurrently")
	opening     = flag.Int("opening", 2, "random plies before the engines take over")
	firstDepth  = flag.Int("first-depth", game.DefaultDepth, "search depth of the side moving first")
	secondDepth = flag.Int("second-depth", game.DefaultDepth, "search depth of the side moving second")
	timeout     = flag.Duration("timeout", 0, "per-move search limit, 0 for none")
	verbose     = flag.Bool("v", false, "debug logging")
)

func main() {
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	settings := func(depth int) game.BotSettings {
		s := game.DefaultBotSettings()
		s.Depth = depth
		s.Timeout = *timeout
		s.RandomTies = true
		return s
	}

	start := time.Now()
	records, err := selfplay.Run(ctx, selfplay.Config{
		Games:   *games,
		Workers: *workers,
		Opening: *opening,
		First:   settings(*firstDepth),
		Second:  settings(*secondDepth),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("selfplay failed")
	}

	summary := selfplay.Summarize(records)
	log.Info().
		Int("games", summary.Games).
		Int("first_wins", summary.FirstWins).
		Int("second_wins", summary.SecondWins).
		Int("draws", summary.Draws).
		Dur("elapsed", time.Since(start)).
		Msg("selfplay-finished")
	fmt.Println(summary)
}
