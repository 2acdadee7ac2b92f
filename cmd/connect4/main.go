package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/euan-turner/Connect4/internal/console"
	"github.com/euan-turner/Connect4/internal/game"
)

var (
	depth      = flag.Int("depth", game.DefaultDepth, "engine search depth in plies")
	difficulty = flag.String("difficulty", "", "easy, medium or hard; overrides -depth")
	timeout    = flag.Duration("timeout", 0, "per-move search limit, 0 for none")
	randomTies = flag.Bool("random-ties", false, "break equal scores at random")
	verbose    = flag.Bool("v", false, "debug logging")
)

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

// lineReader turns Ctrl-C on an empty line into end of input
type lineReader struct {
	*readline.Instance
}

func (l lineReader) Readline() (string, error) {
	for {
		line, err := l.Instance.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				return "", context.Canceled
			}
			continue
		}
		return line, err
	}
}

func main() {
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	settings := game.DefaultBotSettings()
	settings.Depth = *depth
	settings.Timeout = *timeout
	settings.RandomTies = *randomTies
	if *difficulty != "" {
		d, ok := game.ParseDifficulty(*difficulty)
		if !ok {
			log.Fatal().Str("difficulty", *difficulty).Msg("unknown difficulty")
		}
		settings.Depth = d.Depth()
	}
	if settings.Depth < 1 {
		log.Fatal().Int("depth", settings.Depth).Msg("depth must be at least 1")
	}

	l, err := readline.NewEx(&readline.Config{
		InterruptPrompt:     "^C",
		EOFPrompt:           "exit",
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("readline")
	}
	defer l.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	session := console.NewSession(lineReader{l}, l.Stdout(), console.WithBotSettings(settings))
	if err := session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("game aborted")
		os.Exit(1)
	}
}
