// Package console runs a human-versus-engine game over a line-oriented
// terminal.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"lukechampine.com/frand"

	"github.com/euan-turner/Connect4/internal/game"
)

const (
	columnPrompt = "Enter column (1-7): "
	replayPrompt = "Play again? (y/n): "
)

// LineReader supplies one line of input per call. *readline.Instance
// satisfies it.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

// Engine chooses moves for the machine side
type Engine interface {
	GetBestMove(ctx context.Context, board *game.Board) (game.Result, error)
}

// EngineFactory builds the engine that will play mark
type EngineFactory func(mark game.Mark) Engine

// Coin reports whether the human moves first
type Coin func() bool

// RandomCoin is a fair coin
func RandomCoin() bool {
	return frand.Intn(2) == 0
}

// Outcome is how a finished game ended. Winner is Empty for a draw.
type Outcome struct {
	Winner game.Mark
	Human  game.Mark
}

// Draw reports whether nobody won
func (o Outcome) Draw() bool {
	return o.Winner == game.Empty
}

// Option configures a Session
type Option func(*Session)

// WithCoin replaces the first-mover coin
func WithCoin(c Coin) Option {
	return func(s *Session) {
		s.coin = c
	}
}

// WithEngine replaces the engine factory
func WithEngine(f EngineFactory) Option {
	return func(s *Session) {
		s.engine = f
	}
}

// WithBotSettings configures the default engine
func WithBotSettings(settings game.BotSettings) Option {
	return func(s *Session) {
		s.engine = func(mark game.Mark) Engine {
			return game.NewBot(mark, settings)
		}
	}
}

// Session plays games between a human on in/out and the engine
type Session struct {
	in     LineReader
	out    io.Writer
	coin   Coin
	engine EngineFactory
}

// NewSession creates a console session
func NewSession(in LineReader, out io.Writer, opts ...Option) *Session {
	s := &Session{
		in:   in,
		out:  out,
		coin: RandomCoin,
	}
	WithBotSettings(game.DefaultBotSettings())(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run plays games until the human declines a replay or input ends. The end
// of input is a normal exit; any other read error is returned.
func (s *Session) Run(ctx context.Context) error {
	for {
		if _, err := s.Play(ctx); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		again, err := s.askReplay()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if !again {
			return nil
		}
	}
}

// Play runs a single game from the empty board
func (s *Session) Play(ctx context.Context) (Outcome, error) {
	human := game.Second
	if s.coin() {
		human = game.First
	}
	return s.play(ctx, game.NewBoard(), human)
}

func (s *Session) play(ctx context.Context, board *game.Board, human game.Mark) (Outcome, error) {
	order := "second"
	if human == game.First {
		order = "first"
	}
	fmt.Fprintf(s.out, "You play %s and move %s\n", Symbol(human), order)

	engine := s.engine(human.Opponent())
	turn := board.SideToMove()

	for {
		if err := Render(s.out, board); err != nil {
			return Outcome{}, err
		}

		var column int
		if turn == human {
			col, err := s.readColumn(board)
			if err != nil {
				return Outcome{}, err
			}
			column = col
		} else {
			res, err := engine.GetBestMove(ctx, board)
			if err != nil {
				return Outcome{}, err
			}
			column = res.Column
			fmt.Fprintf(s.out, "Move: %d, Score: %d\n", column+1, res.Score)
		}

		if _, err := board.MakeMove(column, turn); err != nil {
			return Outcome{}, err
		}

		if board.IsWon(turn) {
			fmt.Fprintln(s.out, "Game is won")
			if turn == human {
				fmt.Fprintln(s.out, "You win!")
			} else {
				fmt.Fprintln(s.out, "The engine wins.")
			}
			if err := Render(s.out, board); err != nil {
				return Outcome{}, err
			}
			log.Debug().Str("winner", turn.String()).Int("moves", board.MoveCount()).Msg("console-game-won")
			return Outcome{Winner: turn, Human: human}, nil
		}
		if board.IsFull() {
			fmt.Fprintln(s.out, "Game is drawn")
			if err := Render(s.out, board); err != nil {
				return Outcome{}, err
			}
			log.Debug().Msg("console-game-drawn")
			return Outcome{Human: human}, nil
		}

		turn = turn.Opponent()
	}
}

// readColumn prompts until the human names a column that can take a disc.
// The returned column is 0-based.
func (s *Session) readColumn(board *game.Board) (int, error) {
	s.in.SetPrompt(columnPrompt)
	for {
		line, err := s.in.Readline()
		if err != nil {
			return -1, err
		}

		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || n < 1 || n > game.Columns {
			fmt.Fprintln(s.out, "Invalid choice")
			continue
		}
		if !board.IsColumnValid(n - 1) {
			fmt.Fprintln(s.out, "Column full")
			continue
		}
		return n - 1, nil
	}
}

func (s *Session) askReplay() (bool, error) {
	s.in.SetPrompt(replayPrompt)
	line, err := s.in.Readline()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
