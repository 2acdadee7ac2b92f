package selfplay

import (
	"context"
	"os"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/euan-turner/Connect4/internal/game"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	os.Exit(m.Run())
}

func TestRunPlaysEveryGameToTheEnd(t *testing.T) {
	is := is.New(t)
	cfg := Config{
		Games:   6,
		Workers: 3,
		Opening: 2,
		First:   game.BotSettings{Depth: 2, RandomTies: true},
		Second:  game.BotSettings{Depth: 2, RandomTies: true},
	}

	records, err := Run(context.Background(), cfg)
	is.NoErr(err)
	is.Equal(len(records), cfg.Games)

	for i, rec := range records {
		is.Equal(rec.Index, i)
		board, err := game.BoardFromMoves(rec.Moves)
		is.NoErr(err)
		is.True(board.IsTerminal())

		winner, _ := board.Winner()
		is.Equal(winner, rec.Winner)
	}

	s := Summarize(records)
	is.Equal(s.Games, cfg.Games)
	is.Equal(s.FirstWins+s.SecondWins+s.Draws, cfg.Games)
	is.True(s.AvgLength >= 7)
}

func TestRunRejectsBadConfig(t *testing.T) {
	is := is.New(t)
	_, err := Run(context.Background(), Config{Games: -1})
	is.True(err != nil)
	_, err = Run(context.Background(), Config{Games: 1, Opening: MaxOpening + 1})
	is.True(err != nil)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, Config{Games: 3, Workers: 1, First: game.BotSettings{Depth: 2}, Second: game.BotSettings{Depth: 2}})
	is.True(err != nil)
}

func TestSummarize(t *testing.T) {
	is := is.New(t)
	records := []Record{
		{Winner: game.First, Moves: make([]int, 7)},
		{Winner: game.First, Moves: make([]int, 9)},
		{Winner: game.Second, Moves: make([]int, 10)},
		{Winner: game.Empty, Moves: make([]int, 42)},
	}
	s := Summarize(records)
	is.Equal(s, Summary{Games: 4, FirstWins: 2, SecondWins: 1, Draws: 1, AvgLength: 17})
	is.Equal(s.String(), "games=4 first=2 second=1 draws=1 avg_length=17.0")

	is.Equal(Summarize(nil), Summary{})
}
