package matchmaker

import (
	"os"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/euan-turner/Connect4/internal/game"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	os.Exit(m.Run())
}

func receive(t *testing.T, ch <-chan *game.Game) *game.Game {
	t.Helper()
	select {
	case g, ok := <-ch:
		if !ok {
			t.Fatal("match channel closed")
		}
		return g
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a match")
	}
	return nil
}

func TestTwoPlayersAreMatched(t *testing.T) {
	is := is.New(t)
	m := NewMatchmaker(WithTimeout(time.Minute))

	started := make(chan *game.Game, 1)
	m.SetOnGameStart(func(g *game.Game) { started <- g })

	aliceCh, err := m.JoinQueue("alice")
	is.NoErr(err)
	is.Equal(m.GetWaitingCount(), 1)

	bobCh, err := m.JoinQueue("bob")
	is.NoErr(err)

	g1 := receive(t, aliceCh)
	g2 := receive(t, bobCh)
	is.Equal(g1, g2)
	is.Equal(g1.Player1.Username, "alice")
	is.Equal(g1.Player2.Username, "bob")
	is.True(!g1.IsVsBot())
	is.Equal(receive(t, started), g1)

	is.Equal(m.GetWaitingCount(), 0)
	is.Equal(m.GetActiveGameCount(), 1)
	is.Equal(m.GetGameByPlayer("bob"), g1)
	is.Equal(m.GetGame(g1.ID), g1)
}

func TestLonePlayerGetsBot(t *testing.T) {
	is := is.New(t)
	m := NewMatchmaker(
		WithTimeout(20*time.Millisecond),
		WithGameOptions(game.WithBotSettings(game.BotSettings{Depth: 2})),
	)

	ch, err := m.JoinQueue("alice")
	is.NoErr(err)

	g := receive(t, ch)
	is.True(g.IsVsBot())
	is.Equal(g.Player2.Username, game.BotUsername)
	is.Equal(g.Bot.Settings().Depth, 2)
	is.Equal(m.GetWaitingCount(), 0)
	is.Equal(m.GetGameByPlayer(game.BotUsername), (*game.Game)(nil))
}

func TestRejoinReturnsActiveGame(t *testing.T) {
	is := is.New(t)
	m := NewMatchmaker(WithTimeout(time.Minute))

	_, err := m.JoinQueue("alice")
	is.NoErr(err)
	bobCh, err := m.JoinQueue("bob")
	is.NoErr(err)
	g := receive(t, bobCh)

	again, err := m.JoinQueue("alice")
	is.NoErr(err)
	is.Equal(receive(t, again), g)

	m.RemoveGame(g.ID)
	is.Equal(m.GetActiveGameCount(), 0)
	is.Equal(m.GetGameByPlayer("alice"), (*game.Game)(nil))
}

func TestLeaveQueueClosesChannel(t *testing.T) {
	is := is.New(t)
	m := NewMatchmaker(WithTimeout(30 * time.Millisecond))

	ch, err := m.JoinQueue("alice")
	is.NoErr(err)
	m.LeaveQueue("alice")
	is.Equal(m.GetWaitingCount(), 0)

	_, ok := <-ch
	is.True(!ok)

	// The timeout must not resurrect the player.
	time.Sleep(60 * time.Millisecond)
	is.Equal(m.GetActiveGameCount(), 0)
}

func TestDuplicateJoinKeepsOneEntry(t *testing.T) {
	is := is.New(t)
	m := NewMatchmaker(WithTimeout(time.Minute))

	first, err := m.JoinQueue("alice")
	is.NoErr(err)
	second, err := m.JoinQueue("alice")
	is.NoErr(err)
	is.Equal(first, second)
	is.Equal(m.GetWaitingCount(), 1)
}
