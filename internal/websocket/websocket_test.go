package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/euan-turner/Connect4/internal/game"
	"github.com/euan-turner/Connect4/internal/matchmaker"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	os.Exit(m.Run())
}

type moveEvent struct {
	player      string
	column, row int
	moveNum     int
}

type testServer struct {
	url   string
	hub   *Hub
	moves chan moveEvent
	ended chan *game.Game
}

func newTestServer(t *testing.T, timeout time.Duration, opts ...game.GameOption) *testServer {
	t.Helper()
	opts = append([]game.GameOption{game.WithBotSettings(game.BotSettings{Depth: 2})}, opts...)
	mm := matchmaker.NewMatchmaker(
		matchmaker.WithTimeout(timeout),
		matchmaker.WithGameOptions(opts...),
	)
	hub := NewHub(mm, WithBotMoveDelay(0), WithCleanupDelay(time.Minute))
	handler := NewHandler(hub, mm)

	ts := &testServer{
		hub:   hub,
		moves: make(chan moveEvent, 64),
		ended: make(chan *game.Game, 4),
	}
	hub.SetOnMove(func(g *game.Game, player string, column, row, moveNum int) {
		ts.moves <- moveEvent{player, column, row, moveNum}
	})
	hub.SetOnGameEnd(func(g *game.Game) { ts.ended <- g })

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, handler, w, r)
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	ts.url = "ws" + strings.TrimPrefix(srv.URL, "http")
	return ts
}

func dial(t *testing.T, ts *testServer, username string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(ts.url+"?username="+username, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", username, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg IncomingMessage) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// expect reads messages until one of the wanted type arrives
func expect(t *testing.T, conn *websocket.Conn, msgType string) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %q: %v", msgType, err)
		}
		if msg.Type == msgType {
			return msg
		}
	}
}

func TestServeWsRequiresUsername(t *testing.T) {
	is := is.New(t)
	ts := newTestServer(t, time.Minute)

	_, resp, err := websocket.DefaultDialer.Dial(ts.url, nil)
	is.True(err != nil)
	is.Equal(resp.StatusCode, http.StatusBadRequest)
}

func TestTwoPlayersPlayOverWebsocket(t *testing.T) {
	is := is.New(t)
	ts := newTestServer(t, time.Minute)

	alice := dial(t, ts, "alice")
	send(t, alice, IncomingMessage{Type: TypeJoin})
	expect(t, alice, TypeWaiting)

	bob := dial(t, ts, "bob")
	send(t, bob, IncomingMessage{Type: TypeJoin})

	aliceMatch := expect(t, alice, TypeMatched)
	bobMatch := expect(t, bob, TypeMatched)
	is.Equal(aliceMatch.GameID, bobMatch.GameID)
	is.Equal(aliceMatch.Opponent, "bob")
	is.Equal(aliceMatch.PlayerNum, 1)
	is.True(aliceMatch.YourTurn)
	is.Equal(bobMatch.PlayerNum, 2)
	is.True(!bobMatch.YourTurn)

	// Out of turn
	send(t, bob, IncomingMessage{Type: TypeMove, Column: 3})
	errMsg := expect(t, bob, TypeError)
	is.Equal(errMsg.Message, game.ErrNotYourTurn.Error())

	send(t, alice, IncomingMessage{Type: TypeMove, Column: 3})
	state := expect(t, bob, TypeState)
	is.Equal(state.Column, 3)
	is.Equal(state.Row, 5)
	is.Equal(state.State.CurrentTurn, 2)

	ev := <-ts.moves
	is.Equal(ev, moveEvent{player: "alice", column: 3, row: 5, moveNum: 1})
}

func TestBotAnswersLonePlayer(t *testing.T) {
	is := is.New(t)
	ts := newTestServer(t, 20*time.Millisecond)

	alice := dial(t, ts, "alice")
	send(t, alice, IncomingMessage{Type: TypeJoin})
	match := expect(t, alice, TypeMatched)
	is.Equal(match.Opponent, game.BotUsername)
	is.True(match.State.IsVsBot)

	send(t, alice, IncomingMessage{Type: TypeMove, Column: 0})
	first := <-ts.moves
	is.Equal(first.player, "alice")

	bot := <-ts.moves
	is.Equal(bot.player, game.BotUsername)
	is.Equal(bot.moveNum, 2)
	is.True(bot.column >= 0 && bot.column < game.Columns)
}

func TestBotGameForfeitsOnDisconnect(t *testing.T) {
	is := is.New(t)
	ts := newTestServer(t, 20*time.Millisecond)

	alice := dial(t, ts, "alice")
	send(t, alice, IncomingMessage{Type: TypeJoin})
	expect(t, alice, TypeMatched)
	alice.Close()

	select {
	case g := <-ts.ended:
		is.Equal(g.Result, game.ResultForfeit)
		is.Equal(g.Winner.Username, game.BotUsername)
	case <-time.After(5 * time.Second):
		t.Fatal("game did not end after disconnect")
	}
}

// matchPair puts alice and bob into a game against each other
func matchPair(t *testing.T, ts *testServer) (alice, bob *websocket.Conn, gameID string) {
	t.Helper()
	alice = dial(t, ts, "alice")
	send(t, alice, IncomingMessage{Type: TypeJoin})
	expect(t, alice, TypeWaiting)

	bob = dial(t, ts, "bob")
	send(t, bob, IncomingMessage{Type: TypeJoin})
	gameID = expect(t, alice, TypeMatched).GameID
	expect(t, bob, TypeMatched)
	return alice, bob, gameID
}

func TestReconnectWithinWindow(t *testing.T) {
	is := is.New(t)
	window := 500 * time.Millisecond
	ts := newTestServer(t, time.Minute, game.WithReconnectWindow(window))

	alice, bob, gameID := matchPair(t, ts)
	bob.Close()

	dropped := expect(t, alice, TypeOpponentDisconnected)
	is.True(dropped.ReconnectDeadline != "")

	bob = dial(t, ts, "bob")
	send(t, bob, IncomingMessage{Type: TypeReconnect, GameID: gameID})
	back := expect(t, bob, TypeMatched)
	is.Equal(back.GameID, gameID)
	is.Equal(back.PlayerNum, 2)
	expect(t, alice, TypeOpponentReconnected)

	// Outlive the timer started by the drop
	time.Sleep(window + 200*time.Millisecond)

	g := ts.hub.matchmaker.GetGame(gameID)
	is.True(g != nil)
	state := g.GetState()
	is.Equal(state.Status, game.StatusPlaying)
	is.Equal(state.Winner, "")

	select {
	case <-ts.ended:
		t.Fatal("game ended although bob came back")
	default:
	}

	// Play carries on over the new connection
	send(t, alice, IncomingMessage{Type: TypeMove, Column: 2})
	moved := expect(t, bob, TypeState)
	is.Equal(moved.Column, 2)
}

func TestForfeitWhenReconnectWindowExpires(t *testing.T) {
	is := is.New(t)
	ts := newTestServer(t, time.Minute, game.WithReconnectWindow(50*time.Millisecond))

	alice, bob, gameID := matchPair(t, ts)
	bob.Close()

	expect(t, alice, TypeOpponentDisconnected)
	over := expect(t, alice, TypeGameOver)
	is.Equal(over.Reason, string(game.ResultForfeit))
	is.Equal(over.Winner, "alice")
	is.Equal(over.State.Status, game.StatusFinished)

	select {
	case g := <-ts.ended:
		is.Equal(g.ID, gameID)
		is.Equal(g.Result, game.ResultForfeit)
		is.Equal(g.Winner.Username, "alice")
	case <-time.After(5 * time.Second):
		t.Fatal("game did not end after the reconnect window")
	}
}

func TestUnknownMessageType(t *testing.T) {
	is := is.New(t)
	ts := newTestServer(t, time.Minute)

	conn := dial(t, ts, "carol")
	send(t, conn, IncomingMessage{Type: "dance"})
	msg := expect(t, conn, TypeError)
	is.Equal(msg.Message, "Unknown message type")

	send(t, conn, IncomingMessage{Type: TypeMove, Column: 1})
	msg = expect(t, conn, TypeError)
	is.Equal(msg.Message, "Not in a game")
}
