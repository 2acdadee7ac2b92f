package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/euan-turner/Connect4/internal/game"
	"github.com/euan-turner/Connect4/internal/matchmaker"
)

const (
	// DefaultBotMoveDelay makes bot replies feel less instant
	DefaultBotMoveDelay = 500 * time.Millisecond
	// DefaultCleanupDelay is how long a finished game stays addressable
	DefaultCleanupDelay = 5 * time.Second
)

// MoveFunc observes every move applied to a game
type MoveFunc func(g *game.Game, player string, column, row, moveNum int)

// HubOption configures a Hub
type HubOption func(*Hub)

// WithBotMoveDelay sets the pause before the bot replies
func WithBotMoveDelay(d time.Duration) HubOption {
	return func(h *Hub) {
		h.botMoveDelay = d
	}
}

// WithCleanupDelay sets how long finished games are kept before removal
func WithCleanupDelay(d time.Duration) HubOption {
	return func(h *Hub) {
		h.cleanupDelay = d
	}
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients by username
	clients map[string]*Client

	// Clients by game ID
	gameClients map[string]map[string]*Client

	register   chan *Client
	unregister chan *Client

	matchmaker *matchmaker.Matchmaker

	// Callbacks
	onGameEnd func(g *game.Game)
	onMove    MoveFunc

	botMoveDelay time.Duration
	cleanupDelay time.Duration

	// done is cancelled when Run returns; bot searches stop with it
	done   context.Context
	cancel context.CancelFunc

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub(mm *matchmaker.Matchmaker, opts ...HubOption) *Hub {
	done, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:      make(map[string]*Client),
		gameClients:  make(map[string]map[string]*Client),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		matchmaker:   mm,
		botMoveDelay: DefaultBotMoveDelay,
		cleanupDelay: DefaultCleanupDelay,
		done:         done,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetOnGameEnd sets the callback for when a game ends
func (h *Hub) SetOnGameEnd(callback func(g *game.Game)) {
	h.onGameEnd = callback
}

// SetOnMove sets the callback for every applied move
func (h *Hub) SetOnMove(callback MoveFunc) {
	h.onMove = callback
}

// Register queues a client for registration
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done.Done():
		c.close()
	}
}

// Unregister queues a client for removal
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done.Done():
	}
}

// Run starts the hub's main loop and blocks until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[client.username]; ok && old != client {
				// A second tab replaces the first connection.
				old.close()
			}
			h.clients[client.username] = client
			h.mu.Unlock()
			log.Debug().Str("user", client.username).Msg("client-registered")

		case client := <-h.unregister:
			h.mu.Lock()
			current := h.clients[client.username] == client
			if current {
				delete(h.clients, client.username)
			}
			h.mu.Unlock()
			client.close()
			log.Debug().Str("user", client.username).Bool("current", current).Msg("client-unregistered")

			if current {
				h.handleDisconnect(client)
			}
		}
	}
}

func (h *Hub) shutdown() {
	h.cancel()
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		c.close()
	}
	h.clients = make(map[string]*Client)
}

// handleDisconnect handles a player disconnect
func (h *Hub) handleDisconnect(client *Client) {
	gameID := client.GameID()
	if gameID == "" {
		// Player was not in a game, just leave queue
		h.matchmaker.LeaveQueue(client.username)
		return
	}

	g := h.matchmaker.GetGame(gameID)
	if g == nil {
		return
	}

	mark := g.GetPlayerByUsername(client.username)
	if mark == game.Empty {
		return
	}
	if g.GetState().Status != game.StatusPlaying {
		return
	}

	// The bot never waits for a reconnect
	if g.IsVsBot() && mark == game.First {
		if g.Forfeit(game.First) {
			h.handleGameEnd(g)
		}
		return
	}

	g.PlayerDisconnected(mark)

	window := g.ReconnectWindow()
	h.notifyOpponentDisconnected(g, mark, time.Now().Add(window))

	time.AfterFunc(window, func() {
		h.handleReconnectTimeout(g)
	})
}

// handleReconnectTimeout forfeits the game if the player did not come back
func (h *Hub) handleReconnectTimeout(g *game.Game) {
	loser, ok := g.ForfeitIfDisconnected()
	if !ok {
		return
	}
	log.Info().Str("game", g.ID).Int("loser", loser.PlayerNum()).Msg("forfeit-after-disconnect")

	state := g.GetState()
	h.broadcastToGame(g.ID, Message{
		Type:   TypeGameOver,
		Winner: state.Winner,
		Reason: string(game.ResultForfeit),
		State:  state,
	})
	h.handleGameEnd(g)
}

// notifyOpponentDisconnected notifies the opponent about disconnect
func (h *Hub) notifyOpponentDisconnected(g *game.Game, disconnected game.Mark, deadline time.Time) {
	msg := Message{
		Type:              TypeOpponentDisconnected,
		ReconnectDeadline: deadline.Format(time.RFC3339),
	}
	for username, client := range h.clientsInGame(g.ID) {
		if g.GetPlayerByUsername(username) != disconnected {
			client.sendMessage(msg)
		}
	}
}

// RegisterToGame adds a client to a game's client list
func (h *Hub) RegisterToGame(gameID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.gameClients[gameID] == nil {
		h.gameClients[gameID] = make(map[string]*Client)
	}
	h.gameClients[gameID][client.username] = client
	client.setGameID(gameID)
}

func (h *Hub) clientsInGame(gameID string) map[string]*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]*Client, len(h.gameClients[gameID]))
	for username, c := range h.gameClients[gameID] {
		out[username] = c
	}
	return out
}

// BroadcastGameState sends game state to all players in a game
func (h *Hub) BroadcastGameState(g *game.Game) {
	h.broadcastToGame(g.ID, Message{
		Type:  TypeState,
		State: g.GetState(),
	})
}

// broadcastToGame sends a message to all clients in a game
func (h *Hub) broadcastToGame(gameID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("type", msg.Type).Msg("marshal-message")
		return
	}

	for username, client := range h.clientsInGame(gameID) {
		if !client.queue(data) {
			log.Warn().Str("game", gameID).Str("user", username).Str("type", msg.Type).Msg("broadcast-dropped")
		}
	}
}

// SendToClient sends a message to a specific client
func (h *Hub) SendToClient(username string, msg Message) {
	if client := h.GetClient(username); client != nil {
		client.sendMessage(msg)
	}
}

// GetClient returns a client by username
func (h *Hub) GetClient(username string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[username]
}

func (h *Hub) moveApplied(g *game.Game, player string, column, row int) {
	if h.onMove != nil {
		h.onMove(g, player, column, row, len(g.MoveHistory()))
	}
}

// finishIfOver announces the result and ends the game when it is decided
func (h *Hub) finishIfOver(g *game.Game) bool {
	state := g.GetState()
	if state.Status != game.StatusFinished {
		return false
	}
	log.Info().
		Str("game", g.ID).
		Str("winner", state.Winner).
		Str("result", state.Result).
		Int("moves", state.MoveCount).
		Msg("game-finished")

	h.broadcastToGame(g.ID, Message{
		Type:   TypeGameOver,
		Winner: state.Winner,
		Reason: state.Result,
		State:  state,
	})
	h.handleGameEnd(g)
	return true
}

// handleGameEnd processes game completion
func (h *Hub) handleGameEnd(g *game.Game) {
	if h.onGameEnd != nil {
		h.onGameEnd(g)
	}

	time.AfterFunc(h.cleanupDelay, func() {
		h.mu.Lock()
		delete(h.gameClients, g.ID)
		h.mu.Unlock()
		h.matchmaker.RemoveGame(g.ID)
	})
}

// HandleBotMove lets the bot reply if it is its turn
func (h *Hub) HandleBotMove(g *game.Game) {
	if !g.IsVsBot() {
		return
	}
	state := g.GetState()
	if state.Status != game.StatusPlaying || state.CurrentTurn != game.Second.PlayerNum() {
		log.Debug().Str("game", g.ID).Str("status", string(state.Status)).Msg("bot-move-skipped")
		return
	}

	select {
	case <-time.After(h.botMoveDelay):
	case <-h.done.Done():
		return
	}

	col, row, res, err := g.MakeBotMove(h.done)
	if err != nil {
		log.Error().Err(err).Str("game", g.ID).Msg("bot-move-failed")
		return
	}
	log.Debug().
		Str("game", g.ID).
		Int("column", col).
		Int("score", res.Score).
		Uint64("nodes", res.Nodes).
		Bool("complete", res.Complete).
		Msg("bot-moved")

	h.moveApplied(g, game.BotUsername, col, row)
	h.broadcastToGame(g.ID, Message{
		Type:   TypeState,
		State:  g.GetState(),
		Column: col,
		Row:    row,
	})
	h.finishIfOver(g)
}
