package websocket

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/euan-turner/Connect4/internal/game"
	"github.com/euan-turner/Connect4/internal/matchmaker"
)

// Message types
const (
	TypeJoin                 = "join"
	TypeMove                 = "move"
	TypeReconnect            = "reconnect"
	TypeWaiting              = "waiting"
	TypeMatched              = "matched"
	TypeState                = "state"
	TypeGameOver             = "gameOver"
	TypeError                = "error"
	TypeOpponentDisconnected = "opponentDisconnected"
	TypeOpponentReconnected  = "opponentReconnected"
)

// Message represents a WebSocket message
type Message struct {
	Type              string          `json:"type"`
	Username          string          `json:"username,omitempty"`
	Column            int             `json:"column,omitempty"`
	Row               int             `json:"row,omitempty"`
	GameID            string          `json:"gameId,omitempty"`
	Opponent          string          `json:"opponent,omitempty"`
	YourTurn          bool            `json:"yourTurn,omitempty"`
	State             *game.GameState `json:"state,omitempty"`
	Winner            string          `json:"winner,omitempty"`
	Reason            string          `json:"reason,omitempty"`
	Message           string          `json:"message,omitempty"`
	ReconnectDeadline string          `json:"reconnectDeadline,omitempty"`
	PlayerNum         int             `json:"playerNum,omitempty"`
}

// IncomingMessage represents a message from the client
type IncomingMessage struct {
	Type     string `json:"type"`
	Column   int    `json:"column,omitempty"`
	GameID   string `json:"gameId,omitempty"`
	Username string `json:"username,omitempty"`
}

// Handler processes WebSocket messages
type Handler struct {
	hub        *Hub
	matchmaker *matchmaker.Matchmaker
}

// NewHandler creates a new message handler
func NewHandler(hub *Hub, mm *matchmaker.Matchmaker) *Handler {
	return &Handler{
		hub:        hub,
		matchmaker: mm,
	}
}

// HandleMessage processes an incoming message
func (h *Handler) HandleMessage(client *Client, data []byte) {
	var msg IncomingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug().Err(err).Str("user", client.username).Msg("bad-message")
		client.sendMessage(Message{Type: TypeError, Message: "Invalid message format"})
		return
	}

	switch msg.Type {
	case TypeJoin:
		h.handleJoin(client)
	case TypeMove:
		h.handleMove(client, msg.Column)
	case TypeReconnect:
		h.handleReconnect(client, msg.GameID)
	default:
		client.sendMessage(Message{Type: TypeError, Message: "Unknown message type"})
	}
}

// matchedMessage describes the game from the point of view of username
func matchedMessage(g *game.Game, username string) Message {
	state := g.GetState()
	mark := g.GetPlayerByUsername(username)
	opponent := state.Player2
	if mark == game.Second {
		opponent = state.Player1
	}
	return Message{
		Type:      TypeMatched,
		GameID:    g.ID,
		Opponent:  opponent,
		YourTurn:  state.Status == game.StatusPlaying && state.CurrentTurn == mark.PlayerNum(),
		PlayerNum: mark.PlayerNum(),
		State:     state,
	}
}

// handleJoin handles a player joining the matchmaking queue
func (h *Handler) handleJoin(client *Client) {
	existing := h.matchmaker.GetGameByPlayer(client.username)
	if existing != nil && existing.GetState().Status != game.StatusFinished {
		h.handleReconnectToGame(client, existing)
		return
	}

	client.sendMessage(Message{
		Type:    TypeWaiting,
		Message: "Looking for opponent...",
	})

	gameChan, err := h.matchmaker.JoinQueue(client.username)
	if err != nil {
		client.sendMessage(Message{Type: TypeError, Message: err.Error()})
		return
	}

	go func() {
		g, ok := <-gameChan
		if !ok || g == nil {
			return
		}
		h.hub.RegisterToGame(g.ID, client)
		client.sendMessage(matchedMessage(g, client.username))
	}()
}

// handleMove handles a player making a move
func (h *Handler) handleMove(client *Client, column int) {
	gameID := client.GameID()
	if gameID == "" {
		client.sendMessage(Message{Type: TypeError, Message: "Not in a game"})
		return
	}

	g := h.matchmaker.GetGame(gameID)
	if g == nil {
		client.sendMessage(Message{Type: TypeError, Message: game.ErrGameNotFound.Error()})
		return
	}

	mark := g.GetPlayerByUsername(client.username)
	if mark == game.Empty {
		client.sendMessage(Message{Type: TypeError, Message: game.ErrPlayerNotFound.Error()})
		return
	}

	row, err := g.MakeMove(mark, column)
	if err != nil {
		log.Debug().Err(err).Str("user", client.username).Int("column", column).Msg("move-rejected")
		client.sendMessage(Message{Type: TypeError, Message: err.Error()})
		return
	}

	h.hub.moveApplied(g, client.username, column, row)
	h.hub.broadcastToGame(g.ID, Message{
		Type:   TypeState,
		State:  g.GetState(),
		Column: column,
		Row:    row,
	})

	if h.hub.finishIfOver(g) {
		return
	}
	if g.IsVsBot() {
		go h.hub.HandleBotMove(g)
	}
}

// handleReconnect handles a player trying to reconnect to a game
func (h *Handler) handleReconnect(client *Client, gameID string) {
	g := h.matchmaker.GetGame(gameID)
	if g == nil {
		g = h.matchmaker.GetGameByPlayer(client.username)
	}
	if g == nil {
		client.sendMessage(Message{Type: TypeError, Message: game.ErrGameNotFound.Error()})
		return
	}

	h.handleReconnectToGame(client, g)
}

// handleReconnectToGame handles reconnection to a specific game
func (h *Handler) handleReconnectToGame(client *Client, g *game.Game) {
	mark := g.GetPlayerByUsername(client.username)
	if mark == game.Empty {
		client.sendMessage(Message{Type: TypeError, Message: "Not a player in this game"})
		return
	}

	state := g.GetState()
	switch state.Status {
	case game.StatusFinished:
		client.sendMessage(Message{Type: TypeError, Message: "Game has already ended"})
		return
	case game.StatusDisconnect:
		if !g.PlayerReconnected(mark) {
			client.sendMessage(Message{Type: TypeError, Message: "Reconnection failed"})
			return
		}
		h.hub.broadcastToGame(g.ID, Message{Type: TypeOpponentReconnected})
		log.Info().Str("game", g.ID).Str("user", client.username).Msg("player-reconnected")
	}

	// Same game, new connection
	h.hub.RegisterToGame(g.ID, client)
	client.sendMessage(matchedMessage(g, client.username))
}
