package game

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultReconnectWindow is how long a disconnected player may take to return
const DefaultReconnectWindow = 30 * time.Second

// BotUsername is the display name of the machine player
const BotUsername = "BOT"

// GameStatus represents the current state of the game
type GameStatus string

const (
	StatusWaiting    GameStatus = "waiting"
	StatusPlaying    GameStatus = "playing"
	StatusFinished   GameStatus = "finished"
	StatusDisconnect GameStatus = "disconnected"
)

// GameResult represents the outcome of a game
type GameResult string

const (
	ResultWinPlayer1 GameResult = "player1_win"
	ResultWinPlayer2 GameResult = "player2_win"
	ResultDraw       GameResult = "draw"
	ResultForfeit    GameResult = "forfeit"
)

// Player represents a player in the game
type Player struct {
	Username    string
	Mark        Mark
	IsBot       bool
	IsConnected bool
}

// Move represents a single move in the game
type Move struct {
	PlayerNum int       `json:"playerNum"`
	Column    int       `json:"column"`
	Row       int       `json:"row"`
	Timestamp time.Time `json:"timestamp"`
}

// Mark returns the side that played the move
func (m Move) Mark() Mark {
	return MarkFromPlayerNum(m.PlayerNum)
}

// GameOption configures a new game
type GameOption func(*Game)

// WithBotSettings sets the engine settings used if a bot joins the game
func WithBotSettings(s BotSettings) GameOption {
	return func(g *Game) {
		g.botSettings = s
	}
}

// WithReconnectWindow sets how long a disconnected player may take to return
func WithReconnectWindow(d time.Duration) GameOption {
	return func(g *Game) {
		g.reconnectWindow = d
	}
}

// Game represents a Connect Four game instance. Player1 always plays First.
type Game struct {
	ID                 string
	Player1            *Player
	Player2            *Player
	Board              *Board
	CurrentTurn        Mark
	Status             GameStatus
	Winner             *Player
	Result             GameResult
	Moves              []Move
	StartTime          time.Time
	EndTime            time.Time
	DisconnectTime     time.Time
	DisconnectedPlayer Mark
	Bot                *Bot

	botSettings     BotSettings
	reconnectWindow time.Duration
	mu              sync.RWMutex
}

// NewGame creates a new game instance
func NewGame(player1Username string, opts ...GameOption) *Game {
	g := &Game{
		ID: uuid.New().String(),
		Player1: &Player{
			Username:    player1Username,
			Mark:        First,
			IsBot:       false,
			IsConnected: true,
		},
		Board:           NewBoard(),
		CurrentTurn:     First,
		Status:          StatusWaiting,
		Moves:           make([]Move, 0),
		StartTime:       time.Now(),
		botSettings:     DefaultBotSettings(),
		reconnectWindow: DefaultReconnectWindow,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddPlayer2 adds the second player to the game
func (g *Game) AddPlayer2(username string, isBot bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Player2 = &Player{
		Username:    username,
		Mark:        Second,
		IsBot:       isBot,
		IsConnected: true,
	}
	g.Status = StatusPlaying

	if isBot {
		g.Bot = NewBot(Second, g.botSettings)
	}
}

// IsVsBot reports whether the second seat is the machine player
func (g *Game) IsVsBot() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.Player2 != nil && g.Player2.IsBot
}

// MakeMove makes a move for the specified side and returns the landing row.
// The result is decided after every move: a win is checked before a draw.
func (g *Game) MakeMove(mark Mark, column int) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Status != StatusPlaying {
		return -1, ErrGameNotInProgress
	}

	if g.CurrentTurn != mark {
		return -1, ErrNotYourTurn
	}

	row, err := g.Board.MakeMove(column, mark)
	if err != nil {
		return -1, err
	}

	// Record the move
	g.Moves = append(g.Moves, Move{
		PlayerNum: mark.PlayerNum(),
		Column:    column,
		Row:       row,
		Timestamp: time.Now(),
	})

	// Check for win
	if g.Board.IsWon(mark) {
		g.Status = StatusFinished
		g.EndTime = time.Now()
		if mark == First {
			g.Winner = g.Player1
			g.Result = ResultWinPlayer1
		} else {
			g.Winner = g.Player2
			g.Result = ResultWinPlayer2
		}
		return row, nil
	}

	// Check for draw
	if g.Board.IsFull() {
		g.Status = StatusFinished
		g.EndTime = time.Now()
		g.Result = ResultDraw
		return row, nil
	}

	g.CurrentTurn = mark.Opponent()
	return row, nil
}

// MakeBotMove lets the bot search a snapshot of the board and play its
// choice. It returns the column, the landing row and the search result.
func (g *Game) MakeBotMove(ctx context.Context) (int, int, Result, error) {
	g.mu.RLock()
	if g.Bot == nil || g.Status != StatusPlaying || g.CurrentTurn != g.Bot.Mark() {
		g.mu.RUnlock()
		return -1, -1, Result{}, ErrNotYourTurn
	}
	bot := g.Bot
	snapshot := g.Board.Clone()
	g.mu.RUnlock()

	res, err := bot.GetBestMove(ctx, snapshot)
	if err != nil {
		return -1, -1, Result{}, err
	}

	row, err := g.MakeMove(bot.Mark(), res.Column)
	return res.Column, row, res, err
}

// PlayerDisconnected marks a player as disconnected
func (g *Game) PlayerDisconnected(mark Mark) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Status != StatusPlaying {
		return
	}

	g.DisconnectedPlayer = mark
	g.DisconnectTime = time.Now()
	g.Status = StatusDisconnect

	if p := g.playerFor(mark); p != nil {
		p.IsConnected = false
	}
}

// PlayerReconnected marks a player as reconnected
func (g *Game) PlayerReconnected(mark Mark) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Status != StatusDisconnect || g.DisconnectedPlayer != mark {
		return false
	}

	if time.Since(g.DisconnectTime) > g.reconnectWindow {
		return false
	}

	g.Status = StatusPlaying
	g.DisconnectedPlayer = Empty
	g.DisconnectTime = time.Time{}

	if p := g.playerFor(mark); p != nil {
		p.IsConnected = true
	}

	return true
}

// ReconnectWindow returns how long a disconnected player may take to return
func (g *Game) ReconnectWindow() time.Duration {
	return g.reconnectWindow
}

// Forfeit ends an in-progress game with loser giving it up. It reports
// false when loser is not a player or the game is not in progress.
func (g *Game) Forfeit(loser Mark) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Status != StatusPlaying && g.Status != StatusDisconnect {
		return false
	}
	return g.forfeitLocked(loser)
}

// ForfeitIfDisconnected forfeits the game on behalf of the player who
// dropped, provided they have not come back in the meantime.
func (g *Game) ForfeitIfDisconnected() (Mark, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Status != StatusDisconnect {
		return Empty, false
	}
	loser := g.DisconnectedPlayer
	if !g.forfeitLocked(loser) {
		return Empty, false
	}
	return loser, true
}

func (g *Game) forfeitLocked(loser Mark) bool {
	if !loser.IsPlayer() {
		return false
	}
	winner := g.playerFor(loser.Opponent())
	if winner == nil {
		return false
	}

	g.Status = StatusFinished
	g.EndTime = time.Now()
	g.Result = ResultForfeit
	g.Winner = winner
	g.DisconnectedPlayer = Empty
	return true
}

func (g *Game) playerFor(mark Mark) *Player {
	switch mark {
	case First:
		return g.Player1
	case Second:
		return g.Player2
	}
	return nil
}

// GetState returns the current game state for serialization
func (g *Game) GetState() *GameState {
	g.mu.RLock()
	defer g.mu.RUnlock()

	state := &GameState{
		ID:          g.ID,
		Board:       g.Board.ToSlice(),
		CurrentTurn: g.CurrentTurn.PlayerNum(),
		Status:      g.Status,
		MoveCount:   len(g.Moves),
	}

	if g.Player1 != nil {
		state.Player1 = g.Player1.Username
	}
	if g.Player2 != nil {
		state.Player2 = g.Player2.Username
		state.IsVsBot = g.Player2.IsBot
	}
	if g.Winner != nil {
		state.Winner = g.Winner.Username
	}
	if len(g.Moves) > 0 {
		lastMove := g.Moves[len(g.Moves)-1]
		state.LastMove = &MoveInfo{
			Column: lastMove.Column,
			Row:    lastMove.Row,
		}
	}
	if g.Result != "" {
		state.Result = string(g.Result)
	}

	return state
}

// MoveHistory returns a copy of the moves played so far
func (g *Game) MoveHistory() []Move {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Move(nil), g.Moves...)
}

// GetPlayerByUsername returns the mark played by username, or Empty
func (g *Game) GetPlayerByUsername(username string) Mark {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.Player1 != nil && g.Player1.Username == username {
		return First
	}
	if g.Player2 != nil && g.Player2.Username == username {
		return Second
	}
	return Empty
}

// GetDuration returns the game duration in seconds
func (g *Game) GetDuration() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.EndTime.IsZero() {
		return int(time.Since(g.StartTime).Seconds())
	}
	return int(g.EndTime.Sub(g.StartTime).Seconds())
}

// GameState represents the serializable game state
type GameState struct {
	ID          string     `json:"id"`
	Player1     string     `json:"player1"`
	Player2     string     `json:"player2"`
	IsVsBot     bool       `json:"isVsBot"`
	Board       [][]int    `json:"board"`
	CurrentTurn int        `json:"currentTurn"`
	Status      GameStatus `json:"status"`
	Winner      string     `json:"winner,omitempty"`
	Result      string     `json:"result,omitempty"`
	LastMove    *MoveInfo  `json:"lastMove,omitempty"`
	MoveCount   int        `json:"moveCount"`
}

// MoveInfo represents info about a move
type MoveInfo struct {
	Column int `json:"column"`
	Row    int `json:"row"`
}
