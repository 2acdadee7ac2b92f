package matchmaker

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/euan-turner/Connect4/internal/game"
)

// DefaultTimeout is how long a lone player waits before getting a bot game
const DefaultTimeout = 10 * time.Second

// WaitingPlayer represents a player waiting for a match
type WaitingPlayer struct {
	Username  string
	JoinedAt  time.Time
	MatchChan chan *game.Game
}

// Option configures a Matchmaker
type Option func(*Matchmaker)

// WithTimeout sets how long a player waits for a human opponent
func WithTimeout(d time.Duration) Option {
	return func(m *Matchmaker) {
		m.timeout = d
	}
}

// WithGameOptions sets the options every new game is created with
func WithGameOptions(opts ...game.GameOption) Option {
	return func(m *Matchmaker) {
		m.gameOpts = append(m.gameOpts, opts...)
	}
}

// Matchmaker handles player matching
type Matchmaker struct {
	waitingQueue []*WaitingPlayer
	activeGames  map[string]*game.Game // gameID -> game
	playerGames  map[string]string     // username -> gameID
	mu           sync.Mutex
	onGameStart  func(g *game.Game)

	timeout  time.Duration
	gameOpts []game.GameOption
}

// NewMatchmaker creates a new matchmaker instance
func NewMatchmaker(opts ...Option) *Matchmaker {
	m := &Matchmaker{
		waitingQueue: make([]*WaitingPlayer, 0),
		activeGames:  make(map[string]*game.Game),
		playerGames:  make(map[string]string),
		timeout:      DefaultTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetOnGameStart sets the callback for when a game starts
func (m *Matchmaker) SetOnGameStart(callback func(g *game.Game)) {
	m.onGameStart = callback
}

// JoinQueue adds a player to the matchmaking queue.
// Returns a channel that will receive the game when matched.
func (m *Matchmaker) JoinQueue(username string) (<-chan *game.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Already in a game: hand it back for reconnection
	if gameID, exists := m.playerGames[username]; exists {
		if g, ok := m.activeGames[gameID]; ok {
			ch := make(chan *game.Game, 1)
			ch <- g
			return ch, nil
		}
	}

	for _, w := range m.waitingQueue {
		if w.Username == username {
			return w.MatchChan, nil
		}
	}

	if len(m.waitingQueue) > 0 {
		opponent := m.waitingQueue[0]
		m.waitingQueue = m.waitingQueue[1:]

		g := game.NewGame(opponent.Username, m.gameOpts...)
		g.AddPlayer2(username, false)
		m.register(g)

		opponent.MatchChan <- g

		ch := make(chan *game.Game, 1)
		ch <- g

		log.Info().
			Str("game", g.ID).
			Str("player1", opponent.Username).
			Str("player2", username).
			Msg("players-matched")

		if m.onGameStart != nil {
			go m.onGameStart(g)
		}
		return ch, nil
	}

	waiting := &WaitingPlayer{
		Username:  username,
		JoinedAt:  time.Now(),
		MatchChan: make(chan *game.Game, 1),
	}
	m.waitingQueue = append(m.waitingQueue, waiting)

	time.AfterFunc(m.timeout, func() {
		m.handleMatchmakingTimeout(waiting)
	})

	return waiting.MatchChan, nil
}

func (m *Matchmaker) register(g *game.Game) {
	m.activeGames[g.ID] = g
	m.playerGames[g.Player1.Username] = g.ID
	if g.Player2 != nil && !g.Player2.IsBot {
		m.playerGames[g.Player2.Username] = g.ID
	}
}

// handleMatchmakingTimeout gives a player who is still queued a bot game
func (m *Matchmaker) handleMatchmakingTimeout(waiting *WaitingPlayer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, w := range m.waitingQueue {
		if w != waiting {
			continue
		}
		m.waitingQueue = append(m.waitingQueue[:i], m.waitingQueue[i+1:]...)

		g := game.NewGame(waiting.Username, m.gameOpts...)
		g.AddPlayer2(game.BotUsername, true)
		m.register(g)

		log.Info().
			Str("game", g.ID).
			Str("player", waiting.Username).
			Int("depth", g.Bot.Settings().Depth).
			Dur("waited", time.Since(waiting.JoinedAt)).
			Msg("bot-game-created")

		waiting.MatchChan <- g

		if m.onGameStart != nil {
			go m.onGameStart(g)
		}
		return
	}
	// Player was already matched or left
}

// GetGame returns a game by ID
func (m *Matchmaker) GetGame(gameID string) *game.Game {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeGames[gameID]
}

// GetGameByPlayer returns a game by player username
func (m *Matchmaker) GetGameByPlayer(username string) *game.Game {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gameID, exists := m.playerGames[username]; exists {
		return m.activeGames[gameID]
	}
	return nil
}

// RemoveGame removes a completed game from active games
func (m *Matchmaker) RemoveGame(gameID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if g, exists := m.activeGames[gameID]; exists {
		delete(m.playerGames, g.Player1.Username)
		if g.Player2 != nil && !g.Player2.IsBot {
			delete(m.playerGames, g.Player2.Username)
		}
		delete(m.activeGames, gameID)
	}
}

// LeaveQueue removes a player from the waiting queue
func (m *Matchmaker) LeaveQueue(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, w := range m.waitingQueue {
		if w.Username == username {
			m.waitingQueue = append(m.waitingQueue[:i], m.waitingQueue[i+1:]...)
			close(w.MatchChan)
			return
		}
	}
}

// GetActiveGameCount returns the number of active games
func (m *Matchmaker) GetActiveGameCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.activeGames)
}

// GetWaitingCount returns the number of players waiting
func (m *Matchmaker) GetWaitingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waitingQueue)
}
