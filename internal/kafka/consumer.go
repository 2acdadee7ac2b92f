package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/euan-turner/Connect4/internal/game"
)

// DefaultGroup is the consumer group used for analytics
const DefaultGroup = "analytics-consumer"

// AnalyticsMetrics holds aggregated analytics data
type AnalyticsMetrics struct {
	TotalGames    int64                     `json:"totalGames"`
	TotalMoves    int64                     `json:"totalMoves"`
	BotGames      int64                     `json:"botGames"`
	FinishedGames int64                     `json:"finishedGames"`
	Draws         int64                     `json:"draws"`
	TotalDuration int64                     `json:"totalDuration"`
	WinCounts     map[string]int            `json:"winCounts"`
	GamesPerHour  map[string]int            `json:"gamesPerHour"`
	GamesPerDay   map[string]int            `json:"gamesPerDay"`
	PlayerStats   map[string]*PlayerMetrics `json:"playerStats"`
	mu            sync.RWMutex
}

// PlayerMetrics holds per-player analytics
type PlayerMetrics struct {
	Wins        int   `json:"wins"`
	Losses      int   `json:"losses"`
	Draws       int   `json:"draws"`
	TotalGames  int   `json:"totalGames"`
	TotalMoves  int64 `json:"totalMoves"`
	AvgDuration int64 `json:"avgDuration"`

	totalDuration int64
}

func newMetrics() *AnalyticsMetrics {
	return &AnalyticsMetrics{
		WinCounts:    make(map[string]int),
		GamesPerHour: make(map[string]int),
		GamesPerDay:  make(map[string]int),
		PlayerStats:  make(map[string]*PlayerMetrics),
	}
}

// rawEvent defers decoding of the payload until the type is known
type rawEvent struct {
	Type      EventType       `json:"type"`
	GameID    string          `json:"gameId"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Consumer handles Kafka event consumption for analytics
type Consumer struct {
	group   sarama.ConsumerGroup
	topic   string
	metrics *AnalyticsMetrics
}

// NewConsumer joins the analytics consumer group, retrying a few times
func NewConsumer(brokers []string, topic, groupID string) (*Consumer, error) {
	if groupID == "" {
		groupID = DefaultGroup
	}
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := retry.DoWithData(
		func() (sarama.ConsumerGroup, error) {
			return sarama.NewConsumerGroup(brokers, groupID, config)
		},
		retry.Attempts(connectAttempts),
		retry.Delay(connectDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return newConsumer(group, topic), nil
}

func newConsumer(group sarama.ConsumerGroup, topic string) *Consumer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Consumer{
		group:   group,
		topic:   topic,
		metrics: newMetrics(),
	}
}

// Run consumes events until ctx is done, then closes the group
func (c *Consumer) Run(ctx context.Context) error {
	defer c.group.Close()
	log.Info().Str("topic", c.topic).Msg("kafka-consumer-started")

	for {
		if err := c.group.Consume(ctx, []string{c.topic}, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			log.Error().Err(err).Msg("kafka-consume")
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Setup is called at the beginning of a new session
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is called at the end of a session
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages from a partition
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		c.processMessage(msg)
		session.MarkMessage(msg, "")
	}
	return nil
}

// processMessage handles a single event message
func (c *Consumer) processMessage(msg *sarama.ConsumerMessage) {
	var event rawEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		log.Warn().Err(err).Int64("offset", msg.Offset).Msg("bad-event")
		return
	}

	var err error
	switch event.Type {
	case EventGameStart:
		var data GameStartData
		if err = json.Unmarshal(event.Data, &data); err == nil {
			c.handleGameStart(event.Timestamp, data)
		}
	case EventMove:
		var data MoveData
		if err = json.Unmarshal(event.Data, &data); err == nil {
			c.handleMove(data)
		}
	case EventGameEnd:
		var data GameEndData
		if err = json.Unmarshal(event.Data, &data); err == nil {
			c.handleGameEnd(data)
		}
	default:
		log.Debug().Str("type", string(event.Type)).Msg("unknown-event")
	}
	if err != nil {
		log.Warn().Err(err).Str("type", string(event.Type)).Str("game", event.GameID).Msg("bad-event-data")
	}
}

// player returns the metrics for a human player, creating them on first use
func (m *AnalyticsMetrics) player(name string) *PlayerMetrics {
	if name == "" || name == game.BotUsername {
		return nil
	}
	pm := m.PlayerStats[name]
	if pm == nil {
		pm = &PlayerMetrics{}
		m.PlayerStats[name] = pm
	}
	return pm
}

func (c *Consumer) handleGameStart(ts time.Time, data GameStartData) {
	m := c.metrics
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalGames++
	if data.IsVsBot {
		m.BotGames++
	}

	m.GamesPerHour[ts.Format("2006-01-02-15")]++
	m.GamesPerDay[ts.Format("2006-01-02")]++

	for _, name := range []string{data.Player1, data.Player2} {
		if pm := m.player(name); pm != nil {
			pm.TotalGames++
		}
	}
}

func (c *Consumer) handleMove(data MoveData) {
	m := c.metrics
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalMoves++
	if pm := m.player(data.Player); pm != nil {
		pm.TotalMoves++
	}
}

func (c *Consumer) handleGameEnd(data GameEndData) {
	m := c.metrics
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FinishedGames++
	m.TotalDuration += int64(data.DurationSeconds)

	draw := data.Winner == "" && data.Result == string(game.ResultDraw)
	if draw {
		m.Draws++
	} else if data.Winner != "" {
		m.WinCounts[data.Winner]++
	}

	for _, name := range []string{data.Player1, data.Player2} {
		pm := m.player(name)
		if pm == nil {
			continue
		}
		switch {
		case draw:
			pm.Draws++
		case name == data.Winner:
			pm.Wins++
		case data.Winner != "":
			pm.Losses++
		}
		pm.totalDuration += int64(data.DurationSeconds)
		if finished := pm.Wins + pm.Losses + pm.Draws; finished > 0 {
			pm.AvgDuration = pm.totalDuration / int64(finished)
		}
	}
}

// GetMetrics returns a copy of the current metrics
func (c *Consumer) GetMetrics() *AnalyticsMetrics {
	c.metrics.mu.RLock()
	defer c.metrics.mu.RUnlock()

	out := &AnalyticsMetrics{
		TotalGames:    c.metrics.TotalGames,
		TotalMoves:    c.metrics.TotalMoves,
		BotGames:      c.metrics.BotGames,
		FinishedGames: c.metrics.FinishedGames,
		Draws:         c.metrics.Draws,
		TotalDuration: c.metrics.TotalDuration,
		WinCounts:     lo.Assign(c.metrics.WinCounts),
		GamesPerHour:  lo.Assign(c.metrics.GamesPerHour),
		GamesPerDay:   lo.Assign(c.metrics.GamesPerDay),
		PlayerStats: lo.MapValues(c.metrics.PlayerStats, func(v *PlayerMetrics, _ string) *PlayerMetrics {
			cp := *v
			return &cp
		}),
	}
	return out
}

// GetAverageGameDuration returns the average duration of finished games in seconds
func (c *Consumer) GetAverageGameDuration() float64 {
	c.metrics.mu.RLock()
	defer c.metrics.mu.RUnlock()

	if c.metrics.FinishedGames == 0 {
		return 0
	}
	return float64(c.metrics.TotalDuration) / float64(c.metrics.FinishedGames)
}

// GetMostFrequentWinner returns the player with most wins. Ties go to the
// alphabetically first name.
func (c *Consumer) GetMostFrequentWinner() string {
	c.metrics.mu.RLock()
	defer c.metrics.mu.RUnlock()

	if len(c.metrics.WinCounts) == 0 {
		return ""
	}
	best := lo.MaxBy(lo.Entries(c.metrics.WinCounts), func(a, b lo.Entry[string, int]) bool {
		return a.Value > b.Value || (a.Value == b.Value && a.Key < b.Key)
	})
	return best.Key
}

// GetGamesPerHour returns games started in the last 24 hours by hour
func (c *Consumer) GetGamesPerHour() map[string]int {
	return c.gamesPerHourAt(time.Now())
}

func (c *Consumer) gamesPerHourAt(now time.Time) map[string]int {
	c.metrics.mu.RLock()
	defer c.metrics.mu.RUnlock()

	result := make(map[string]int)
	for i := 0; i < 24; i++ {
		key := now.Add(-time.Duration(i) * time.Hour).Format("2006-01-02-15")
		result[key] = c.metrics.GamesPerHour[key]
	}
	return result
}
