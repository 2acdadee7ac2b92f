package kafka

import (
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"github.com/euan-turner/Connect4/internal/game"
)

// DefaultTopic carries every game event
const DefaultTopic = "game-events"

const (
	connectAttempts = 3
	connectDelay    = 500 * time.Millisecond
)

// EventType represents the type of game event
type EventType string

const (
	EventGameStart EventType = "game_start"
	EventMove      EventType = "move"
	EventGameEnd   EventType = "game_end"
)

// GameEvent represents a game event for analytics
type GameEvent struct {
	Type      EventType `json:"type"`
	GameID    string    `json:"gameId"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// GameStartData contains data for game start events
type GameStartData struct {
	Player1 string `json:"player1"`
	Player2 string `json:"player2"`
	IsVsBot bool   `json:"isVsBot"`
}

// MoveData contains data for move events
type MoveData struct {
	Player  string `json:"player"`
	Column  int    `json:"column"`
	Row     int    `json:"row"`
	MoveNum int    `json:"moveNum"`
}

// GameEndData contains data for game end events
type GameEndData struct {
	Player1         string `json:"player1"`
	Player2         string `json:"player2"`
	Winner          string `json:"winner"`
	Result          string `json:"result"`
	DurationSeconds int    `json:"durationSeconds"`
	TotalMoves      int    `json:"totalMoves"`
	IsVsBot         bool   `json:"isVsBot"`
}

// Producer handles Kafka event production. A disabled producer drops events.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	enabled  bool
}

// NewProducer connects to the brokers, retrying a few times. If Kafka stays
// unreachable the returned producer is disabled and analytics are skipped.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3

	producer, err := retry.DoWithData(
		func() (sarama.SyncProducer, error) {
			return sarama.NewSyncProducer(brokers, config)
		},
		retry.Attempts(connectAttempts),
		retry.Delay(connectDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Debug().Err(err).Uint("attempt", n+1).Msg("kafka-producer-retry")
		}),
	)
	if err != nil {
		log.Warn().Err(err).Strs("brokers", brokers).Msg("kafka-producer-unavailable-analytics-disabled")
		return Disabled(), nil
	}

	log.Info().Strs("brokers", brokers).Str("topic", topic).Msg("kafka-producer-connected")
	return NewProducerWith(producer, topic), nil
}

// NewProducerWith wraps an existing sarama producer
func NewProducerWith(producer sarama.SyncProducer, topic string) *Producer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Producer{producer: producer, topic: topic, enabled: true}
}

// Disabled returns a producer that drops every event
func Disabled() *Producer {
	return &Producer{topic: DefaultTopic}
}

// EmitGameStart emits a game start event
func (p *Producer) EmitGameStart(g *game.Game) {
	state := g.GetState()
	p.emit(EventGameStart, g.ID, GameStartData{
		Player1: state.Player1,
		Player2: state.Player2,
		IsVsBot: state.IsVsBot,
	})
}

// EmitMove emits a move event
func (p *Producer) EmitMove(g *game.Game, player string, column, row, moveNum int) {
	p.emit(EventMove, g.ID, MoveData{
		Player:  player,
		Column:  column,
		Row:     row,
		MoveNum: moveNum,
	})
}

// EmitGameEnd emits a game end event
func (p *Producer) EmitGameEnd(g *game.Game) {
	state := g.GetState()
	p.emit(EventGameEnd, g.ID, GameEndData{
		Player1:         state.Player1,
		Player2:         state.Player2,
		Winner:          state.Winner,
		Result:          state.Result,
		DurationSeconds: g.GetDuration(),
		TotalMoves:      state.MoveCount,
		IsVsBot:         state.IsVsBot,
	})
}

// emit stamps and sends an event; disabled producers drop it
func (p *Producer) emit(eventType EventType, gameID string, data any) {
	if !p.enabled {
		return
	}
	p.send(GameEvent{
		Type:      eventType,
		GameID:    gameID,
		Timestamp: time.Now(),
		Data:      data,
	})
}

// send sends an event to Kafka
func (p *Producer) send(event GameEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("type", string(event.Type)).Msg("marshal-event")
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.GameID),
		Value: sarama.ByteEncoder(data),
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		log.Error().Err(err).Str("type", string(event.Type)).Str("game", event.GameID).Msg("send-event")
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// IsEnabled returns whether Kafka is enabled
func (p *Producer) IsEnabled() bool {
	return p.enabled
}
