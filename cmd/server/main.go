package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/euan-turner/Connect4/internal/api"
	"github.com/euan-turner/Connect4/internal/config"
	"github.com/euan-turner/Connect4/internal/game"
	"github.com/euan-turner/Connect4/internal/kafka"
	"github.com/euan-turner/Connect4/internal/matchmaker"
	"github.com/euan-turner/Connect4/internal/storage"
	"github.com/euan-turner/Connect4/internal/websocket"
)

const shutdownTimeout = 30 * time.Second

func setupLogging(cfg *config.Config) {
	zerolog.SetGlobalLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// openStore returns a nil Store for the memory driver or when the database
// cannot be reached; games are then played but not persisted.
func openStore(ctx context.Context, cfg config.StoreConfig) storage.Store {
	var (
		store storage.Store
		err   error
	)
	switch cfg.Driver {
	case config.DriverPostgres:
		var pg *storage.PostgresStore
		if pg, err = storage.NewPostgresStore(ctx, cfg.DatabaseURL); err == nil {
			store = pg
		}
	case config.DriverSQLite:
		var lite *storage.SQLiteStore
		if lite, err = storage.NewSQLiteStore(ctx, cfg.SQLitePath); err == nil {
			store = lite
		}
	}
	if err != nil {
		log.Warn().Err(err).Str("driver", cfg.Driver).Msg("database-unavailable-memory-only-mode")
		return nil
	}
	if store == nil {
		log.Info().Msg("memory-only-mode")
	}
	return store
}

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := openStore(ctx, cfg.Store)
	if store != nil {
		defer store.Close()
	}

	producer := kafka.Disabled()
	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		producer, _ = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if producer.IsEnabled() {
			consumer, err = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
			if err != nil {
				log.Warn().Err(err).Msg("kafka-consumer-unavailable")
				consumer = nil
			}
		}
	}
	defer producer.Close()

	mm := matchmaker.NewMatchmaker(
		matchmaker.WithTimeout(cfg.MatchmakingTimeout),
		matchmaker.WithGameOptions(
			game.WithBotSettings(cfg.Engine),
			game.WithReconnectWindow(cfg.ReconnectWindow),
		),
	)
	hub := websocket.NewHub(mm, websocket.WithBotMoveDelay(cfg.BotMoveDelay))

	mm.SetOnGameStart(producer.EmitGameStart)
	hub.SetOnMove(producer.EmitMove)
	hub.SetOnGameEnd(func(g *game.Game) {
		producer.EmitGameEnd(g)

		if store != nil {
			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.SaveGame(saveCtx, g); err != nil {
				log.Error().Err(err).Str("game_id", g.ID).Msg("saving game")
			}
		}
	})

	handler := websocket.NewHandler(hub, mm)
	apiHandlers := api.NewHandlers(store, mm, producer, consumer, cfg.Engine)
	router := api.NewRouter(apiHandlers, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(hub, handler, w, r)
	}))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	if consumer != nil {
		g.Go(func() error {
			return consumer.Run(ctx)
		})
	}

	g.Go(func() error {
		log.Info().
			Str("port", cfg.Port).
			Str("store", cfg.Store.Driver).
			Bool("kafka", producer.IsEnabled()).
			Int("engine_depth", cfg.Engine.Depth).
			Msg("server-starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting-down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
	log.Info().Msg("server-exited")
}
