package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/euan-turner/Connect4/internal/game"
	"github.com/euan-turner/Connect4/internal/kafka"
	"github.com/euan-turner/Connect4/internal/matchmaker"
	"github.com/euan-turner/Connect4/internal/storage"
)

// Handlers holds API handler dependencies. store and consumer may be nil
// when the server runs without a database or without Kafka.
type Handlers struct {
	store      storage.Store
	matchmaker *matchmaker.Matchmaker
	producer   *kafka.Producer
	consumer   *kafka.Consumer
	engine     game.BotSettings
}

// NewHandlers creates a new API handlers instance
func NewHandlers(store storage.Store, mm *matchmaker.Matchmaker, producer *kafka.Producer, consumer *kafka.Consumer, engine game.BotSettings) *Handlers {
	return &Handlers{
		store:      store,
		matchmaker: mm,
		producer:   producer,
		consumer:   consumer,
		engine:     engine,
	}
}

// RegisterRoutes registers API routes
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/leaderboard", h.GetLeaderboard)
	r.Delete("/leaderboard", h.ClearLeaderboard)
	r.Get("/stats/{username}", h.GetPlayerStats)
	r.Get("/analytics", h.GetAnalytics)
	r.Get("/status", h.GetStatus)

	r.Route("/engine", func(r chi.Router) {
		r.Post("/best-move", h.BestMove)
		r.Post("/evaluate", h.Evaluate)
	})
}

// requireStore writes 503 and returns false when no database is configured
func (h *Handlers) requireStore(w http.ResponseWriter) bool {
	if h.store == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// GetLeaderboard returns the top players. ?limit= overrides the default.
func (h *Handlers) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := h.store.GetLeaderboard(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("leaderboard-query-failed")
		http.Error(w, "Failed to get leaderboard", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []storage.LeaderboardEntry{}
	}

	respondJSON(w, http.StatusOK, entries)
}

// ClearLeaderboard deletes all games and resets the leaderboard
func (h *Handlers) ClearLeaderboard(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	if err := h.store.ClearAllGames(r.Context()); err != nil {
		log.Error().Err(err).Msg("clear-games-failed")
		http.Error(w, "Failed to clear leaderboard", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Leaderboard cleared successfully"})
}

// GetPlayerStats returns statistics for a specific player
func (h *Handlers) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	username := chi.URLParam(r, "username")
	if username == "" {
		http.Error(w, "Username required", http.StatusBadRequest)
		return
	}

	stats, err := h.store.GetPlayerStats(r.Context(), username)
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("player-stats-query-failed")
		http.Error(w, "Failed to get player stats", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// GetAnalytics returns database analytics, live counters and Kafka metrics
func (h *Handlers) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"realtime": h.realtime(),
	}

	if h.store != nil {
		dbAnalytics, err := h.store.GetAnalytics(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("analytics-query-failed")
			http.Error(w, "Failed to get analytics", http.StatusInternalServerError)
			return
		}
		response["database"] = dbAnalytics
	}

	if h.consumer != nil {
		response["kafka"] = map[string]any{
			"avgGameDuration":    h.consumer.GetAverageGameDuration(),
			"mostFrequentWinner": h.consumer.GetMostFrequentWinner(),
			"gamesPerHour":       h.consumer.GetGamesPerHour(),
			"metrics":            h.consumer.GetMetrics(),
		}
	}

	respondJSON(w, http.StatusOK, response)
}

// GetStatus returns server status
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := h.realtime()
	status["status"] = "ok"
	status["databaseEnabled"] = h.store != nil
	respondJSON(w, http.StatusOK, status)
}

func (h *Handlers) realtime() map[string]any {
	return map[string]any{
		"activeGames":    h.matchmaker.GetActiveGameCount(),
		"playersWaiting": h.matchmaker.GetWaitingCount(),
		"kafkaEnabled":   h.producer.IsEnabled(),
	}
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("response-encode-failed")
	}
}
