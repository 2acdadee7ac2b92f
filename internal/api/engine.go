package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/euan-turner/Connect4/internal/game"
)

// MaxEngineDepth caps the depth a client may request
const MaxEngineDepth = 10

// BestMoveRequest asks for the engine's move in the position reached by
// playing Moves from the empty board. Depth 0 uses the server default.
type BestMoveRequest struct {
	Moves []int `json:"moves"`
	Depth int   `json:"depth"`
}

// EvaluateRequest asks for the static score of a position from Mark's side,
// given as a player number (1 or 2).
type EvaluateRequest struct {
	Moves []int `json:"moves"`
	Mark  int   `json:"mark"`
}

// EvaluateResponse carries the static score
type EvaluateResponse struct {
	Mark  int `json:"mark"`
	Score int `json:"score"`
}

// BestMove runs a search for the side to move
func (h *Handlers) BestMove(w http.ResponseWriter, r *http.Request) {
	var req BestMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Depth > MaxEngineDepth {
		http.Error(w, fmt.Sprintf("depth must be at most %d", MaxEngineDepth), http.StatusBadRequest)
		return
	}
	// NewBot would quietly replace a bad depth with the default.
	if req.Depth < 0 {
		writeEngineError(w, &game.PreconditionError{Reason: "depth must be at least 1"})
		return
	}

	board, err := game.BoardFromMoves(req.Moves)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	settings := h.engine
	if req.Depth != 0 {
		settings.Depth = req.Depth
	}

	bot := game.NewBot(board.SideToMove(), settings)
	res, err := bot.GetBestMove(r.Context(), board)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, res)
}

// Evaluate returns the heuristic score of a position
func (h *Handlers) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	mark := game.MarkFromPlayerNum(req.Mark)
	if !mark.IsPlayer() {
		http.Error(w, "mark must be 1 or 2", http.StatusBadRequest)
		return
	}

	board, err := game.BoardFromMoves(req.Moves)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	weights := h.engine.Weights
	if weights == (game.Weights{}) {
		weights = game.DefaultWeights
	}
	score := game.NewEvaluator(weights).Score(board, mark)

	respondJSON(w, http.StatusOK, EvaluateResponse{Mark: req.Mark, Score: score})
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrInvalidMove):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, game.ErrPrecondition):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		log.Error().Err(err).Msg("engine-request-failed")
		http.Error(w, "Engine error", http.StatusInternalServerError)
	}
}
