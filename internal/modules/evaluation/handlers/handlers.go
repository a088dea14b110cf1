// Package handlers provides HTTP handlers for decision accuracy evaluation.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/aristath/papertrail/internal/modules/evaluation"
	"github.com/rs/zerolog"
)

// Handler handles evaluation HTTP requests
type Handler struct {
	evaluator *evaluation.Evaluator
	clock     domain.Clock
	log       zerolog.Logger
}

// NewHandler creates a new evaluation handler
func NewHandler(evaluator *evaluation.Evaluator, clock domain.Clock, log zerolog.Logger) *Handler {
	return &Handler{
		evaluator: evaluator,
		clock:     clock,
		log:       log.With().Str("handler", "evaluation").Logger(),
	}
}

// HandleRun handles POST /api/evaluation/run
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	result, err := h.evaluator.EvaluatePending(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Accuracy evaluation failed")
		h.writeError(w, http.StatusInternalServerError, "Accuracy evaluation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": h.clock.Now().Format(time.RFC3339),
		},
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
