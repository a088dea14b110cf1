// Package handlers provides HTTP handlers for benchmark comparison.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/aristath/papertrail/internal/modules/benchmark"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles benchmark HTTP requests
type Handler struct {
	aligner *benchmark.Aligner
	log     zerolog.Logger
}

// NewHandler creates a new benchmark handler
func NewHandler(aligner *benchmark.Aligner, log zerolog.Logger) *Handler {
	return &Handler{
		aligner: aligner,
		log:     log.With().Str("handler", "benchmark").Logger(),
	}
}

// RegisterRoutes registers benchmark routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/benchmark", h.HandleCompare)
}

// HandleCompare handles GET /api/benchmark?start=YYYY-MM-DD
func (h *Handler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	var start *time.Time
	if s := r.URL.Query().Get("start"); s != "" {
		d, err := domain.ParseDate(s)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		start = &d
	}

	cmp, err := h.aligner.Report(r.Context(), start)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build benchmark comparison")
		http.Error(w, "Failed to build benchmark comparison", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": cmp}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
