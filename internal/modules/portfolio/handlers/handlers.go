// Package handlers provides HTTP handlers for the portfolio read model.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/aristath/papertrail/internal/modules/portfolio"
	"github.com/rs/zerolog"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	service *portfolio.Service
	clock   domain.Clock
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolio.Service, clock domain.Clock, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		clock:   clock,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleGetHoldings handles GET /api/portfolio
func (h *Handler) HandleGetHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.service.Holdings(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get holdings")
		h.writeError(w, http.StatusInternalServerError, "Failed to get holdings")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"holdings": holdings,
		"count":    len(holdings),
	})
}

// HandleGetSummary handles GET /api/portfolio/summary
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get portfolio summary")
		h.writeError(w, http.StatusInternalServerError, "Failed to get portfolio summary")
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// HandleGetTransactions handles GET /api/portfolio/transactions?limit=
func (h *Handler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	events, err := h.service.Transactions(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get transactions")
		h.writeError(w, http.StatusInternalServerError, "Failed to get transactions")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": events,
		"count":        len(events),
	})
}

// HandleGetSectors handles GET /api/portfolio/sectors
func (h *Handler) HandleGetSectors(w http.ResponseWriter, r *http.Request) {
	sectors, err := h.service.Sectors(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get sector allocation")
		h.writeError(w, http.StatusInternalServerError, "Failed to get sector allocation")
		return
	}
	h.writeJSON(w, http.StatusOK, sectors)
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
