// Package handlers provides HTTP handlers for decision runs and records.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/aristath/papertrail/internal/modules/decisions"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles decision HTTP requests
type Handler struct {
	executor *decisions.Executor
	repo     *decisions.Repository
	clock    domain.Clock
	log      zerolog.Logger
}

// NewHandler creates a new decision handler
func NewHandler(executor *decisions.Executor, clock domain.Clock, log zerolog.Logger) *Handler {
	return &Handler{
		executor: executor,
		repo:     executor.Repository(),
		clock:    clock,
		log:      log.With().Str("handler", "decisions").Logger(),
	}
}

// HandleList handles GET /api/decisions?limit=
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 30
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := h.repo.List(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list decisions")
		h.writeError(w, http.StatusInternalServerError, "Failed to list decisions")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"decisions": records,
		"count":     len(records),
	})
}

// HandleGet handles GET /api/decisions/{date}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	date, err := domain.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.repo.GetByDate(r.Context(), date)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get decision")
		h.writeError(w, http.StatusInternalServerError, "Failed to get decision")
		return
	}
	if rec == nil {
		h.writeError(w, http.StatusNotFound, "Decision not found")
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// HandleRun handles POST /api/decisions/run?date=
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	date := domain.Today(h.clock)
	if s := r.URL.Query().Get("date"); s != "" {
		d, err := domain.ParseDate(s)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		date = d
	}

	result, err := h.executor.Run(r.Context(), date)
	if err != nil {
		if errors.Is(err, decisions.ErrFutureDate) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, decisions.ErrBackdated) {
			h.writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("Decision run failed")
		h.writeError(w, http.StatusInternalServerError, "Decision run failed")
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleDeleteFailed handles DELETE /api/decisions/{date}/failed
func (h *Handler) HandleDeleteFailed(w http.ResponseWriter, r *http.Request) {
	date, err := domain.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	deleted, err := h.repo.DeleteFailed(r.Context(), date)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to clear failed decision")
		h.writeError(w, http.StatusInternalServerError, "Failed to clear failed decision")
		return
	}
	if !deleted {
		h.writeError(w, http.StatusNotFound, "No failed decision for date")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": true})
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
