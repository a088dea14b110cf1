// Package handlers provides HTTP handlers for equity-curve snapshots.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/aristath/papertrail/internal/modules/snapshots"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles snapshot HTTP requests
type Handler struct {
	materializer *snapshots.Materializer
	repo         *snapshots.Repository
	inception    time.Time
	clock        domain.Clock
	log          zerolog.Logger
}

// NewHandler creates a new snapshot handler
func NewHandler(
	materializer *snapshots.Materializer,
	inception time.Time,
	clock domain.Clock,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		materializer: materializer,
		repo:         materializer.Repository(),
		inception:    inception,
		clock:        clock,
		log:          log.With().Str("handler", "snapshots").Logger(),
	}
}

// HandleList handles GET /api/snapshots?start=YYYY-MM-DD
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	var start *time.Time
	if s := r.URL.Query().Get("start"); s != "" {
		d, err := domain.ParseDate(s)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		start = &d
	}

	list, err := h.repo.List(r.Context(), start)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list snapshots")
		h.writeError(w, http.StatusInternalServerError, "Failed to list snapshots")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"snapshots": list,
		"count":     len(list),
	})
}

// HandleLatest handles GET /api/snapshots/latest
func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	snap, err := h.repo.Latest(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get latest snapshot")
		h.writeError(w, http.StatusInternalServerError, "Failed to get latest snapshot")
		return
	}
	if snap == nil {
		h.writeError(w, http.StatusNotFound, "No snapshots yet")
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

// HandleGet handles GET /api/snapshots/{date}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	date, err := domain.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.repo.GetByDate(r.Context(), date)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get snapshot")
		h.writeError(w, http.StatusInternalServerError, "Failed to get snapshot")
		return
	}
	if snap == nil {
		h.writeError(w, http.StatusNotFound, "Snapshot not found")
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

// HandleMaterialize handles POST /api/snapshots/{date}
func (h *Handler) HandleMaterialize(w http.ResponseWriter, r *http.Request) {
	date, err := domain.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if date.After(domain.Today(h.clock)) {
		h.writeError(w, http.StatusBadRequest, "Cannot materialize a future date")
		return
	}

	snap, err := h.materializer.Materialize(r.Context(), date)
	if err != nil {
		h.log.Error().Err(err).Str("date", domain.FormatDate(date)).Msg("Failed to materialize snapshot")
		h.writeError(w, http.StatusInternalServerError, "Failed to materialize snapshot")
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

// HandleBackfill handles POST /api/snapshots/backfill?start=&end=&only_missing=
func (h *Handler) HandleBackfill(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start := h.inception
	if s := q.Get("start"); s != "" {
		d, err := domain.ParseDate(s)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		start = d
	}

	end := domain.Today(h.clock)
	if s := q.Get("end"); s != "" {
		d, err := domain.ParseDate(s)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		end = d
	}

	onlyMissing := q.Get("only_missing") != "false"

	result, err := h.materializer.Backfill(r.Context(), start, end, onlyMissing)
	if err != nil {
		h.log.Error().Err(err).Msg("Snapshot backfill failed")
		h.writeError(w, http.StatusInternalServerError, "Snapshot backfill failed")
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
