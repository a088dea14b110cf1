// Package handlers provides HTTP handlers for ledger operations.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/aristath/papertrail/internal/modules/ledger"
	"github.com/aristath/papertrail/internal/modules/replay"
	"github.com/rs/zerolog"
)

const defaultEventLimit = 100

// Verifier checks the open position cache against a full replay
type Verifier interface {
	Verify(ctx context.Context) (*replay.VerifyReport, error)
}

// Handler handles ledger HTTP requests
type Handler struct {
	store    *ledger.Store
	verifier Verifier
	clock    domain.Clock
	log      zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(
	store *ledger.Store,
	verifier Verifier,
	clock domain.Clock,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		store:    store,
		verifier: verifier,
		clock:    clock,
		log:      log.With().Str("handler", "ledger").Logger(),
	}
}

// HandleGetEvents handles GET /api/ledger/events?limit=&symbol=
func (h *Handler) HandleGetEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	var (
		events []domain.LedgerEvent
		err    error
	)
	if symbol := strings.ToUpper(r.URL.Query().Get("symbol")); symbol != "" {
		events, err = h.store.Events().ListForSymbol(r.Context(), symbol)
	} else {
		events, err = h.store.Events().Recent(r.Context(), limit)
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query ledger events")
		h.writeError(w, http.StatusInternalServerError, "Failed to query ledger events")
		return
	}
	if events == nil {
		events = []domain.LedgerEvent{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// HandleGetPositions handles GET /api/ledger/positions
func (h *Handler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.store.Positions().GetAll(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query open positions")
		h.writeError(w, http.StatusInternalServerError, "Failed to query open positions")
		return
	}
	if positions == nil {
		positions = []domain.OpenPosition{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"positions": positions,
		"count":     len(positions),
	})
}

// HandleVerify handles GET /api/ledger/verify
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	report, err := h.verifier.Verify(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Ledger verification failed")
		h.writeError(w, http.StatusInternalServerError, "Ledger verification failed")
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// HandleRebuild handles POST /api/ledger/rebuild
// Restores open_positions from a full replay of the ledger.
func (h *Handler) HandleRebuild(w http.ResponseWriter, r *http.Request) {
	report, err := h.verifier.Verify(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Ledger verification failed")
		h.writeError(w, http.StatusInternalServerError, "Ledger verification failed")
		return
	}

	if !report.InSync {
		if err := h.store.RebuildPositions(r.Context(), report.Holdings); err != nil {
			h.log.Error().Err(err).Msg("Failed to rebuild open positions")
			h.writeError(w, http.StatusInternalServerError, "Failed to rebuild open positions")
			return
		}
		h.log.Info().Int("holdings", len(report.Holdings)).Msg("Open positions rebuilt from ledger")
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"rebuilt":  !report.InSync,
		"holdings": len(report.Holdings),
	})
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
