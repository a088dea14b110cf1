package handlers

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RegisterRoutes registers all decision routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/decisions", func(r chi.Router) {
		r.Get("/", h.HandleList)
		// Waits on the proposer, which may take minutes
		r.With(middleware.Timeout(6*time.Minute)).Post("/run", h.HandleRun)
		r.Get("/{date}", h.HandleGet)
		r.Delete("/{date}/failed", h.HandleDeleteFailed)
	})
}
