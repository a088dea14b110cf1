package handlers

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RegisterRoutes registers all snapshot routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/snapshots", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/latest", h.HandleLatest)
		r.With(middleware.Timeout(5*time.Minute)).Post("/backfill", h.HandleBackfill)
		r.Get("/{date}", h.HandleGet)
		r.Post("/{date}", h.HandleMaterialize)
	})
}
