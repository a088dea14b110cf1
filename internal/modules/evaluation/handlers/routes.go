package handlers

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RegisterRoutes registers all evaluation routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/evaluation", func(r chi.Router) {
		// Evaluation fetches prices per action
		r.Use(middleware.Timeout(120 * time.Second))

		r.Post("/run", h.HandleRun)
	})
}
