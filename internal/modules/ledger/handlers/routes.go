package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all ledger routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/ledger", func(r chi.Router) {
		r.Get("/events", h.HandleGetEvents)
		r.Get("/positions", h.HandleGetPositions)

		// Recovery
		r.Get("/verify", h.HandleVerify)
		r.Post("/rebuild", h.HandleRebuild)
	})
}
