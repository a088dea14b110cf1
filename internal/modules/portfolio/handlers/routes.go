package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/", h.HandleGetHoldings)                 // Open positions with allocation
		r.Get("/summary", h.HandleGetSummary)           // Value, cash, P&L, risk metrics
		r.Get("/transactions", h.HandleGetTransactions) // Ledger events, newest first
		r.Get("/sectors", h.HandleGetSectors)           // Allocation by sector
	})
}
