package domain

import (
	"context"
	"time"
)

// PriceSource is the market-data boundary. Implementations may fail or
// return partial data; callers degrade rather than abort.
type PriceSource interface {
	// CurrentPrice returns the latest traded price
	CurrentPrice(ctx context.Context, symbol string) (float64, error)

	// CloseOn returns the close for exactly date; ErrNoPrice when the market had no bar
	CloseOn(ctx context.Context, symbol string, date time.Time) (float64, error)

	// History returns daily closes per symbol over [start, end], keyed by YYYY-MM-DD.
	// Symbols without data are absent from the result.
	History(ctx context.Context, symbols []string, start, end time.Time) (map[string]map[string]float64, error)
}

// BatchQuoter fetches current prices for many symbols in one request.
// Missing symbols are absent from the result.
type BatchQuoter interface {
	BatchQuotes(ctx context.Context, symbols []string) (map[string]float64, error)
}

// Proposer produces the day's proposed trades from the portfolio context
type Proposer interface {
	Propose(ctx context.Context, dc DecisionContext) (*Proposal, error)
}
