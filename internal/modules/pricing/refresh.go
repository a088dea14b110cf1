package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/rs/zerolog"
)

const (
	// DefaultRetryAttempts is the per-symbol attempt count for symbols missing from the batch
	DefaultRetryAttempts = 3
	// DefaultRetryDelay separates per-symbol attempts
	DefaultRetryDelay = 2 * time.Second
)

// PositionStore is the slice of the position repository the refresh needs
type PositionStore interface {
	GetAll(ctx context.Context) ([]domain.OpenPosition, error)
	UpdateCurrentPrice(ctx context.Context, symbol string, price float64, at time.Time) (bool, error)
}

// RefreshResult reports the outcome of a price refresh
type RefreshResult struct {
	Failed  []string `json:"failed"`
	Updated int      `json:"updated"`
	Total   int      `json:"total"`
}

// RefreshService updates current_price of every open position
type RefreshService struct {
	source     domain.PriceSource
	positions  PositionStore
	clock      domain.Clock
	attempts   int
	retryDelay time.Duration
	log        zerolog.Logger
}

// NewRefreshService creates a new price refresh service
func NewRefreshService(source domain.PriceSource, positions PositionStore, clock domain.Clock, log zerolog.Logger) *RefreshService {
	return &RefreshService{
		source:     source,
		positions:  positions,
		clock:      clock,
		attempts:   DefaultRetryAttempts,
		retryDelay: DefaultRetryDelay,
		log:        log.With().Str("service", "price_refresh").Logger(),
	}
}

// SetRetryPolicy overrides the per-symbol retry attempts and delay
func (s *RefreshService) SetRetryPolicy(attempts int, delay time.Duration) {
	if attempts < 1 {
		attempts = 1
	}
	s.attempts = attempts
	s.retryDelay = delay
}

// Refresh quotes all open positions in one batch, then retries the symbols the
// batch missed one by one. Individual failures never abort the refresh.
func (s *RefreshService) Refresh(ctx context.Context) (*RefreshResult, error) {
	positions, err := s.positions.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load positions: %w", err)
	}

	result := &RefreshResult{Total: len(positions), Failed: []string{}}
	if len(positions) == 0 {
		return result, nil
	}

	symbols := make([]string, 0, len(positions))
	for _, p := range positions {
		symbols = append(symbols, p.Symbol)
	}

	quotes := map[string]float64{}
	if quoter, ok := s.source.(domain.BatchQuoter); ok {
		batch, err := quoter.BatchQuotes(ctx, symbols)
		if err != nil {
			s.log.Warn().Err(err).Msg("Batch quote failed, falling back to per-symbol quotes")
		} else {
			quotes = batch
		}
	}

	now := s.clock.Now()
	for _, symbol := range symbols {
		price, ok := quotes[symbol]
		if !ok || price <= 0 {
			price, ok = s.quoteWithRetry(ctx, symbol)
		}
		if !ok {
			result.Failed = append(result.Failed, symbol)
			continue
		}

		updated, err := s.positions.UpdateCurrentPrice(ctx, symbol, price, now)
		if err != nil {
			return result, err
		}
		if updated {
			result.Updated++
		}
	}

	s.log.Info().
		Int("updated", result.Updated).
		Int("total", result.Total).
		Strs("failed", result.Failed).
		Msg("Prices refreshed")

	return result, nil
}

func (s *RefreshService) quoteWithRetry(ctx context.Context, symbol string) (float64, bool) {
	for attempt := 1; attempt <= s.attempts; attempt++ {
		price, err := s.source.CurrentPrice(ctx, symbol)
		if err == nil && price > 0 {
			return price, true
		}

		s.log.Warn().Err(err).Str("symbol", symbol).Int("attempt", attempt).Msg("Quote failed")
		if attempt == s.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return 0, false
		case <-time.After(s.retryDelay):
		}
	}
	return 0, false
}
