package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/rs/zerolog"
)

// CachedSource decorates a PriceSource with the cache.db price cache.
// Closes from before today are final and served from the cache once stored.
type CachedSource struct {
	source domain.PriceSource
	cache  *CacheRepository
	clock  domain.Clock
	log    zerolog.Logger
}

// NewCachedSource wraps source with cache
func NewCachedSource(source domain.PriceSource, cache *CacheRepository, clock domain.Clock, log zerolog.Logger) *CachedSource {
	return &CachedSource{
		source: source,
		cache:  cache,
		clock:  clock,
		log:    log.With().Str("service", "cached_prices").Logger(),
	}
}

// CurrentPrice is never cached
func (s *CachedSource) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return s.source.CurrentPrice(ctx, symbol)
}

// BatchQuotes passes through when the wrapped source supports batching
func (s *CachedSource) BatchQuotes(ctx context.Context, symbols []string) (map[string]float64, error) {
	if quoter, ok := s.source.(domain.BatchQuoter); ok {
		return quoter.BatchQuotes(ctx, symbols)
	}
	return map[string]float64{}, nil
}

// CloseOn serves final closes from the cache and stores fresh ones
func (s *CachedSource) CloseOn(ctx context.Context, symbol string, date time.Time) (float64, error) {
	final := s.isFinal(date)
	if final {
		if price, ok, err := s.cache.Get(ctx, symbol, date); err == nil && ok {
			return price, nil
		} else if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Price cache read failed")
		}
	}

	price, err := s.source.CloseOn(ctx, symbol, date)
	if err != nil {
		return 0, err
	}
	if final {
		s.store(ctx, symbol, map[string]float64{domain.FormatDate(date): price})
	}
	return price, nil
}

// History fetches from the source and caches final closes. When the source
// fails, cached closes for the range are returned instead.
func (s *CachedSource) History(ctx context.Context, symbols []string, start, end time.Time) (map[string]map[string]float64, error) {
	history, err := s.source.History(ctx, symbols, start, end)
	if err != nil {
		s.log.Warn().Err(err).Int("symbols", len(symbols)).Msg("History fetch failed, serving from cache")
		return s.fromCache(ctx, symbols, start, end)
	}

	for symbol, closes := range history {
		final := make(map[string]float64, len(closes))
		for date, price := range closes {
			if d, err := domain.ParseDate(date); err == nil && s.isFinal(d) {
				final[date] = price
			}
		}
		s.store(ctx, symbol, final)
	}
	return history, nil
}

func (s *CachedSource) fromCache(ctx context.Context, symbols []string, start, end time.Time) (map[string]map[string]float64, error) {
	out := make(map[string]map[string]float64, len(symbols))
	for _, symbol := range symbols {
		closes, err := s.cache.Range(ctx, symbol, start, end)
		if err != nil {
			return nil, fmt.Errorf("price history unavailable for %s: %w", symbol, err)
		}
		if len(closes) > 0 {
			out[symbol] = closes
		}
	}
	return out, nil
}

func (s *CachedSource) store(ctx context.Context, symbol string, closes map[string]float64) {
	if err := s.cache.PutMany(ctx, symbol, closes, s.clock.Now()); err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache prices")
	}
}

func (s *CachedSource) isFinal(date time.Time) bool {
	return domain.Day(date).Before(domain.Today(s.clock))
}
