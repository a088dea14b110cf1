// Package pricing resolves prices for valuation and keeps open positions quoted.
package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/rs/zerolog"
)

// MaxFallbackDays bounds how far back a missing close is looked up
const MaxFallbackDays = 7

// Quote is a resolved price and the date it was observed on
type Quote struct {
	Date  time.Time
	Price float64
	// Live is set when the price is today's refreshed or live quote
	Live bool
}

// PriceLookup resolves the price of a symbol for a valuation date
type PriceLookup interface {
	Price(ctx context.Context, symbol string, date time.Time) (Quote, bool)
}

// PositionReader exposes refreshed prices of held symbols
type PositionReader interface {
	GetBySymbol(ctx context.Context, symbol string) (*domain.OpenPosition, error)
}

// FallbackDates lists the dates tried for a close on date: date itself when it
// is a weekday, then earlier weekdays within MaxFallbackDays calendar days.
func FallbackDates(date time.Time) []time.Time {
	d := domain.Day(date)
	oldest := d.AddDate(0, 0, -MaxFallbackDays)
	var out []time.Time
	for c := d; !c.Before(oldest); c = c.AddDate(0, 0, -1) {
		if !domain.IsWeekend(c) {
			out = append(out, c)
		}
	}
	return out
}

// Lookup fetches prices one date at a time
type Lookup struct {
	source    domain.PriceSource
	positions PositionReader
	clock     domain.Clock
	log       zerolog.Logger
}

// NewLookup creates a per-date price lookup. positions may be nil.
func NewLookup(source domain.PriceSource, positions PositionReader, clock domain.Clock, log zerolog.Logger) *Lookup {
	return &Lookup{
		source:    source,
		positions: positions,
		clock:     clock,
		log:       log.With().Str("service", "price_lookup").Logger(),
	}
}

// Price returns the live price for today and the close on or before date otherwise
func (l *Lookup) Price(ctx context.Context, symbol string, date time.Time) (Quote, bool) {
	d := domain.Day(date)
	if !d.Before(domain.Today(l.clock)) {
		if q, ok := l.live(ctx, symbol, d); ok {
			return q, true
		}
	}
	return l.closeOnOrBefore(ctx, symbol, d)
}

// live prefers a price refreshed today, then asks the source
func (l *Lookup) live(ctx context.Context, symbol string, today time.Time) (Quote, bool) {
	if q, ok := refreshedToday(ctx, l.positions, symbol, today); ok {
		return q, true
	}

	price, err := l.source.CurrentPrice(ctx, symbol)
	if err != nil || price <= 0 {
		l.log.Debug().Err(err).Str("symbol", symbol).Msg("No live price, falling back to closes")
		return Quote{}, false
	}
	return Quote{Date: today, Price: price, Live: true}, true
}

func (l *Lookup) closeOnOrBefore(ctx context.Context, symbol string, date time.Time) (Quote, bool) {
	for _, d := range FallbackDates(date) {
		if ctx.Err() != nil {
			return Quote{}, false
		}
		price, err := l.source.CloseOn(ctx, symbol, d)
		if err != nil {
			if !errors.Is(err, domain.ErrNoPrice) {
				l.log.Warn().Err(err).Str("symbol", symbol).Str("date", domain.FormatDate(d)).Msg("Close lookup failed")
			}
			continue
		}
		if price > 0 {
			return Quote{Date: d, Price: price}, true
		}
	}
	return Quote{}, false
}

func refreshedToday(ctx context.Context, positions PositionReader, symbol string, today time.Time) (Quote, bool) {
	if positions == nil {
		return Quote{}, false
	}
	p, err := positions.GetBySymbol(ctx, symbol)
	if err != nil || p == nil || p.CurrentPrice == nil || p.PriceUpdatedAt == nil {
		return Quote{}, false
	}
	if *p.CurrentPrice <= 0 || !domain.Day(*p.PriceUpdatedAt).Equal(today) {
		return Quote{}, false
	}
	return Quote{Date: today, Price: *p.CurrentPrice, Live: true}, true
}

// SeriesLookup answers from closes prefetched in one History call.
// Past dates resolve exactly like Lookup; today's price is delegated to live.
type SeriesLookup struct {
	series map[string]map[string]float64
	live   PriceLookup
	clock  domain.Clock
}

// NewSeriesLookup wraps prefetched closes. live may be nil.
func NewSeriesLookup(series map[string]map[string]float64, live PriceLookup, clock domain.Clock) *SeriesLookup {
	return &SeriesLookup{series: series, live: live, clock: clock}
}

// Price returns the close on or before date from the prefetched series
func (s *SeriesLookup) Price(ctx context.Context, symbol string, date time.Time) (Quote, bool) {
	d := domain.Day(date)
	if s.live != nil && !d.Before(domain.Today(s.clock)) {
		return s.live.Price(ctx, symbol, d)
	}

	closes := s.series[symbol]
	for _, c := range FallbackDates(d) {
		if price, ok := closes[domain.FormatDate(c)]; ok && price > 0 {
			return Quote{Date: c, Price: price}, true
		}
	}
	return Quote{}, false
}
