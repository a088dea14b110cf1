package testing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/papertrail/internal/domain"
)

// FakePriceSource is an in-memory domain.PriceSource and domain.BatchQuoter
type FakePriceSource struct {
	mu           sync.Mutex
	closes       map[string]map[string]float64
	live         map[string]float64
	liveFailures map[string]int
	batchSkip    map[string]bool
	historyErr   error

	CurrentCalls int
	CloseOnCalls int
	HistoryCalls int
	BatchCalls   int
}

// NewFakePriceSource creates an empty fake price source
func NewFakePriceSource() *FakePriceSource {
	return &FakePriceSource{
		closes:       make(map[string]map[string]float64),
		live:         make(map[string]float64),
		liveFailures: make(map[string]int),
		batchSkip:    make(map[string]bool),
	}
}

// SetClose records the close of symbol on date (YYYY-MM-DD)
func (f *FakePriceSource) SetClose(symbol, date string, price float64) *FakePriceSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closes[symbol] == nil {
		f.closes[symbol] = make(map[string]float64)
	}
	f.closes[symbol][date] = price
	return f
}

// SetLive sets the current price of symbol
func (f *FakePriceSource) SetLive(symbol string, price float64) *FakePriceSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live[symbol] = price
	return f
}

// FailLive makes the next n CurrentPrice calls for symbol fail
func (f *FakePriceSource) FailLive(symbol string, n int) *FakePriceSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.liveFailures[symbol] = n
	return f
}

// SkipInBatch leaves symbol out of BatchQuotes results
func (f *FakePriceSource) SkipInBatch(symbol string) *FakePriceSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchSkip[symbol] = true
	return f
}

// FailHistory makes History return err
func (f *FakePriceSource) FailHistory(err error) *FakePriceSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyErr = err
	return f
}

// CurrentPrice implements domain.PriceSource
func (f *FakePriceSource) CurrentPrice(_ context.Context, symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CurrentCalls++
	if f.liveFailures[symbol] > 0 {
		f.liveFailures[symbol]--
		return 0, fmt.Errorf("transient failure for %s", symbol)
	}
	price, ok := f.live[symbol]
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrNoPrice, symbol)
	}
	return price, nil
}

// CloseOn implements domain.PriceSource
func (f *FakePriceSource) CloseOn(_ context.Context, symbol string, date time.Time) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CloseOnCalls++
	price, ok := f.closes[symbol][domain.FormatDate(date)]
	if !ok {
		return 0, fmt.Errorf("%w: %s on %s", domain.ErrNoPrice, symbol, domain.FormatDate(date))
	}
	return price, nil
}

// History implements domain.PriceSource
func (f *FakePriceSource) History(_ context.Context, symbols []string, start, end time.Time) (map[string]map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.HistoryCalls++
	if f.historyErr != nil {
		return nil, f.historyErr
	}

	from, to := domain.FormatDate(start), domain.FormatDate(end)
	out := make(map[string]map[string]float64)
	for _, symbol := range symbols {
		for date, price := range f.closes[symbol] {
			if date < from || date > to {
				continue
			}
			if out[symbol] == nil {
				out[symbol] = make(map[string]float64)
			}
			out[symbol][date] = price
		}
	}
	return out, nil
}

// BatchQuotes implements domain.BatchQuoter
func (f *FakePriceSource) BatchQuotes(_ context.Context, symbols []string) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.BatchCalls++
	out := make(map[string]float64)
	for _, symbol := range symbols {
		if f.batchSkip[symbol] {
			continue
		}
		if price, ok := f.live[symbol]; ok {
			out[symbol] = price
		}
	}
	return out, nil
}
