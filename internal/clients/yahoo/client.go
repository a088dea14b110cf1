// Package yahoo provides the Yahoo Finance price source backed by go-yfinance.
package yahoo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/aristath/papertrail/pkg/formulas"
	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/multi"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
)

const (
	// DefaultMaxRetries is how many times a failed Yahoo request is attempted
	DefaultMaxRetries = 3
	// DefaultRetryDelay is the first backoff wait; it doubles per attempt
	DefaultRetryDelay = time.Second
)

type (
	quoteFetcher func(symbol string) (*models.Quote, error)
	barsFetcher  func(symbols []string, params *models.DownloadParams) (*models.MultiTickerResult, error)
)

// Client implements domain.PriceSource and domain.BatchQuoter
type Client struct {
	fetchQuote quoteFetcher
	fetchBars  barsFetcher
	maxRetries int
	retryDelay time.Duration
	clock      domain.Clock
	log        zerolog.Logger
}

// NewClient creates a new Yahoo Finance client
func NewClient(clock domain.Clock, log zerolog.Logger) *Client {
	return &Client{
		fetchQuote: fetchQuote,
		fetchBars:  multi.Download,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		clock:      clock,
		log:        log.With().Str("client", "yahoo").Logger(),
	}
}

// SetRetryPolicy overrides the attempt count and the first backoff delay
func (c *Client) SetRetryPolicy(attempts int, delay time.Duration) {
	if attempts < 1 {
		attempts = 1
	}
	c.maxRetries = attempts
	c.retryDelay = delay
}

// CurrentPrice returns the regular market price, falling back to pre/post market
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	symbol = normalize(symbol)

	var quote *models.Quote
	err := c.withRetry(ctx, "quote "+symbol, func() error {
		q, err := c.fetchQuote(symbol)
		if err != nil {
			return fmt.Errorf("failed to get quote for %s: %w", symbol, err)
		}
		quote = q
		return nil
	})
	if err != nil {
		return 0, err
	}
	if quote == nil {
		return 0, fmt.Errorf("%w: empty quote for %s", domain.ErrNoPrice, symbol)
	}

	for _, p := range []float64{quote.RegularMarketPrice, quote.PostMarketPrice, quote.PreMarketPrice} {
		if p > 0 {
			return formulas.RoundPrice(p), nil
		}
	}
	return 0, fmt.Errorf("%w: %s", domain.ErrNoPrice, symbol)
}

func fetchQuote(symbol string) (*models.Quote, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()
	return t.Quote()
}

// withRetry runs fn up to maxRetries times, waiting retryDelay<<attempt
// between attempts. Cancelling ctx stops the loop.
func (c *Client) withRetry(ctx context.Context, what string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == c.maxRetries-1 {
			break
		}

		wait := c.retryDelay * time.Duration(1<<uint(attempt))
		c.log.Warn().
			Err(lastErr).
			Str("request", what).
			Int("attempt", attempt+1).
			Dur("wait", wait).
			Msg("Yahoo request failed, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("%w (after %d attempts)", lastErr, c.maxRetries)
}

// BatchQuotes fetches the latest close of many symbols in one download.
// Symbols that fail are logged and left out of the result.
func (c *Client) BatchQuotes(ctx context.Context, symbols []string) (map[string]float64, error) {
	quotes := make(map[string]float64, len(symbols))
	if len(symbols) == 0 {
		return quotes, nil
	}

	bars, err := c.download(ctx, symbols, "5d")
	if err != nil {
		return nil, err
	}
	for symbol, series := range bars {
		if len(series) == 0 {
			continue
		}
		if last := series[len(series)-1].Close; last > 0 {
			quotes[symbol] = formulas.RoundPrice(last)
		}
	}
	return quotes, nil
}

// CloseOn returns the close for exactly date
func (c *Client) CloseOn(ctx context.Context, symbol string, date time.Time) (float64, error) {
	history, err := c.History(ctx, []string{symbol}, date, date)
	if err != nil {
		return 0, err
	}
	if closeOn, ok := history[normalize(symbol)][domain.FormatDate(date)]; ok {
		return closeOn, nil
	}
	return 0, fmt.Errorf("%w: %s on %s", domain.ErrNoPrice, symbol, domain.FormatDate(date))
}

// History returns daily closes over [start, end] keyed by YYYY-MM-DD
func (c *Client) History(ctx context.Context, symbols []string, start, end time.Time) (map[string]map[string]float64, error) {
	result := make(map[string]map[string]float64, len(symbols))
	if len(symbols) == 0 {
		return result, nil
	}

	bars, err := c.download(ctx, symbols, periodFor(start, c.clock.Now()))
	if err != nil {
		return nil, err
	}
	for symbol, series := range bars {
		if closes := closesBetween(series, start, end); len(closes) > 0 {
			result[symbol] = closes
		}
	}
	return result, nil
}

func (c *Client) download(ctx context.Context, symbols []string, period string) (map[string][]models.Bar, error) {
	normalized := make([]string, 0, len(symbols))
	for _, s := range symbols {
		normalized = append(normalized, normalize(s))
	}
	sort.Strings(normalized)

	params := models.DefaultDownloadParams()
	params.Symbols = normalized
	params.Period = period
	params.Interval = "1d"

	var result *models.MultiTickerResult
	err := c.withRetry(ctx, "download "+strings.Join(normalized, ","), func() error {
		r, err := c.fetchBars(normalized, &params)
		if err != nil {
			return fmt.Errorf("failed to download %d symbols: %w", len(normalized), err)
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return map[string][]models.Bar{}, nil
	}

	out := make(map[string][]models.Bar, len(normalized))
	for _, symbol := range normalized {
		if bars, ok := result.Data[symbol]; ok && len(bars) > 0 {
			out[symbol] = bars
		} else if err, ok := result.Errors[symbol]; ok {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to download prices for symbol")
		}
	}

	c.log.Debug().
		Int("requested", len(normalized)).
		Int("received", len(out)).
		Str("period", period).
		Msg("Downloaded price history")

	return out, nil
}

// closesBetween keys positive closes in [start, end] by their UTC date
func closesBetween(bars []models.Bar, start, end time.Time) map[string]float64 {
	from, to := domain.Day(start), domain.Day(end)
	closes := make(map[string]float64)
	for _, bar := range bars {
		d := domain.Day(bar.Date)
		if d.Before(from) || d.After(to) || bar.Close <= 0 {
			continue
		}
		closes[domain.FormatDate(d)] = formulas.RoundPrice(bar.Close)
	}
	return closes
}

// periodFor picks the shortest Yahoo period that reaches back to start
func periodFor(start, now time.Time) string {
	days := domain.Day(now).Sub(domain.Day(start)).Hours() / 24
	switch {
	case days <= 4:
		return "5d"
	case days <= 28:
		return "1mo"
	case days <= 88:
		return "3mo"
	case days <= 178:
		return "6mo"
	case days <= 360:
		return "1y"
	case days <= 725:
		return "2y"
	case days <= 1820:
		return "5y"
	default:
		return "max"
	}
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
