// Package benchmark aligns reference index returns with the portfolio equity curve.
package benchmark

import (
	"context"
	"sort"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/aristath/papertrail/pkg/formulas"
	"github.com/rs/zerolog"
)

// Comparison is the portfolio and benchmark return series on one date axis.
// Missing points are null, never zero.
type Comparison struct {
	Benchmarks          map[string][]*float64 `json:"benchmarks"`
	PortfolioStartIndex *int                  `json:"portfolio_start_index"`
	Dates               []string              `json:"dates"`
	Portfolio           []*float64            `json:"portfolio"`
	Inception           string                `json:"inception"`
}

// SnapshotLister lists snapshots from a start date
type SnapshotLister interface {
	List(ctx context.Context, start *time.Time) ([]domain.Snapshot, error)
}

// Aligner builds benchmark comparisons
type Aligner struct {
	source    domain.PriceSource
	snapshots SnapshotLister
	tickers   []string
	inception time.Time
	clock     domain.Clock
	log       zerolog.Logger
}

// NewAligner creates a new benchmark aligner
func NewAligner(
	source domain.PriceSource,
	snapshots SnapshotLister,
	tickers []string,
	inception time.Time,
	clock domain.Clock,
	log zerolog.Logger,
) *Aligner {
	return &Aligner{
		source:    source,
		snapshots: snapshots,
		tickers:   tickers,
		inception: domain.Day(inception),
		clock:     clock,
		log:       log.With().Str("service", "benchmark").Logger(),
	}
}

// Report compares stored snapshots against the configured tickers from start
// (inception when nil)
func (a *Aligner) Report(ctx context.Context, start *time.Time) (*Comparison, error) {
	from := a.inception
	if start != nil {
		from = domain.Day(*start)
	}
	series, err := a.snapshots.List(ctx, &from)
	if err != nil {
		return nil, err
	}
	return a.Compare(ctx, series, a.tickers, from), nil
}

// Compare fetches daily closes for tickers from inception to today, rebases
// them to 0 at the first available point and aligns them with the portfolio's
// total return series. A ticker without data is all null.
func (a *Aligner) Compare(ctx context.Context, series []domain.Snapshot, tickers []string, inception time.Time) *Comparison {
	inception = domain.Day(inception)
	end := domain.Today(a.clock)
	for _, s := range series {
		if s.Date.After(end) {
			end = s.Date
		}
	}

	history := map[string]map[string]float64{}
	if len(tickers) > 0 {
		fetched, err := a.source.History(ctx, tickers, inception, end)
		if err != nil {
			a.log.Warn().Err(err).Strs("tickers", tickers).Msg("Benchmark history unavailable")
		} else {
			history = fetched
		}
	}

	rebased := make(map[string]map[string]float64, len(tickers))
	axis := map[string]bool{domain.FormatDate(inception): true}
	for _, ticker := range tickers {
		rebased[ticker] = RebaseSeries(history[ticker])
		for date := range rebased[ticker] {
			axis[date] = true
		}
	}

	portfolio := make(map[string]float64, len(series))
	for _, s := range series {
		if s.Date.Before(inception) {
			continue
		}
		date := domain.FormatDate(s.Date)
		portfolio[date] = s.TotalReturnPct
		axis[date] = true
	}

	dates := make([]string, 0, len(axis))
	for date := range axis {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	cmp := &Comparison{
		Benchmarks: make(map[string][]*float64, len(tickers)),
		Dates:      dates,
		Portfolio:  ForwardFill(dates, portfolio),
		Inception:  domain.FormatDate(inception),
	}
	for i, v := range cmp.Portfolio {
		if v != nil {
			idx := i
			cmp.PortfolioStartIndex = &idx
			break
		}
	}

	for _, ticker := range tickers {
		values := make([]*float64, len(dates))
		points := rebased[ticker]
		for i, date := range dates {
			if v, ok := points[date]; ok {
				value := v
				values[i] = &value
			}
		}
		// Inception reads 0 even when it was not a trading day
		if len(points) > 0 && values[0] == nil {
			zero := 0.0
			values[0] = &zero
		}
		cmp.Benchmarks[ticker] = values
	}

	return cmp
}

// Rebase shifts a return series so its first point reads 0
func Rebase(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	for i, v := range values {
		out[i] = formulas.Round(v-values[0], 2)
	}
	return out
}

// PercentReturns converts closes to percent returns against the first close
func PercentReturns(closes []float64) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 || closes[0] <= 0 {
		return out
	}
	for i, c := range closes {
		out[i] = formulas.PercentChange(closes[0], c)
	}
	return out
}

// RebaseSeries converts date-keyed closes into date-keyed rebased returns
func RebaseSeries(closes map[string]float64) map[string]float64 {
	dates := make([]string, 0, len(closes))
	for date, c := range closes {
		if c > 0 {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)

	values := make([]float64, len(dates))
	for i, date := range dates {
		values[i] = closes[date]
	}
	rebased := Rebase(PercentReturns(values))

	out := make(map[string]float64, len(dates))
	for i, date := range dates {
		out[date] = rebased[i]
	}
	return out
}

// ForwardFill lays values over dates, carrying the last known value forward.
// Dates before the first known value are null.
func ForwardFill(dates []string, values map[string]float64) []*float64 {
	out := make([]*float64, len(dates))
	var last *float64
	for i, date := range dates {
		if v, ok := values[date]; ok {
			value := v
			last = &value
		}
		if last != nil {
			value := *last
			out[i] = &value
		}
	}
	return out
}
