package snapshots

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/aristath/papertrail/internal/modules/pricing"
	"github.com/aristath/papertrail/internal/modules/replay"
	"github.com/aristath/papertrail/pkg/formulas"
	"github.com/rs/zerolog"
)

// Replayer reconstructs the ledger state at a cutoff
type Replayer interface {
	StateAsOf(ctx context.Context, cutoff *time.Time) (replay.State, error)
}

// BackfillResult reports a bulk materialization
type BackfillResult struct {
	Errors       []string `json:"errors"`
	Materialized int      `json:"materialized"`
	Skipped      int      `json:"skipped"`
	Failed       int      `json:"failed"`
}

// Materializer computes and stores snapshots. Every run recomputes the row
// from the ledger and prices; nothing is accumulated from earlier snapshots.
type Materializer struct {
	replayer       Replayer
	repo           *Repository
	source         domain.PriceSource
	positions      pricing.PositionReader
	initialCapital float64
	clock          domain.Clock
	log            zerolog.Logger
}

// NewMaterializer creates a new snapshot materializer
func NewMaterializer(
	replayer Replayer,
	repo *Repository,
	source domain.PriceSource,
	positions pricing.PositionReader,
	initialCapital float64,
	clock domain.Clock,
	log zerolog.Logger,
) *Materializer {
	return &Materializer{
		replayer:       replayer,
		repo:           repo,
		source:         source,
		positions:      positions,
		initialCapital: initialCapital,
		clock:          clock,
		log:            log.With().Str("service", "snapshots").Logger(),
	}
}

// Repository returns the snapshot repository
func (m *Materializer) Repository() *Repository {
	return m.repo
}

// Materialize computes and upserts the snapshot for date using per-date price lookups
func (m *Materializer) Materialize(ctx context.Context, date time.Time) (*domain.Snapshot, error) {
	return m.MaterializeWith(ctx, date, m.liveLookup())
}

// MaterializeWith computes and upserts the snapshot for date using lookup
func (m *Materializer) MaterializeWith(ctx context.Context, date time.Time, lookup pricing.PriceLookup) (*domain.Snapshot, error) {
	d := domain.Day(date)
	state, err := m.replayer.StateAsOf(ctx, &d)
	if err != nil {
		return nil, fmt.Errorf("failed to replay ledger to %s: %w", domain.FormatDate(d), err)
	}

	snap := Compute(ctx, d, state, lookup, m.initialCapital)
	snap.MaterializedAt = m.clock.Now()

	if err := m.repo.Upsert(ctx, snap); err != nil {
		return nil, err
	}

	m.log.Info().
		Str("date", domain.FormatDate(d)).
		Float64("portfolio_value", snap.PortfolioValue).
		Float64("total_return_pct", snap.TotalReturnPct).
		Int("holdings", len(snap.Holdings)).
		Msg("Snapshot materialized")

	return &snap, nil
}

// Backfill materializes every weekday in [start, end] with a single history
// prefetch for all symbols held anywhere in the range. With onlyMissing, dates
// that already have a snapshot are left alone.
func (m *Materializer) Backfill(ctx context.Context, start, end time.Time, onlyMissing bool) (*BackfillResult, error) {
	result := &BackfillResult{Errors: []string{}}
	start, end = domain.Day(start), domain.Day(end)
	if today := domain.Today(m.clock); end.After(today) {
		end = today
	}
	if start.After(end) {
		return result, nil
	}

	var existing map[string]bool
	if onlyMissing {
		var err error
		if existing, err = m.repo.ExistingDates(ctx, start, end); err != nil {
			return nil, err
		}
	}

	type pending struct {
		date  time.Time
		state replay.State
	}
	var todo []pending
	symbols := make(map[string]bool)

	for _, d := range domain.Weekdays(start, end) {
		if existing[domain.FormatDate(d)] {
			result.Skipped++
			continue
		}
		cutoff := d
		state, err := m.replayer.StateAsOf(ctx, &cutoff)
		if err != nil {
			return nil, fmt.Errorf("failed to replay ledger to %s: %w", domain.FormatDate(d), err)
		}
		for _, h := range state.Holdings {
			symbols[h.Symbol] = true
		}
		todo = append(todo, pending{date: d, state: state})
	}
	if len(todo) == 0 {
		return result, nil
	}

	symbolList := make([]string, 0, len(symbols))
	for s := range symbols {
		symbolList = append(symbolList, s)
	}
	sort.Strings(symbolList)

	series := map[string]map[string]float64{}
	if len(symbolList) > 0 {
		fetched, err := m.source.History(ctx, symbolList, start.AddDate(0, 0, -pricing.MaxFallbackDays), end)
		if err != nil {
			// Degrade to missing prices rather than fail the whole range
			m.log.Warn().Err(err).Int("symbols", len(symbolList)).Msg("History prefetch failed")
		} else {
			series = fetched
		}
	}
	lookup := pricing.NewSeriesLookup(series, m.liveLookup(), m.clock)

	for _, p := range todo {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		snap := Compute(ctx, p.date, p.state, lookup, m.initialCapital)
		snap.MaterializedAt = m.clock.Now()
		if err := m.repo.Upsert(ctx, snap); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Materialized++
	}

	m.log.Info().
		Str("start", domain.FormatDate(start)).
		Str("end", domain.FormatDate(end)).
		Int("materialized", result.Materialized).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("Snapshot backfill completed")

	return result, nil
}

func (m *Materializer) liveLookup() *pricing.Lookup {
	return pricing.NewLookup(m.source, m.positions, m.clock, m.log)
}

// Compute values a replayed state at date. A holding without any quote is
// valued at its buy price and flagged.
func Compute(ctx context.Context, date time.Time, state replay.State, lookup pricing.PriceLookup, initialCapital float64) domain.Snapshot {
	holdings := make([]domain.HoldingSnapshot, 0, len(state.Holdings))
	holdingsValue := 0.0

	for _, h := range state.Holdings {
		price, missing := h.BuyPrice, true
		if q, ok := lookup.Price(ctx, h.Symbol, date); ok {
			price, missing = q.Price, false
		}

		shares := h.Shares()
		value := shares * price
		holdingsValue += value

		holdings = append(holdings, domain.HoldingSnapshot{
			Symbol:       h.Symbol,
			Name:         h.Name,
			BuyPrice:     h.BuyPrice,
			Price:        price,
			Shares:       formulas.Round(shares, 4),
			CostAmount:   h.CostAmount,
			Value:        formulas.RoundMoney(value),
			ReturnPct:    formulas.Round(formulas.PercentChange(h.BuyPrice, price), 2),
			PriceMissing: missing,
		})
	}

	cash := formulas.RoundMoney(state.Cash)
	holdingsValue = formulas.RoundMoney(holdingsValue)
	portfolioValue := formulas.RoundMoney(cash + holdingsValue)

	totalReturn := 0.0
	if initialCapital > 0 {
		totalReturn = (portfolioValue - initialCapital) / initialCapital * 100
	}

	return domain.Snapshot{
		Date:           domain.Day(date),
		Holdings:       holdings,
		PortfolioValue: portfolioValue,
		Cash:           cash,
		HoldingsValue:  holdingsValue,
		TotalReturnPct: formulas.Round(totalReturn, 4),
		RealizedPnL:    formulas.RoundMoney(state.RealizedPnL),
	}
}
