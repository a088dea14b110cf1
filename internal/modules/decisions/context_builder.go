package decisions

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/aristath/papertrail/internal/modules/replay"
	"github.com/aristath/papertrail/pkg/formulas"
	"github.com/rs/zerolog"
)

const (
	// RecentEventLimit is how many ledger events the proposer sees
	RecentEventLimit = 20
	// IndicatorLookbackDays is the calendar window fetched for RSI/SMA
	IndicatorLookbackDays = 60

	rsiPeriod = 14
	smaPeriod = 20
)

// PositionReader lists open positions
type PositionReader interface {
	GetAll(ctx context.Context) ([]domain.OpenPosition, error)
	GetBySymbol(ctx context.Context, symbol string) (*domain.OpenPosition, error)
}

// EventReader lists recent ledger events
type EventReader interface {
	Recent(ctx context.Context, limit int) ([]domain.LedgerEvent, error)
}

// CashReplayer derives cash by replaying the ledger
type CashReplayer interface {
	CashAsOf(ctx context.Context, cutoff *time.Time) (replay.CashBalance, error)
}

// ContextBuilder assembles the DecisionContext handed to the proposer
type ContextBuilder struct {
	positions PositionReader
	events    EventReader
	cash      CashReplayer
	source    domain.PriceSource
	capital   domain.Capital
	log       zerolog.Logger
}

// NewContextBuilder creates a new context builder. source may be nil,
// in which case holdings carry no indicators.
func NewContextBuilder(
	positions PositionReader,
	events EventReader,
	cash CashReplayer,
	source domain.PriceSource,
	capital domain.Capital,
	log zerolog.Logger,
) *ContextBuilder {
	return &ContextBuilder{
		positions: positions,
		events:    events,
		cash:      cash,
		source:    source,
		capital:   capital,
		log:       log.With().Str("service", "decision_context").Logger(),
	}
}

// Build gathers open positions, recent events and replayed cash for date
func (b *ContextBuilder) Build(ctx context.Context, date time.Time) (domain.DecisionContext, error) {
	date = domain.Day(date)
	dc := domain.DecisionContext{
		Date:               date,
		InitialCapital:     b.capital.InitialCapital,
		PerStockAllocation: b.capital.PerStockAllocation(),
		MaxHoldings:        b.capital.MaxHoldings,
	}

	positions, err := b.positions.GetAll(ctx)
	if err != nil {
		return dc, fmt.Errorf("failed to load open positions: %w", err)
	}

	events, err := b.events.Recent(ctx, RecentEventLimit)
	if err != nil {
		return dc, fmt.Errorf("failed to load recent events: %w", err)
	}
	if events == nil {
		events = []domain.LedgerEvent{}
	}
	dc.RecentEvents = events

	balance, err := b.cash.CashAsOf(ctx, &date)
	if err != nil {
		return dc, fmt.Errorf("failed to replay cash: %w", err)
	}
	dc.Cash = balance.Cash
	dc.RealizedPnL = balance.RealizedPnL

	closes := b.indicatorHistory(ctx, positions, date)

	dc.Holdings = make([]domain.HoldingContext, 0, len(positions))
	holdingsValue := 0.0
	for _, p := range positions {
		price := p.LastKnownPrice()
		shares := p.Shares()
		value := shares * price
		holdingsValue += value

		hc := domain.HoldingContext{
			Symbol:       p.Symbol,
			Name:         p.Name,
			BuyDate:      p.BuyDate,
			BuyPrice:     p.BuyPrice,
			CurrentPrice: price,
			Shares:       shares,
			Value:        formulas.RoundMoney(value),
			ReturnPct:    formulas.Round(formulas.PercentChange(p.BuyPrice, price), 2),
		}
		if series := closes[p.Symbol]; len(series) > 0 {
			hc.RSI = roundPtr(formulas.CalculateRSI(series, rsiPeriod))
			hc.SMA20 = roundPtr(formulas.CalculateSMA(series, smaPeriod))
		}
		dc.Holdings = append(dc.Holdings, hc)
	}

	dc.PortfolioValue = formulas.RoundMoney(dc.Cash + holdingsValue)
	dc.AvailableSlots = b.capital.MaxHoldings - len(positions)
	if dc.AvailableSlots < 0 {
		dc.AvailableSlots = 0
	}

	return dc, nil
}

// indicatorHistory returns date-ordered closes per held symbol. Failures
// only cost the indicators.
func (b *ContextBuilder) indicatorHistory(ctx context.Context, positions []domain.OpenPosition, date time.Time) map[string][]float64 {
	out := make(map[string][]float64)
	if b.source == nil || len(positions) == 0 {
		return out
	}

	symbols := make([]string, 0, len(positions))
	for _, p := range positions {
		symbols = append(symbols, p.Symbol)
	}

	history, err := b.source.History(ctx, symbols, date.AddDate(0, 0, -IndicatorLookbackDays), date)
	if err != nil {
		b.log.Warn().Err(err).Msg("Indicator history unavailable")
		return out
	}

	for symbol, byDate := range history {
		dates := make([]string, 0, len(byDate))
		for d := range byDate {
			dates = append(dates, d)
		}
		sort.Strings(dates)

		series := make([]float64, 0, len(dates))
		for _, d := range dates {
			series = append(series, byDate[d])
		}
		out[symbol] = series
	}
	return out
}

func roundPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := formulas.Round(*v, 2)
	return &r
}
