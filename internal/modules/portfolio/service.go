// Package portfolio provides the read model of the paper portfolio.
package portfolio

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

// UnknownSector labels holdings without sector data
const UnknownSector = "Unknown"

// StateReplayer replays the ledger to a cutoff
type StateReplayer interface {
	StateAsOf(ctx context.Context, cutoff *time.Time) (replay.State, error)
}

// PositionReader lists open positions with their refreshed prices
type PositionReader interface {
	GetAll(ctx context.Context) ([]domain.OpenPosition, error)
}

// EventReader lists recent ledger events
type EventReader interface {
	Recent(ctx context.Context, limit int) ([]domain.LedgerEvent, error)
}

// SnapshotReader lists the equity curve
type SnapshotReader interface {
	List(ctx context.Context, start *time.Time) ([]domain.Snapshot, error)
}

// DecisionReader returns the latest decision record
type DecisionReader interface {
	Latest(ctx context.Context) (*domain.DecisionRecord, error)
}

// Service derives portfolio views from the ledger, cached prices and snapshots
type Service struct {
	replayer  StateReplayer
	positions PositionReader
	events    EventReader
	snapshots SnapshotReader
	decisions DecisionReader
	capital   domain.Capital
	inception time.Time
	clock     domain.Clock
	log       zerolog.Logger
}

// NewService creates a new portfolio service
func NewService(
	replayer StateReplayer,
	positions PositionReader,
	events EventReader,
	snapshots SnapshotReader,
	decisions DecisionReader,
	capital domain.Capital,
	inception time.Time,
	clock domain.Clock,
	log zerolog.Logger,
) *Service {
	return &Service{
		replayer:  replayer,
		positions: positions,
		events:    events,
		snapshots: snapshots,
		decisions: decisions,
		capital:   capital,
		inception: domain.Day(inception),
		clock:     clock,
		log:       log.With().Str("service", "portfolio").Logger(),
	}
}

// Holdings values the replayed holdings at the last known price of each
// position, sorted by market value descending
func (s *Service) Holdings(ctx context.Context) ([]Holding, error) {
	holdings, _, err := s.holdings(ctx)
	return holdings, err
}

func (s *Service) holdings(ctx context.Context) ([]Holding, replay.State, error) {
	state, err := s.replayer.StateAsOf(ctx, nil)
	if err != nil {
		return nil, state, fmt.Errorf("failed to replay ledger: %w", err)
	}

	positions, err := s.positions.GetAll(ctx)
	if err != nil {
		return nil, state, fmt.Errorf("failed to load open positions: %w", err)
	}
	cached := make(map[string]domain.OpenPosition, len(positions))
	for _, p := range positions {
		cached[p.Symbol] = p
	}

	out := make([]Holding, 0, len(state.Holdings))
	total := state.Cash
	for _, h := range state.Holdings {
		price := h.BuyPrice
		view := Holding{
			BuyDate:    h.BuyDate,
			Symbol:     h.Symbol,
			Name:       h.Name,
			BuyPrice:   h.BuyPrice,
			Shares:     h.Shares(),
			CostAmount: h.CostAmount,
		}
		if p, ok := cached[h.Symbol]; ok {
			price = p.LastKnownPrice()
			view.PriceUpdatedAt = p.PriceUpdatedAt
			view.Sector = p.Sector
			view.Industry = p.Industry
		} else {
			s.log.Warn().Str("symbol", h.Symbol).Msg("Held symbol missing from open positions, valuing at buy price")
		}

		value := view.Shares * price
		view.CurrentPrice = price
		view.MarketValue = formulas.RoundMoney(value)
		view.UnrealizedPnL = formulas.RoundMoney(value - h.CostAmount)
		view.ReturnPct = formulas.Round(formulas.PercentChange(h.BuyPrice, price), 2)
		total += value
		out = append(out, view)
	}

	for i := range out {
		if total > 0 {
			out[i].AllocationPct = formulas.Round(out[i].MarketValue/total*100, 2)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MarketValue > out[j].MarketValue
	})

	return out, state, nil
}

// Summary computes the headline numbers. Value, cash and P&L satisfy
// portfolio_value - realized - unrealized == initial capital.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	holdings, state, err := s.holdings(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		AsOf:               s.clock.Now(),
		Inception:          domain.FormatDate(s.inception),
		InitialCapital:     s.capital.InitialCapital,
		Cash:               formulas.RoundMoney(state.Cash),
		RealizedPnL:        formulas.RoundMoney(state.RealizedPnL),
		PerStockAllocation: s.capital.PerStockAllocation(),
		HoldingsCount:      len(holdings),
		MaxHoldings:        s.capital.MaxHoldings,
	}

	holdingsValue, unrealized := 0.0, 0.0
	for _, h := range holdings {
		holdingsValue += h.MarketValue
		unrealized += h.UnrealizedPnL
	}
	summary.HoldingsValue = formulas.RoundMoney(holdingsValue)
	summary.CostBasis = formulas.RoundMoney(state.CostBasis())
	summary.UnrealizedPnL = formulas.RoundMoney(unrealized)
	summary.PortfolioValue = formulas.RoundMoney(summary.Cash + summary.HoldingsValue)
	if s.capital.InitialCapital > 0 {
		summary.TotalReturnPct = formulas.Round(
			formulas.PercentChange(s.capital.InitialCapital, summary.PortfolioValue), 4)
	}
	summary.AvailableSlots = s.capital.MaxHoldings - len(holdings)
	if summary.AvailableSlots < 0 {
		summary.AvailableSlots = 0
	}

	if err := s.addCurveMetrics(ctx, summary); err != nil {
		return nil, err
	}

	if s.decisions != nil {
		latest, err := s.decisions.Latest(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load latest decision: %w", err)
		}
		if latest != nil {
			d := domain.FormatDate(latest.Date)
			summary.LastDecisionDate = &d
		}
	}

	return summary, nil
}

// addCurveMetrics fills drawdown and volatility from the snapshot curve
func (s *Service) addCurveMetrics(ctx context.Context, summary *Summary) error {
	if s.snapshots == nil {
		return nil
	}
	curve, err := s.snapshots.List(ctx, &s.inception)
	if err != nil {
		return fmt.Errorf("failed to load snapshots: %w", err)
	}
	summary.SnapshotCount = len(curve)
	if len(curve) == 0 {
		return nil
	}

	last := domain.FormatDate(curve[len(curve)-1].Date)
	summary.LastSnapshotDate = &last

	values := make([]float64, len(curve))
	for i, snap := range curve {
		values[i] = snap.PortfolioValue
	}
	if dd := formulas.CalculateDrawdownMetrics(values); dd != nil {
		summary.MaxDrawdownPct = formulas.Round(dd.MaxDrawdown*100, 2)
		summary.CurrentDrawdownPct = formulas.Round(dd.CurrentDrawdown*100, 2)
	}
	summary.AnnualizedVolatilityPct = formulas.Round(
		formulas.AnnualizedVolatility(formulas.CalculateReturns(values))*100, 2)
	return nil
}

// Sectors groups current holdings by sector, largest first
func (s *Service) Sectors(ctx context.Context) ([]SectorAllocation, error) {
	holdings, err := s.Holdings(ctx)
	if err != nil {
		return nil, err
	}

	bySector := make(map[string]*SectorAllocation)
	var order []string
	for _, h := range holdings {
		sector := h.Sector
		if sector == "" {
			sector = UnknownSector
		}
		group, ok := bySector[sector]
		if !ok {
			group = &SectorAllocation{Sector: sector}
			bySector[sector] = group
			order = append(order, sector)
		}
		group.Symbols = append(group.Symbols, h.Symbol)
		group.MarketValue += h.MarketValue
		group.AllocationPct += h.AllocationPct
	}

	out := make([]SectorAllocation, 0, len(order))
	for _, sector := range order {
		group := bySector[sector]
		group.MarketValue = formulas.RoundMoney(group.MarketValue)
		group.AllocationPct = formulas.Round(group.AllocationPct, 2)
		out = append(out, *group)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MarketValue > out[j].MarketValue
	})
	return out, nil
}

// Transactions returns the most recent ledger events, newest first
func (s *Service) Transactions(ctx context.Context, limit int) ([]domain.LedgerEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	events, err := s.events.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	if events == nil {
		events = []domain.LedgerEvent{}
	}
	return events, nil
}
