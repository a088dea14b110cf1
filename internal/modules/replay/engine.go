package replay

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/rs/zerolog"
)

// EventSource lists ledger events in replay order
type EventSource interface {
	ListUpTo(ctx context.Context, cutoff *time.Time) ([]domain.LedgerEvent, error)
}

// PositionSource lists the materialized open positions
type PositionSource interface {
	GetAll(ctx context.Context) ([]domain.OpenPosition, error)
}

// CashBalance is the cash side of a replay
type CashBalance struct {
	Cash              float64 `json:"cash"`
	TotalSellProceeds float64 `json:"total_sell_proceeds"`
	RealizedPnL       float64 `json:"realized_pnl"`
}

// Engine replays the ledger from its repository
type Engine struct {
	events         EventSource
	positions      PositionSource
	initialCapital float64
	strict         bool
	log            zerolog.Logger
}

// NewEngine creates a replay engine. strict turns invariant violations into errors.
func NewEngine(events EventSource, positions PositionSource, initialCapital float64, strict bool, log zerolog.Logger) *Engine {
	return &Engine{
		events:         events,
		positions:      positions,
		initialCapital: initialCapital,
		strict:         strict,
		log:            log.With().Str("service", "replay").Logger(),
	}
}

// InitialCapital returns the starting cash of every replay
func (e *Engine) InitialCapital() float64 {
	return e.initialCapital
}

// StateAsOf replays every event dated on or before cutoff; nil replays everything
func (e *Engine) StateAsOf(ctx context.Context, cutoff *time.Time) (State, error) {
	events, err := e.events.ListUpTo(ctx, cutoff)
	if err != nil {
		return State{}, fmt.Errorf("failed to load ledger: %w", err)
	}

	state, err := Fold(events, cutoff, e.initialCapital, e.strict)
	if err != nil {
		return State{}, err
	}

	for _, v := range state.Violations {
		e.log.Warn().
			Int64("seq", v.Seq).
			Str("event_id", v.EventID).
			Str("symbol", v.Symbol).
			Str("reason", v.Reason).
			Msg("Ledger invariant violation during replay")
	}

	return state, nil
}

// CashAsOf returns cash, cumulative sell proceeds and realized P&L at cutoff
func (e *Engine) CashAsOf(ctx context.Context, cutoff *time.Time) (CashBalance, error) {
	state, err := e.StateAsOf(ctx, cutoff)
	if err != nil {
		return CashBalance{}, err
	}
	return CashBalance{
		Cash:              state.Cash,
		TotalSellProceeds: state.TotalSellProceeds,
		RealizedPnL:       state.RealizedPnL,
	}, nil
}

// HoldingsAsOf returns the positions held at cutoff
func (e *Engine) HoldingsAsOf(ctx context.Context, cutoff *time.Time) ([]domain.Holding, error) {
	state, err := e.StateAsOf(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	return state.Holdings, nil
}

// VerifyReport compares the open_positions cache with a full replay
type VerifyReport struct {
	Missing    []string         `json:"missing"`    // replayed but absent from the cache
	Extra      []string         `json:"extra"`      // cached but not held per the ledger
	Mismatched []string         `json:"mismatched"` // held in both with different basis or buy price
	Violations []Violation      `json:"violations"`
	Holdings   []domain.Holding `json:"-"`
	Cash       float64          `json:"cash"`
	Events     int              `json:"events"`
	InSync     bool             `json:"in_sync"`
}

// Verify replays the whole ledger and reports drift in the open position cache
func (e *Engine) Verify(ctx context.Context) (*VerifyReport, error) {
	events, err := e.events.ListUpTo(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	// Verification always reports, never aborts
	state, err := Fold(events, nil, e.initialCapital, false)
	if err != nil {
		return nil, err
	}

	cached, err := e.positions.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load open positions: %w", err)
	}

	report := &VerifyReport{
		Missing:    []string{},
		Extra:      []string{},
		Mismatched: []string{},
		Violations: state.Violations,
		Holdings:   state.Holdings,
		Cash:       state.Cash,
		Events:     len(events),
	}
	if report.Violations == nil {
		report.Violations = []Violation{}
	}

	cachedBySymbol := make(map[string]domain.OpenPosition, len(cached))
	for _, p := range cached {
		cachedBySymbol[p.Symbol] = p
	}

	for _, h := range state.Holdings {
		p, ok := cachedBySymbol[h.Symbol]
		if !ok {
			report.Missing = append(report.Missing, h.Symbol)
			continue
		}
		delete(cachedBySymbol, h.Symbol)
		if math.Abs(p.CostAmount-h.CostAmount) > basisTolerance || math.Abs(p.BuyPrice-h.BuyPrice) > 1e-9 {
			report.Mismatched = append(report.Mismatched, h.Symbol)
		}
	}
	for symbol := range cachedBySymbol {
		report.Extra = append(report.Extra, symbol)
	}
	sort.Strings(report.Extra)

	report.InSync = len(report.Missing) == 0 && len(report.Extra) == 0 && len(report.Mismatched) == 0
	if !report.InSync {
		e.log.Warn().
			Strs("missing", report.Missing).
			Strs("extra", report.Extra).
			Strs("mismatched", report.Mismatched).
			Msg("Open positions drifted from ledger replay")
	}

	return report, nil
}
