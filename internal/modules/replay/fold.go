// Package replay derives cash and holdings at any date by folding the ledger.
package replay

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aristath/papertrail/internal/domain"
)

// ErrInvariant is returned by strict replay when an event breaks a ledger invariant
var ErrInvariant = errors.New("ledger invariant violated")

// basisTolerance absorbs cent rounding between a SELL's basis and the replayed BUY
const basisTolerance = 0.01

// Violation describes an event that could not be applied cleanly
type Violation struct {
	EventID string `json:"event_id"`
	Symbol  string `json:"symbol"`
	Reason  string `json:"reason"`
	Seq     int64  `json:"seq"`
}

func (v Violation) Error() string {
	return fmt.Sprintf("event %d (%s %s): %s", v.Seq, v.EventID, v.Symbol, v.Reason)
}

// State is the replayed portfolio at a cutoff
type State struct {
	Cutoff            *time.Time
	Holdings          []domain.Holding
	Violations        []Violation
	Cash              float64
	TotalSellProceeds float64
	RealizedPnL       float64
	EventsApplied     int
}

// CostBasis returns the cash committed to the held positions
func (s State) CostBasis() float64 {
	total := 0.0
	for _, h := range s.Holdings {
		total += h.CostAmount
	}
	return total
}

// Holding returns the replayed holding for symbol
func (s State) Holding(symbol string) (domain.Holding, bool) {
	for _, h := range s.Holdings {
		if h.Symbol == symbol {
			return h, true
		}
	}
	return domain.Holding{}, false
}

// Fold replays events dated on or before cutoff (all events when cutoff is nil)
// in (date, seq) order, starting from initialCapital in cash.
//
// In strict mode the first invariant violation aborts the fold with ErrInvariant.
// Otherwise violating events are skipped and reported in State.Violations; a BUY
// of an already-held symbol is applied as an overwrite and reported.
func Fold(events []domain.LedgerEvent, cutoff *time.Time, initialCapital float64, strict bool) (State, error) {
	ordered := make([]domain.LedgerEvent, 0, len(events))
	for _, e := range events {
		if cutoff != nil && domain.Day(e.Date).After(domain.Day(*cutoff)) {
			continue
		}
		ordered = append(ordered, e)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		di, dj := domain.Day(ordered[i].Date), domain.Day(ordered[j].Date)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return ordered[i].Seq < ordered[j].Seq
	})

	state := State{Cutoff: cutoff, Cash: initialCapital}
	held := make(map[string]int) // symbol -> index in holdings
	var holdings []domain.Holding

	violate := func(e domain.LedgerEvent, format string, args ...interface{}) error {
		v := Violation{Seq: e.Seq, EventID: e.EventID, Symbol: e.Symbol, Reason: fmt.Sprintf(format, args...)}
		if strict {
			return fmt.Errorf("%w: %s", ErrInvariant, v.Error())
		}
		state.Violations = append(state.Violations, v)
		return nil
	}

	for _, e := range ordered {
		if e.Price <= 0 || e.CostAmount <= 0 || math.IsNaN(e.Price) || math.IsNaN(e.CostAmount) {
			if err := violate(e, "non-positive price %v or cost %v", e.Price, e.CostAmount); err != nil {
				return State{}, err
			}
			continue
		}

		switch e.Action {
		case domain.ActionBuy:
			h := domain.Holding{
				Symbol:     e.Symbol,
				Name:       e.Name,
				BuyPrice:   e.Price,
				BuyDate:    domain.Day(e.Date),
				CostAmount: e.CostAmount,
			}
			if idx, ok := held[e.Symbol]; ok {
				if err := violate(e, "BUY of already held symbol"); err != nil {
					return State{}, err
				}
				holdings[idx] = h
			} else {
				held[e.Symbol] = len(holdings)
				holdings = append(holdings, h)
			}
			state.Cash -= e.CostAmount

		case domain.ActionSell:
			idx, ok := held[e.Symbol]
			if !ok {
				if err := violate(e, "SELL of symbol not held"); err != nil {
					return State{}, err
				}
				continue
			}
			position := holdings[idx]

			buyPrice := position.BuyPrice
			if e.BuyPrice != nil && *e.BuyPrice > 0 {
				buyPrice = *e.BuyPrice
			}
			if math.Abs(e.CostAmount-position.CostAmount) > basisTolerance {
				if err := violate(e, "SELL basis %.2f differs from held basis %.2f", e.CostAmount, position.CostAmount); err != nil {
					return State{}, err
				}
			}

			proceeds := domain.Shares(e.CostAmount, buyPrice) * e.Price
			state.Cash += proceeds
			state.TotalSellProceeds += proceeds
			state.RealizedPnL += proceeds - e.CostAmount

			holdings = append(holdings[:idx], holdings[idx+1:]...)
			delete(held, e.Symbol)
			for i := idx; i < len(holdings); i++ {
				held[holdings[i].Symbol] = i
			}

		default:
			if err := violate(e, "unknown action %q", e.Action); err != nil {
				return State{}, err
			}
			continue
		}

		state.EventsApplied++
	}

	state.Holdings = holdings
	if state.Holdings == nil {
		state.Holdings = []domain.Holding{}
	}
	return state, nil
}
