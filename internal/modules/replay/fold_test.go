package replay

import (
	"testing"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const initialCapital = 100_000.0

func day(s string) time.Time {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func buy(seq int64, symbol, date string, price, cost float64) domain.LedgerEvent {
	return domain.LedgerEvent{Seq: seq, Symbol: symbol, Action: domain.ActionBuy, Date: day(date), Price: price, CostAmount: cost}
}

func sell(seq int64, symbol, date string, price, buyPrice, basis float64) domain.LedgerEvent {
	return domain.LedgerEvent{Seq: seq, Symbol: symbol, Action: domain.ActionSell, Date: day(date), Price: price, CostAmount: basis, BuyPrice: &buyPrice}
}

func TestFold_EmptyLedger(t *testing.T) {
	state, err := Fold(nil, nil, initialCapital, true)
	require.NoError(t, err)
	assert.Equal(t, initialCapital, state.Cash)
	assert.Empty(t, state.Holdings)
	assert.Zero(t, state.RealizedPnL)
}

func TestFold_BuyAndSellCash(t *testing.T) {
	events := []domain.LedgerEvent{
		buy(1, "AAPL", "2026-01-02", 100, 10_000),
		sell(2, "AAPL", "2026-01-09", 120, 100, 10_000),
	}

	state, err := Fold(events, nil, initialCapital, true)
	require.NoError(t, err)
	assert.InDelta(t, 102_000.0, state.Cash, 1e-9)
	assert.InDelta(t, 12_000.0, state.TotalSellProceeds, 1e-9)
	assert.InDelta(t, 2_000.0, state.RealizedPnL, 1e-9)
	assert.Empty(t, state.Holdings)
	assert.Equal(t, 2, state.EventsApplied)
}

func TestFold_PointInTime(t *testing.T) {
	events := []domain.LedgerEvent{
		buy(1, "AAPL", "2026-01-01", 100, 10_000),
		sell(2, "AAPL", "2026-02-01", 110, 100, 10_000),
		buy(3, "AAPL", "2026-03-01", 105, 11_000),
	}

	tests := []struct {
		cutoff string
		held   bool
	}{
		{"2026-01-15", true},
		{"2026-02-15", false},
		{"2026-03-15", true},
	}

	for _, tt := range tests {
		t.Run(tt.cutoff, func(t *testing.T) {
			cutoff := day(tt.cutoff)
			state, err := Fold(events, &cutoff, initialCapital, true)
			require.NoError(t, err)
			_, held := state.Holding("AAPL")
			assert.Equal(t, tt.held, held)
		})
	}

	cutoff := day("2026-03-15")
	state, err := Fold(events, &cutoff, initialCapital, true)
	require.NoError(t, err)
	h, _ := state.Holding("AAPL")
	assert.Equal(t, 105.0, h.BuyPrice)
	assert.Equal(t, day("2026-03-01"), h.BuyDate)
}

func TestFold_Deterministic(t *testing.T) {
	events := []domain.LedgerEvent{
		buy(1, "AAPL", "2026-01-02", 100, 10_000),
		buy(2, "MSFT", "2026-01-02", 400, 10_000),
		sell(3, "AAPL", "2026-01-05", 90, 100, 10_000),
		buy(4, "NVDA", "2026-01-05", 150, 9_000),
	}

	first, err := Fold(events, nil, initialCapital, true)
	require.NoError(t, err)

	// Input order must not matter; (date, seq) decides
	shuffled := []domain.LedgerEvent{events[3], events[1], events[2], events[0]}
	second, err := Fold(shuffled, nil, initialCapital, true)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestFold_SameDayTieBreakBySeq(t *testing.T) {
	// SELL then re-BUY of the same symbol on one day
	events := []domain.LedgerEvent{
		buy(1, "AAPL", "2026-01-02", 100, 10_000),
		buy(3, "AAPL", "2026-01-05", 95, 9_000),
		sell(2, "AAPL", "2026-01-05", 90, 100, 10_000),
	}

	state, err := Fold(events, nil, initialCapital, true)
	require.NoError(t, err)
	h, held := state.Holding("AAPL")
	require.True(t, held)
	assert.Equal(t, 95.0, h.BuyPrice)
	assert.InDelta(t, 100_000-10_000+9_000-9_000, state.Cash, 1e-9)
}

func TestFold_ConservationLaw(t *testing.T) {
	events := []domain.LedgerEvent{
		buy(1, "AAPL", "2026-01-02", 100, 10_000),
		buy(2, "MSFT", "2026-01-02", 400, 10_000),
		sell(3, "AAPL", "2026-01-05", 130, 100, 10_000),
		buy(4, "NVDA", "2026-01-06", 150, 13_000),
	}
	prices := map[string]float64{"MSFT": 380, "NVDA": 171}

	state, err := Fold(events, nil, initialCapital, true)
	require.NoError(t, err)

	holdingsValue, unrealized := 0.0, 0.0
	for _, h := range state.Holdings {
		value := h.Shares() * prices[h.Symbol]
		holdingsValue += value
		unrealized += value - h.CostAmount
	}
	portfolioValue := state.Cash + holdingsValue

	assert.InDelta(t, initialCapital, portfolioValue-state.RealizedPnL-unrealized, 1e-6)
}

func TestFold_StrictRaisesOnViolations(t *testing.T) {
	tests := []struct {
		name   string
		events []domain.LedgerEvent
	}{
		{"sell not held", []domain.LedgerEvent{sell(1, "AAPL", "2026-01-02", 100, 100, 10_000)}},
		{"double buy", []domain.LedgerEvent{buy(1, "AAPL", "2026-01-02", 100, 10_000), buy(2, "AAPL", "2026-01-03", 100, 10_000)}},
		{"unknown action", []domain.LedgerEvent{{Seq: 1, Symbol: "AAPL", Action: "HOLD", Date: day("2026-01-02"), Price: 1, CostAmount: 1}}},
		{"zero price", []domain.LedgerEvent{buy(1, "AAPL", "2026-01-02", 0, 10_000)}},
		{"sell basis is proceeds", []domain.LedgerEvent{
			buy(1, "AAPL", "2026-01-02", 100, 10_000),
			sell(2, "AAPL", "2026-01-05", 120, 100, 12_000),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fold(tt.events, nil, initialCapital, true)
			assert.ErrorIs(t, err, ErrInvariant)
		})
	}
}

func TestFold_ProductionSkipsAndReports(t *testing.T) {
	events := []domain.LedgerEvent{
		buy(1, "AAPL", "2026-01-02", 100, 10_000),
		sell(2, "TSLA", "2026-01-03", 200, 150, 10_000),
		{Seq: 3, Symbol: "X", Action: "HOLD", Date: day("2026-01-03"), Price: 1, CostAmount: 1},
	}

	state, err := Fold(events, nil, initialCapital, false)
	require.NoError(t, err)
	assert.Len(t, state.Violations, 2)
	assert.Equal(t, 1, state.EventsApplied)
	assert.InDelta(t, 90_000.0, state.Cash, 1e-9)
	assert.Len(t, state.Holdings, 1)
}

func TestFold_UnrelatedLaterEventsDoNotChangeEarlierState(t *testing.T) {
	base := []domain.LedgerEvent{buy(1, "AAPL", "2026-01-02", 100, 10_000)}
	cutoff := day("2026-01-05")

	before, err := Fold(base, &cutoff, initialCapital, true)
	require.NoError(t, err)

	extended := append(base, buy(2, "MSFT", "2026-01-06", 400, 10_000))
	after, err := Fold(extended, &cutoff, initialCapital, true)
	require.NoError(t, err)

	assert.Equal(t, before, after)
}
