package replay

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEvents struct {
	events []domain.LedgerEvent
}

func (f *fakeEvents) ListUpTo(_ context.Context, cutoff *time.Time) ([]domain.LedgerEvent, error) {
	var out []domain.LedgerEvent
	for _, e := range f.events {
		if cutoff == nil || !e.Date.After(*cutoff) {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakePositions struct {
	positions []domain.OpenPosition
}

func (f *fakePositions) GetAll(context.Context) ([]domain.OpenPosition, error) {
	return f.positions, nil
}

func TestEngine_CashAndHoldingsAsOf(t *testing.T) {
	src := &fakeEvents{events: []domain.LedgerEvent{
		buy(1, "AAPL", "2026-01-02", 100, 10_000),
		sell(2, "AAPL", "2026-01-09", 80, 100, 10_000),
	}}
	engine := NewEngine(src, &fakePositions{}, initialCapital, true, zerolog.New(nil).Level(zerolog.Disabled))
	ctx := context.Background()

	mid := day("2026-01-05")
	holdings, err := engine.HoldingsAsOf(ctx, &mid)
	require.NoError(t, err)
	require.Len(t, holdings, 1)

	cash, err := engine.CashAsOf(ctx, &mid)
	require.NoError(t, err)
	assert.InDelta(t, 90_000.0, cash.Cash, 1e-9)

	cash, err = engine.CashAsOf(ctx, nil)
	require.NoError(t, err)
	assert.InDelta(t, 98_000.0, cash.Cash, 1e-9)
	assert.InDelta(t, -2_000.0, cash.RealizedPnL, 1e-9)
	assert.InDelta(t, 8_000.0, cash.TotalSellProceeds, 1e-9)
}

func TestEngine_Verify(t *testing.T) {
	src := &fakeEvents{events: []domain.LedgerEvent{
		buy(1, "AAPL", "2026-01-02", 100, 10_000),
		buy(2, "MSFT", "2026-01-02", 400, 10_000),
	}}
	log := zerolog.New(nil).Level(zerolog.Disabled)

	t.Run("in sync", func(t *testing.T) {
		positions := &fakePositions{positions: []domain.OpenPosition{
			{Symbol: "AAPL", BuyPrice: 100, CostAmount: 10_000},
			{Symbol: "MSFT", BuyPrice: 400, CostAmount: 10_000},
		}}
		report, err := NewEngine(src, positions, initialCapital, false, log).Verify(context.Background())
		require.NoError(t, err)
		assert.True(t, report.InSync)
		assert.Equal(t, 2, report.Events)
	})

	t.Run("drifted", func(t *testing.T) {
		positions := &fakePositions{positions: []domain.OpenPosition{
			{Symbol: "AAPL", BuyPrice: 100, CostAmount: 12_000},
			{Symbol: "TSLA", BuyPrice: 200, CostAmount: 10_000},
		}}
		report, err := NewEngine(src, positions, initialCapital, false, log).Verify(context.Background())
		require.NoError(t, err)
		assert.False(t, report.InSync)
		assert.Equal(t, []string{"MSFT"}, report.Missing)
		assert.Equal(t, []string{"TSLA"}, report.Extra)
		assert.Equal(t, []string{"AAPL"}, report.Mismatched)
	})
}
