package decisions

import (
	"context"
	"testing"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/aristath/papertrail/internal/modules/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextBuilder_Build(t *testing.T) {
	h := newHarness(t, domain.Capital{InitialCapital: 100_000, MaxHoldings: 10})
	ctx := context.Background()

	// 30 rising weekday closes ending 2026-01-05
	d := day("2025-11-25")
	price := 80.0
	for i := 0; i < 30; i++ {
		h.source.SetClose("AAPL", domain.FormatDate(d), price)
		price += 1
		d = domain.NextWeekday(d.AddDate(0, 0, 1))
	}

	_, err := h.store.RecordBuy(ctx, ledger.BuyRequest{Date: day("2026-01-05"), Symbol: "AAPL", Name: "Apple", Price: 100, CostAmount: 10_000})
	require.NoError(t, err)
	_, err = h.store.Positions().UpdateCurrentPrice(ctx, "AAPL", 110, day("2026-01-06"))
	require.NoError(t, err)

	dc, err := h.executor.builder.Build(ctx, day("2026-01-06"))
	require.NoError(t, err)

	assert.InDelta(t, 90_000, dc.Cash, 1e-9)
	assert.InDelta(t, 10_000, dc.PerStockAllocation, 1e-9)
	assert.Equal(t, 9, dc.AvailableSlots)
	assert.Len(t, dc.RecentEvents, 1)
	require.Len(t, dc.Holdings, 1)

	holding := dc.Holdings[0]
	assert.Equal(t, "AAPL", holding.Symbol)
	assert.InDelta(t, 110, holding.CurrentPrice, 1e-9)
	assert.InDelta(t, 11_000, holding.Value, 1e-9)
	assert.InDelta(t, 10, holding.ReturnPct, 1e-9)
	assert.InDelta(t, 101_000, dc.PortfolioValue, 1e-9)
	require.NotNil(t, holding.RSI)
	assert.Greater(t, *holding.RSI, 50.0)
	require.NotNil(t, holding.SMA20)
}
