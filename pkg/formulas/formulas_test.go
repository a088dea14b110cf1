package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.InDelta(t, 60.0, Mean([]float64{90, 70, 40, 40}), 1e-9)
}

func TestCalculateReturns(t *testing.T) {
	returns := CalculateReturns([]float64{100, 110, 99})
	require.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[0], 1e-9)
	assert.InDelta(t, -0.10, returns[1], 1e-9)

	assert.Empty(t, CalculateReturns([]float64{100}))
}

func TestAnnualizedVolatility_FlatSeriesIsZero(t *testing.T) {
	assert.Equal(t, 0.0, AnnualizedVolatility([]float64{0, 0, 0, 0}))
	assert.Equal(t, 0.0, AnnualizedVolatility([]float64{0.01}))
}

func TestPercentChange(t *testing.T) {
	assert.InDelta(t, 10.0, PercentChange(100, 110), 1e-9)
	assert.InDelta(t, -5.0, PercentChange(100, 95), 1e-9)
	assert.Equal(t, 0.0, PercentChange(0, 95))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 20.0, Clamp(5, 20, 80))
	assert.Equal(t, 80.0, Clamp(95, 20, 80))
	assert.Equal(t, 55.0, Clamp(55, 20, 80))
}

func TestCalculateDrawdownMetrics(t *testing.T) {
	assert.Nil(t, CalculateDrawdownMetrics([]float64{100}))

	m := CalculateDrawdownMetrics([]float64{100, 120, 90, 110})
	require.NotNil(t, m)
	assert.InDelta(t, 0.25, m.MaxDrawdown, 1e-9)
	assert.InDelta(t, 120.0, m.PeakValue, 1e-9)
	assert.InDelta(t, (120.0-110.0)/120.0, m.CurrentDrawdown, 1e-9)
}

func TestCalculateSMA(t *testing.T) {
	assert.Nil(t, CalculateSMA([]float64{1, 2}, 3))

	sma := CalculateSMA([]float64{1, 2, 3, 4, 5}, 5)
	require.NotNil(t, sma)
	assert.InDelta(t, 3.0, *sma, 1e-9)
}

func TestCalculateRSI_InsufficientData(t *testing.T) {
	assert.Nil(t, CalculateRSI([]float64{1, 2, 3}, 14))
}

func TestCalculateRSI_RisingSeriesIsHigh(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}

	rsi := CalculateRSI(closes, 14)
	require.NotNil(t, rsi)
	assert.Greater(t, *rsi, 70.0)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 2.68, Round(2.675, 2))
	assert.Equal(t, 12000.0, RoundMoney(11999.999))
}

func TestRoundPrice(t *testing.T) {
	assert.Equal(t, 187.46, RoundPrice(187.4567))
	assert.Equal(t, 42.457, RoundPrice(42.4567))
	assert.Equal(t, 4.2457, RoundPrice(4.24567))
}
