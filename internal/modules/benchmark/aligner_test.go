package benchmark

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	testingpkg "github.com/aristath/papertrail/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	d, _ := domain.ParseDate(s)
	return d
}

func values(t *testing.T, series []*float64) []interface{} {
	t.Helper()
	out := make([]interface{}, len(series))
	for i, v := range series {
		if v == nil {
			out[i] = nil
			continue
		}
		out[i] = *v
	}
	return out
}

func newAligner(source domain.PriceSource) *Aligner {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	clock := domain.NewFixedClock(time.Date(2026, 1, 9, 12, 0, 0, 0, time.UTC))
	return NewAligner(source, nil, []string{"SPY"}, date("2026-01-03"), clock, log)
}

func TestRebase(t *testing.T) {
	assert.Equal(t, []float64{0, 10, 5}, Rebase(PercentReturns([]float64{100, 110, 105})))
	assert.Equal(t, []float64{0, 10, 5}, Rebase([]float64{2, 12, 7}))
	assert.Empty(t, Rebase(nil))
}

func TestForwardFill(t *testing.T) {
	dates := []string{"2026-01-01", "2026-01-02", "2026-01-05", "2026-01-06"}
	filled := ForwardFill(dates, map[string]float64{"2026-01-02": 1.5, "2026-01-06": -0.5})

	assert.Equal(t, []interface{}{nil, 1.5, 1.5, -0.5}, values(t, filled))
}

func TestCompare(t *testing.T) {
	source := testingpkg.NewFakePriceSource().
		SetClose("SPY", "2026-01-05", 100).
		SetClose("SPY", "2026-01-06", 110).
		SetClose("SPY", "2026-01-07", 105)
	aligner := newAligner(source)

	series := []domain.Snapshot{
		{Date: date("2026-01-06"), TotalReturnPct: 1.5},
		{Date: date("2026-01-08"), TotalReturnPct: 2.0},
	}

	cmp := aligner.Compare(context.Background(), series, []string{"SPY", "QQQ"}, date("2026-01-03"))

	assert.Equal(t, []string{"2026-01-03", "2026-01-05", "2026-01-06", "2026-01-07", "2026-01-08"}, cmp.Dates)
	assert.Equal(t, []interface{}{0.0, 0.0, 10.0, 5.0, nil}, values(t, cmp.Benchmarks["SPY"]))
	assert.Equal(t, []interface{}{nil, nil, nil, nil, nil}, values(t, cmp.Benchmarks["QQQ"]))
	assert.Equal(t, []interface{}{nil, nil, 1.5, 1.5, 2.0}, values(t, cmp.Portfolio))
	require.NotNil(t, cmp.PortfolioStartIndex)
	assert.Equal(t, 2, *cmp.PortfolioStartIndex)
	assert.Equal(t, 1, source.HistoryCalls)
}

func TestCompare_HistoryFailureIsAllMissing(t *testing.T) {
	source := testingpkg.NewFakePriceSource().FailHistory(errors.New("upstream down"))
	aligner := newAligner(source)

	series := []domain.Snapshot{{Date: date("2026-01-05"), TotalReturnPct: 0.3}}
	cmp := aligner.Compare(context.Background(), series, []string{"SPY"}, date("2026-01-03"))

	assert.Equal(t, []string{"2026-01-03", "2026-01-05"}, cmp.Dates)
	assert.Equal(t, []interface{}{nil, nil}, values(t, cmp.Benchmarks["SPY"]))
	assert.Equal(t, []interface{}{nil, 0.3}, values(t, cmp.Portfolio))
}

func TestCompare_IgnoresSnapshotsBeforeInception(t *testing.T) {
	aligner := newAligner(testingpkg.NewFakePriceSource())

	series := []domain.Snapshot{
		{Date: date("2025-12-31"), TotalReturnPct: 9},
		{Date: date("2026-01-05"), TotalReturnPct: 1},
	}
	cmp := aligner.Compare(context.Background(), series, nil, date("2026-01-03"))

	assert.Equal(t, []string{"2026-01-03", "2026-01-05"}, cmp.Dates)
	assert.Equal(t, []interface{}{nil, 1.0}, values(t, cmp.Portfolio))
	assert.Empty(t, cmp.Benchmarks)
}
