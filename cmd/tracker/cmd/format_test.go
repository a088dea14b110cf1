package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/aristath/papertrail/internal/modules/benchmark"
	"github.com/aristath/papertrail/internal/modules/portfolio"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		want   string
	}{
		{"zero", 0, "$0.00"},
		{"grouping", 1234.5, "$1,234.50"},
		{"rounds to cents", 100000.005, "$100,000.01"},
		{"negative", -1234.56, "-$1,234.56"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatMoney(tt.amount))
		})
	}
}

func TestFormatPct(t *testing.T) {
	assert.Equal(t, "+2.50%", formatPct(2.5))
	assert.Equal(t, "-1.00%", formatPct(-1))
	assert.Equal(t, "+0.00%", formatPct(0))

	v := 12.346
	assert.Equal(t, "+12.35%", formatOptionalPct(&v))
	assert.Equal(t, "n/a", formatOptionalPct(nil))
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "187.25", formatPrice(187.25))
	assert.Equal(t, "0.4321", formatPrice(0.4321))
	assert.Equal(t, "0.00", formatPrice(0))
}

func TestFormatScore(t *testing.T) {
	s := 72.46
	assert.Equal(t, "72.5", formatScore(&s))
	assert.Equal(t, "pending", formatScore(nil))
}

func TestParseDateFlag(t *testing.T) {
	fallback := time.Date(2026, 3, 4, 18, 30, 0, 0, time.UTC)

	got, err := parseDateFlag("date", "", fallback)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), got)

	got, err = parseDateFlag("date", "2026-03-02", fallback)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", domain.FormatDate(got))

	_, err = parseDateFlag("start", "03/02/2026", fallback)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--start")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "2.0 KiB", formatBytes(2048))
	assert.Equal(t, "5.0 MiB", formatBytes(5*1024*1024))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

func TestWriteComparison(t *testing.T) {
	p1, p2 := 0.0, 1.5
	spy := 0.0
	c := &benchmark.Comparison{
		Dates:     []string{"2026-03-02", "2026-03-03"},
		Portfolio: []*float64{&p1, &p2},
		Benchmarks: map[string][]*float64{
			"SPY": {&spy, nil},
			"QQQ": {nil, nil},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, writeComparison(&buf, c, []string{"SPY", "QQQ"}))

	out := buf.String()
	assert.Contains(t, out, "DATE")
	assert.Contains(t, out, "SPY")
	assert.Contains(t, out, "+1.50%")
	assert.Contains(t, out, "-")
}

func TestWriteComparison_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeComparison(&buf, &benchmark.Comparison{}, []string{"SPY"}))
	assert.Equal(t, "No data to compare\n", buf.String())
}

func TestWriteSummaryAndHoldings(t *testing.T) {
	last := "2026-03-02"
	summary := &portfolio.Summary{
		PortfolioValue:   101250,
		Cash:             91000,
		HoldingsValue:    10250,
		InitialCapital:   100000,
		TotalReturnPct:   1.25,
		HoldingsCount:    1,
		MaxHoldings:      10,
		AvailableSlots:   9,
		Inception:        "2026-01-01",
		LastSnapshotDate: &last,
	}

	var buf bytes.Buffer
	require.NoError(t, writeSummary(&buf, summary))
	out := buf.String()
	assert.Contains(t, out, "$101,250.00")
	assert.Contains(t, out, "+1.25%")
	assert.Contains(t, out, "1 / 10 (9 slots free)")
	assert.Contains(t, out, "never")
	assert.Contains(t, out, "2026-03-02")

	buf.Reset()
	require.NoError(t, writeHoldings(&buf, []portfolio.Holding{{
		Symbol:        "AAPL",
		BuyDate:       time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		BuyPrice:      200,
		CurrentPrice:  205,
		CostAmount:    10000,
		MarketValue:   10250,
		UnrealizedPnL: 250,
		ReturnPct:     2.5,
		AllocationPct: 10.1,
	}}))
	out = buf.String()
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "$10,250.00")
	assert.Contains(t, out, "+2.50%")
	assert.Contains(t, out, "10.1%")
}

func TestNeedsContainer(t *testing.T) {
	assert.True(t, needsContainer(summaryCmd))
	assert.True(t, needsContainer(decisionsShowCmd))

	completion := &cobra.Command{Use: "completion"}
	bash := &cobra.Command{Use: "bash"}
	completion.AddCommand(bash)
	assert.False(t, needsContainer(bash))
	assert.False(t, needsContainer(&cobra.Command{Use: "help"}))
}
