package di

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/papertrail/internal/config"
	"github.com/aristath/papertrail/internal/domain"
	"github.com/aristath/papertrail/internal/modules/ledger"
	"github.com/aristath/papertrail/internal/reliability"
	"github.com/aristath/papertrail/internal/scheduler"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		DataDir:              t.TempDir(),
		InitialCapital:       100_000,
		MaxHoldings:          10,
		InceptionDate:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		BenchmarkTickers:     []string{"SPY", "QQQ"},
		ModelName:            "test-model",
		DecisionServiceURL:   "http://localhost:9000",
		AccuracyLookbackDays: 5,
		DecisionCron:         "0 0 22 * * MON-FRI",
		SnapshotCron:         "0 30 22 * * MON-FRI",
		EvaluationCron:       "0 0 6 * * *",
		BackupCron:           "0 0 3 * * *",
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)
	clock := domain.NewFixedClock(time.Date(2026, 1, 9, 12, 0, 0, 0, time.UTC))

	container, jobs, err := WireWithClock(cfg, clock, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.NotNil(t, container.LedgerDB)
	assert.NotNil(t, container.PortfolioDB)
	assert.NotNil(t, container.CacheDB)
	assert.NotNil(t, container.Executor)
	assert.NotNil(t, container.Evaluator)
	assert.NotNil(t, container.PortfolioService)
	assert.Nil(t, container.R2BackupService)
	assert.IsType(t, &reliability.BackupService{}, container.Backuper())

	require.NotNil(t, jobs)
	assert.Len(t, jobs.All(), 6)

	s := scheduler.New(zerolog.Nop())
	require.NoError(t, ScheduleJobs(s, jobs, cfg))
	assert.Len(t, s.Jobs(), 6)
}

func TestWire_ContainerIsUsable(t *testing.T) {
	cfg := testConfig(t)
	clock := domain.NewFixedClock(time.Date(2026, 1, 9, 12, 0, 0, 0, time.UTC))

	container, _, err := WireWithClock(cfg, clock, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	ctx := context.Background()
	_, err = container.LedgerStore.RecordBuy(ctx, ledger.BuyRequest{
		Symbol:     "AAPL",
		Name:       "Apple",
		Price:      200,
		CostAmount: 10_000,
		Date:       time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Reason:     "test",
	})
	require.NoError(t, err)

	cash, err := container.ReplayEngine.CashAsOf(ctx, nil)
	require.NoError(t, err)
	assert.InDelta(t, 90_000, cash.Cash, 0.001)

	report, err := container.ReplayEngine.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, report.InSync)
}
