package scheduler

import (
	"context"
	"fmt"

	"github.com/aristath/papertrail/internal/domain"
)

// SnapshotJob refreshes prices and materializes today's snapshot
type SnapshotJob struct {
	JobBase
	refresher PriceRefresher
	snapshots SnapshotMaterializer
	clock     domain.Clock
}

// NewSnapshotJob creates a new SnapshotJob
func NewSnapshotJob(refresher PriceRefresher, snapshots SnapshotMaterializer, clock domain.Clock) *SnapshotJob {
	return &SnapshotJob{
		JobBase:   newJobBase(),
		refresher: refresher,
		snapshots: snapshots,
		clock:     clock,
	}
}

// Name returns the job name
func (j *SnapshotJob) Name() string {
	return "daily_snapshot"
}

// Run executes the snapshot job
func (j *SnapshotJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultJobTimeout)
	defer cancel()

	today := domain.Today(j.clock)
	if domain.IsWeekend(today) {
		j.log.Debug().Msg("Weekend, skipping snapshot")
		return nil
	}

	if _, err := j.refresher.Refresh(ctx); err != nil {
		j.log.Warn().Err(err).Msg("Price refresh failed, using last known prices")
	}

	snap, err := j.snapshots.Materialize(ctx, today)
	if err != nil {
		return fmt.Errorf("failed to materialize snapshot: %w", err)
	}

	j.log.Info().
		Str("date", domain.FormatDate(today)).
		Float64("portfolio_value", snap.PortfolioValue).
		Msg("Daily snapshot stored")
	return nil
}
