package scheduler

import (
	"context"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/aristath/papertrail/internal/modules/decisions"
	"github.com/aristath/papertrail/internal/modules/evaluation"
	"github.com/aristath/papertrail/internal/modules/pricing"
	"github.com/aristath/papertrail/internal/reliability"
)

// PriceRefresher updates the current price of every open position
type PriceRefresher interface {
	Refresh(ctx context.Context) (*pricing.RefreshResult, error)
}

// DecisionRunner runs the decision cycle for a date
type DecisionRunner interface {
	Run(ctx context.Context, date time.Time) (*decisions.RunResult, error)
}

// SnapshotMaterializer stores the equity curve row for a date
type SnapshotMaterializer interface {
	Materialize(ctx context.Context, date time.Time) (*domain.Snapshot, error)
}

// AccuracyEvaluator scores decisions whose lookahead window has closed
type AccuracyEvaluator interface {
	EvaluatePending(ctx context.Context) (*evaluation.EvaluationResult, error)
}

// Backuper produces a verified backup archive
type Backuper interface {
	Backup(ctx context.Context) (*reliability.Archive, error)
}
