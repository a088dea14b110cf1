package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/aristath/papertrail/internal/modules/decisions"
	"github.com/aristath/papertrail/internal/modules/pricing"
)

// PipelineResult reports every stage of one daily pipeline run.
// A failed stage is recorded in Errors and later stages still run.
type PipelineResult struct {
	Date     string                 `json:"date"`
	Skipped  bool                   `json:"skipped"`
	Refresh  *pricing.RefreshResult `json:"refresh,omitempty"`
	Decision *decisions.RunResult   `json:"decision,omitempty"`
	Snapshot *domain.Snapshot       `json:"snapshot,omitempty"`
	Errors   []string               `json:"errors,omitempty"`
}

// Err joins the stage errors, or returns nil when every stage succeeded
func (r *PipelineResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Errors))
	for _, e := range r.Errors {
		errs = append(errs, errors.New(e))
	}
	return errors.Join(errs...)
}

// DailyDecisionJob runs the daily pipeline: refresh prices, run the decision
// for today, then store today's snapshot
type DailyDecisionJob struct {
	JobBase
	refresher PriceRefresher
	decisions DecisionRunner
	snapshots SnapshotMaterializer
	clock     domain.Clock
}

// NewDailyDecisionJob creates a new DailyDecisionJob
func NewDailyDecisionJob(
	refresher PriceRefresher,
	decisions DecisionRunner,
	snapshots SnapshotMaterializer,
	clock domain.Clock,
) *DailyDecisionJob {
	return &DailyDecisionJob{
		JobBase:   newJobBase(),
		refresher: refresher,
		decisions: decisions,
		snapshots: snapshots,
		clock:     clock,
	}
}

// Name returns the job name
func (j *DailyDecisionJob) Name() string {
	return "daily_decision"
}

// Run executes the daily pipeline
func (j *DailyDecisionJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultJobTimeout)
	defer cancel()

	result := j.RunPipeline(ctx)
	return result.Err()
}

// RunPipeline executes every stage for today. Weekends are skipped.
func (j *DailyDecisionJob) RunPipeline(ctx context.Context) *PipelineResult {
	today := domain.Today(j.clock)
	result := &PipelineResult{Date: domain.FormatDate(today)}

	if domain.IsWeekend(today) {
		j.log.Info().Str("date", result.Date).Msg("Weekend, skipping pipeline")
		result.Skipped = true
		return result
	}

	start := time.Now()

	refresh, err := j.refresher.Refresh(ctx)
	if err != nil {
		// Decisions fall back to last known prices
		j.log.Warn().Err(err).Msg("Price refresh failed")
		result.Errors = append(result.Errors, fmt.Sprintf("refresh: %v", err))
	}
	result.Refresh = refresh

	decision, err := j.decisions.Run(ctx, today)
	if err != nil {
		j.log.Error().Err(err).Msg("Decision stage failed")
		result.Errors = append(result.Errors, fmt.Sprintf("decision: %v", err))
	}
	result.Decision = decision

	if decision != nil && decision.Snapshot != nil {
		result.Snapshot = decision.Snapshot
	} else {
		snap, err := j.snapshots.Materialize(ctx, today)
		if err != nil {
			j.log.Error().Err(err).Msg("Snapshot stage failed")
			result.Errors = append(result.Errors, fmt.Sprintf("snapshot: %v", err))
		}
		result.Snapshot = snap
	}

	event := j.log.Info()
	if len(result.Errors) > 0 {
		event = j.log.Warn()
	}
	if decision != nil {
		event = event.Str("decision_status", string(decision.Status))
	}
	if refresh != nil {
		event = event.Int("prices_updated", refresh.Updated).Int("prices_total", refresh.Total)
	}
	event.
		Str("date", result.Date).
		Int("errors", len(result.Errors)).
		Dur("duration_ms", time.Since(start)).
		Msg("Daily pipeline finished")

	return result
}
