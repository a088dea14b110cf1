package scheduler

import (
	"context"
	"fmt"
)

// AccuracyJob scores decisions whose lookahead window has closed
type AccuracyJob struct {
	JobBase
	evaluator AccuracyEvaluator
}

// NewAccuracyJob creates a new AccuracyJob
func NewAccuracyJob(evaluator AccuracyEvaluator) *AccuracyJob {
	return &AccuracyJob{
		JobBase:   newJobBase(),
		evaluator: evaluator,
	}
}

// Name returns the job name
func (j *AccuracyJob) Name() string {
	return "evaluate_accuracy"
}

// Run executes the accuracy job
func (j *AccuracyJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultJobTimeout)
	defer cancel()

	result, err := j.evaluator.EvaluatePending(ctx)
	if err != nil {
		return fmt.Errorf("failed to evaluate decisions: %w", err)
	}

	j.log.Info().
		Int("evaluated", result.Evaluated).
		Int("skipped", result.Skipped).
		Int("errors", len(result.Errors)).
		Msg("Accuracy evaluation completed")
	return nil
}
