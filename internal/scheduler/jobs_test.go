package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/papertrail/internal/database"
	"github.com/aristath/papertrail/internal/domain"
	"github.com/aristath/papertrail/internal/modules/decisions"
	"github.com/aristath/papertrail/internal/modules/evaluation"
	"github.com/aristath/papertrail/internal/modules/pricing"
	"github.com/aristath/papertrail/internal/reliability"
	testingpkg "github.com/aristath/papertrail/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRefresher struct {
	calls int
	err   error
}

func (f *fakeRefresher) Refresh(context.Context) (*pricing.RefreshResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &pricing.RefreshResult{Updated: 2, Total: 2}, nil
}

type fakeDecisionRunner struct {
	dates  []time.Time
	result *decisions.RunResult
	err    error
}

func (f *fakeDecisionRunner) Run(_ context.Context, date time.Time) (*decisions.RunResult, error) {
	f.dates = append(f.dates, date)
	return f.result, f.err
}

type fakeMaterializer struct {
	dates []time.Time
	err   error
}

func (f *fakeMaterializer) Materialize(_ context.Context, date time.Time) (*domain.Snapshot, error) {
	f.dates = append(f.dates, date)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Snapshot{Date: date, PortfolioValue: 100_000}, nil
}

type fakeEvaluator struct {
	result *evaluation.EvaluationResult
	err    error
}

func (f *fakeEvaluator) EvaluatePending(context.Context) (*evaluation.EvaluationResult, error) {
	return f.result, f.err
}

type fakeBackuper struct {
	calls int
	err   error
}

func (f *fakeBackuper) Backup(context.Context) (*reliability.Archive, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &reliability.Archive{Name: "papertrail-backup-2026-03-02-030000.tar.gz"}, nil
}

var monday = time.Date(2026, 3, 2, 22, 0, 0, 0, time.UTC)

func TestDailyDecisionJob_RunPipeline(t *testing.T) {
	t.Run("runs every stage for today", func(t *testing.T) {
		refresher := &fakeRefresher{}
		runner := &fakeDecisionRunner{result: &decisions.RunResult{Status: decisions.StatusSkipped}}
		snapshots := &fakeMaterializer{}
		job := NewDailyDecisionJob(refresher, runner, snapshots, domain.NewFixedClock(monday))

		result := job.RunPipeline(context.Background())

		assert.False(t, result.Skipped)
		assert.Equal(t, "2026-03-02", result.Date)
		assert.Empty(t, result.Errors)
		assert.NoError(t, result.Err())
		assert.Equal(t, 1, refresher.calls)
		require.Len(t, runner.dates, 1)
		assert.Equal(t, domain.Day(monday), runner.dates[0])
		require.Len(t, snapshots.dates, 1)
		require.NotNil(t, result.Snapshot)
	})

	t.Run("reuses the snapshot the decision already stored", func(t *testing.T) {
		stored := &domain.Snapshot{Date: domain.Day(monday), PortfolioValue: 101_000}
		runner := &fakeDecisionRunner{result: &decisions.RunResult{Status: decisions.StatusCompleted, Snapshot: stored}}
		snapshots := &fakeMaterializer{}
		job := NewDailyDecisionJob(&fakeRefresher{}, runner, snapshots, domain.NewFixedClock(monday))

		result := job.RunPipeline(context.Background())

		assert.Same(t, stored, result.Snapshot)
		assert.Empty(t, snapshots.dates)
	})

	t.Run("stage failures are collected and later stages still run", func(t *testing.T) {
		refresher := &fakeRefresher{err: errors.New("quotes unavailable")}
		runner := &fakeDecisionRunner{err: errors.New("proposer down")}
		snapshots := &fakeMaterializer{}
		job := NewDailyDecisionJob(refresher, runner, snapshots, domain.NewFixedClock(monday))

		result := job.RunPipeline(context.Background())

		require.Len(t, result.Errors, 2)
		assert.Contains(t, result.Errors[0], "quotes unavailable")
		assert.Contains(t, result.Errors[1], "proposer down")
		assert.Len(t, snapshots.dates, 1)
		assert.Error(t, result.Err())
	})

	t.Run("skips weekends", func(t *testing.T) {
		saturday := time.Date(2026, 3, 7, 22, 0, 0, 0, time.UTC)
		refresher := &fakeRefresher{}
		runner := &fakeDecisionRunner{}
		job := NewDailyDecisionJob(refresher, runner, &fakeMaterializer{}, domain.NewFixedClock(saturday))

		result := job.RunPipeline(context.Background())

		assert.True(t, result.Skipped)
		assert.Zero(t, refresher.calls)
		assert.Empty(t, runner.dates)
	})
}

func TestSnapshotJob_Run(t *testing.T) {
	t.Run("refresh failure does not block the snapshot", func(t *testing.T) {
		snapshots := &fakeMaterializer{}
		job := NewSnapshotJob(&fakeRefresher{err: errors.New("timeout")}, snapshots, domain.NewFixedClock(monday))

		require.NoError(t, job.Run())
		assert.Len(t, snapshots.dates, 1)
	})

	t.Run("materialize failure fails the job", func(t *testing.T) {
		job := NewSnapshotJob(&fakeRefresher{}, &fakeMaterializer{err: errors.New("disk full")}, domain.NewFixedClock(monday))
		assert.ErrorContains(t, job.Run(), "disk full")
	})
}

func TestAccuracyJob_Run(t *testing.T) {
	job := NewAccuracyJob(&fakeEvaluator{result: &evaluation.EvaluationResult{Evaluated: 3}})
	assert.Equal(t, "evaluate_accuracy", job.Name())
	assert.NoError(t, job.Run())

	failing := NewAccuracyJob(&fakeEvaluator{err: errors.New("db locked")})
	assert.ErrorContains(t, failing.Run(), "db locked")
}

func TestBackupJob_Run(t *testing.T) {
	backuper := &fakeBackuper{}
	job := NewBackupJob(backuper)
	require.NoError(t, job.Run())
	assert.Equal(t, 1, backuper.calls)

	failing := NewBackupJob(&fakeBackuper{err: errors.New("no space")})
	assert.ErrorContains(t, failing.Run(), "no space")
}

func TestCheckDatabasesJob_Run(t *testing.T) {
	ledgerDB, cleanup := testingpkg.NewTestDB(t, "ledger")
	defer cleanup()

	job := NewCheckDatabasesJob(map[string]*database.DB{
		"ledger":    ledgerDB,
		"portfolio": nil,
	}, t.TempDir())

	assert.Equal(t, "check_databases", job.Name())
	assert.NoError(t, job.Run())
}

func TestCheckWALCheckpointsJob_Run(t *testing.T) {
	cacheDB, cleanup := testingpkg.NewTestDB(t, "cache")
	defer cleanup()

	job := NewCheckWALCheckpointsJob(map[string]*database.DB{
		"cache":  cacheDB,
		"ledger": nil,
	})

	assert.Equal(t, "check_wal_checkpoints", job.Name())
	assert.NoError(t, job.Run())
	assert.NoError(t, NewCheckWALCheckpointsJob(nil).Run())
}
