package di

import (
	"fmt"

	"github.com/aristath/papertrail/internal/config"
	"github.com/aristath/papertrail/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs creates the scheduled jobs
func RegisterJobs(container *Container, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	jobs := &JobInstances{
		DailyDecision: scheduler.NewDailyDecisionJob(
			container.RefreshService,
			container.Executor,
			container.Materializer,
			container.Clock,
		),
		Snapshot:       scheduler.NewSnapshotJob(container.RefreshService, container.Materializer, container.Clock),
		Accuracy:       scheduler.NewAccuracyJob(container.Evaluator),
		Backup:         scheduler.NewBackupJob(container.Backuper()),
		CheckDatabases: scheduler.NewCheckDatabasesJob(container.Databases(), container.Config.DataDir),
		CheckWAL:       scheduler.NewCheckWALCheckpointsJob(container.Databases()),
	}

	jobs.DailyDecision.SetLogger(log.With().Str("job", jobs.DailyDecision.Name()).Logger())
	jobs.Snapshot.SetLogger(log.With().Str("job", jobs.Snapshot.Name()).Logger())
	jobs.Accuracy.SetLogger(log.With().Str("job", jobs.Accuracy.Name()).Logger())
	jobs.Backup.SetLogger(log.With().Str("job", jobs.Backup.Name()).Logger())
	jobs.CheckDatabases.SetLogger(log.With().Str("job", jobs.CheckDatabases.Name()).Logger())
	jobs.CheckWAL.SetLogger(log.With().Str("job", jobs.CheckWAL.Name()).Logger())

	return jobs, nil
}

// ScheduleJobs registers every job with its configured cron spec
func ScheduleJobs(s *scheduler.Scheduler, jobs *JobInstances, cfg *config.Config) error {
	schedules := []struct {
		spec string
		job  scheduler.Job
	}{
		{cfg.DecisionCron, jobs.DailyDecision},
		{cfg.SnapshotCron, jobs.Snapshot},
		{cfg.EvaluationCron, jobs.Accuracy},
		{cfg.BackupCron, jobs.Backup},
		{"0 30 2 * * *", jobs.CheckDatabases},
		{"0 0 */6 * * *", jobs.CheckWAL},
	}

	for _, entry := range schedules {
		if entry.spec == "" {
			continue
		}
		if err := s.AddJob(entry.spec, entry.job); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", entry.job.Name(), err)
		}
	}
	return nil
}
