package scheduler

import (
	"context"
	"fmt"
)

// BackupJob archives every database and, when configured, uploads the archive
type BackupJob struct {
	JobBase
	backuper Backuper
}

// NewBackupJob creates a new BackupJob
func NewBackupJob(backuper Backuper) *BackupJob {
	return &BackupJob{
		JobBase:  newJobBase(),
		backuper: backuper,
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// Run executes the backup job
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultJobTimeout)
	defer cancel()

	archive, err := j.backuper.Backup(ctx)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	j.log.Info().
		Str("archive", archive.Name).
		Int64("size_bytes", archive.SizeBytes).
		Msg("Backup job completed")
	return nil
}
