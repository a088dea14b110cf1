package scheduler

import (
	"context"
	"fmt"
	"sort"

	"github.com/aristath/papertrail/internal/database"
	"github.com/shirou/gopsutil/v3/disk"
)

const (
	// criticalFreeBytes halts maintenance when the data volume is nearly full
	criticalFreeBytes = 500 * 1024 * 1024
	lowFreeBytes      = 5 * 1024 * 1024 * 1024
)

// CheckDatabasesJob verifies integrity of the tracker's SQLite databases and
// the free space left on the data volume
type CheckDatabasesJob struct {
	JobBase
	databases map[string]*database.DB
	dataDir   string
}

// NewCheckDatabasesJob creates a new CheckDatabasesJob.
// An empty dataDir skips the disk space check.
func NewCheckDatabasesJob(databases map[string]*database.DB, dataDir string) *CheckDatabasesJob {
	return &CheckDatabasesJob{
		JobBase:   newJobBase(),
		databases: databases,
		dataDir:   dataDir,
	}
}

// Name returns the job name
func (j *CheckDatabasesJob) Name() string {
	return "check_databases"
}

// Run executes the check databases job
func (j *CheckDatabasesJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultJobTimeout)
	defer cancel()

	for _, name := range sortedNames(j.databases) {
		db := j.databases[name]
		if db == nil {
			j.log.Warn().Str("database", name).Msg("Database not initialized, skipping")
			continue
		}

		if err := db.HealthCheck(ctx); err != nil {
			// Corruption cannot be repaired automatically; restore from backup
			j.log.Error().
				Err(err).
				Str("database", name).
				Msg("Database integrity check failed")
			return fmt.Errorf("database %s is corrupted: %w", name, err)
		}

		j.log.Debug().Str("database", name).Msg("Database integrity OK")
	}

	if err := j.checkDiskSpace(ctx); err != nil {
		return err
	}

	j.log.Info().Msg("Database integrity check passed")
	return nil
}

func (j *CheckDatabasesJob) checkDiskSpace(ctx context.Context) error {
	if j.dataDir == "" {
		return nil
	}

	usage, err := disk.UsageWithContext(ctx, j.dataDir)
	if err != nil {
		j.log.Warn().Err(err).Str("path", j.dataDir).Msg("Failed to read disk usage")
		return nil
	}

	availableGB := float64(usage.Free) / 1e9
	switch {
	case usage.Free < criticalFreeBytes:
		j.log.Error().Float64("available_gb", availableGB).Msg("Insufficient disk space")
		return fmt.Errorf("only %.2f GB free on %s", availableGB, j.dataDir)
	case usage.Free < lowFreeBytes:
		j.log.Warn().Float64("available_gb", availableGB).Msg("Disk space running low")
	default:
		j.log.Debug().Float64("available_gb", availableGB).Msg("Disk space check")
	}
	return nil
}

func sortedNames(databases map[string]*database.DB) []string {
	names := make([]string, 0, len(databases))
	for name := range databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
