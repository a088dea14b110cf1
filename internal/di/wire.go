package di

import (
	"context"
	"fmt"

	"github.com/aristath/papertrail/internal/config"
	"github.com/aristath/papertrail/internal/domain"
	"github.com/rs/zerolog"
)

// Wire initializes all dependencies and returns a fully configured container
// Order of operations:
// 1. Initialize databases
// 2. Initialize repositories
// 3. Initialize services
// 4. Register jobs
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, *JobInstances, error) {
	return WireWithClock(cfg, domain.SystemClock{}, log)
}

// WireWithClock is Wire with an explicit clock
func WireWithClock(cfg *config.Config, clock domain.Clock, log zerolog.Logger) (*Container, *JobInstances, error) {
	if cfg.Backup == nil {
		cfg.Backup = &config.BackupConfig{}
	}

	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize databases: %w", err)
	}
	container.Clock = clock

	if err := InitializeRepositories(container, log); err != nil {
		_ = container.Close()
		return nil, nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	if err := InitializeServices(context.Background(), container, cfg, log); err != nil {
		_ = container.Close()
		return nil, nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	jobs, err := RegisterJobs(container, log)
	if err != nil {
		_ = container.Close()
		return nil, nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed successfully")

	return container, jobs, nil
}
