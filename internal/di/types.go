// Package di provides dependency injection wiring and initialization.
package di

import (
	"errors"

	"github.com/aristath/papertrail/internal/clients/yahoo"
	"github.com/aristath/papertrail/internal/config"
	"github.com/aristath/papertrail/internal/database"
	"github.com/aristath/papertrail/internal/domain"
	"github.com/aristath/papertrail/internal/modules/benchmark"
	"github.com/aristath/papertrail/internal/modules/decisions"
	"github.com/aristath/papertrail/internal/modules/evaluation"
	"github.com/aristath/papertrail/internal/modules/ledger"
	"github.com/aristath/papertrail/internal/modules/portfolio"
	"github.com/aristath/papertrail/internal/modules/pricing"
	"github.com/aristath/papertrail/internal/modules/replay"
	"github.com/aristath/papertrail/internal/modules/snapshots"
	"github.com/aristath/papertrail/internal/reliability"
	"github.com/aristath/papertrail/internal/scheduler"
)

// Container holds all dependencies for the application.
// It is created by Wire and shared by the HTTP server and the CLI.
type Container struct {
	Config *config.Config
	Clock  domain.Clock

	// Databases
	LedgerDB    *database.DB // ledger_events, open_positions, decision_records
	PortfolioDB *database.DB // snapshots
	CacheDB     *database.DB // price_cache

	// Clients
	YahooClient *yahoo.Client
	PriceSource *pricing.CachedSource
	Proposer    domain.Proposer

	// Repositories
	EventRepo      *ledger.EventRepository
	PositionRepo   *ledger.PositionRepository
	PriceCacheRepo *pricing.CacheRepository
	SnapshotRepo   *snapshots.Repository
	DecisionRepo   *decisions.Repository

	// Services
	LedgerStore      *ledger.Store
	ReplayEngine     *replay.Engine
	PriceLookup      *pricing.Lookup
	RefreshService   *pricing.RefreshService
	Materializer     *snapshots.Materializer
	Aligner          *benchmark.Aligner
	ContextBuilder   *decisions.ContextBuilder
	Executor         *decisions.Executor
	Evaluator        *evaluation.Evaluator
	PortfolioService *portfolio.Service
	BackupService    *reliability.BackupService
	R2BackupService  *reliability.R2BackupService // nil unless R2 is configured
}

// JobInstances holds the scheduled jobs for registration and manual triggering
type JobInstances struct {
	DailyDecision  *scheduler.DailyDecisionJob
	Snapshot       *scheduler.SnapshotJob
	Accuracy       *scheduler.AccuracyJob
	Backup         *scheduler.BackupJob
	CheckDatabases *scheduler.CheckDatabasesJob
	CheckWAL       *scheduler.CheckWALCheckpointsJob
}

// All returns every job instance
func (j *JobInstances) All() []scheduler.Job {
	return []scheduler.Job{j.DailyDecision, j.Snapshot, j.Accuracy, j.Backup, j.CheckDatabases, j.CheckWAL}
}

// Databases returns the open databases keyed by name
func (c *Container) Databases() map[string]*database.DB {
	return map[string]*database.DB{
		"ledger":    c.LedgerDB,
		"portfolio": c.PortfolioDB,
		"cache":     c.CacheDB,
	}
}

// Backuper returns the R2 backup service when configured, else the local one
func (c *Container) Backuper() scheduler.Backuper {
	if c.R2BackupService != nil {
		return c.R2BackupService
	}
	return c.BackupService
}

// Capital returns the portfolio constants
func (c *Container) Capital() domain.Capital {
	return domain.Capital{
		InitialCapital: c.Config.InitialCapital,
		MaxHoldings:    c.Config.MaxHoldings,
	}
}

// Close closes every open database
func (c *Container) Close() error {
	var errs []error
	for _, db := range []*database.DB{c.LedgerDB, c.PortfolioDB, c.CacheDB} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
