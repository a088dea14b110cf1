package di

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aristath/papertrail/internal/clients/proposer"
	"github.com/aristath/papertrail/internal/clients/yahoo"
	"github.com/aristath/papertrail/internal/config"
	"github.com/aristath/papertrail/internal/modules/benchmark"
	"github.com/aristath/papertrail/internal/modules/decisions"
	"github.com/aristath/papertrail/internal/modules/evaluation"
	"github.com/aristath/papertrail/internal/modules/ledger"
	"github.com/aristath/papertrail/internal/modules/portfolio"
	"github.com/aristath/papertrail/internal/modules/pricing"
	"github.com/aristath/papertrail/internal/modules/replay"
	"github.com/aristath/papertrail/internal/modules/snapshots"
	"github.com/aristath/papertrail/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the data access layer
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.EventRepo = ledger.NewEventRepository(container.LedgerDB.Conn(), log)
	container.PositionRepo = ledger.NewPositionRepository(container.LedgerDB.Conn(), log)
	container.DecisionRepo = decisions.NewRepository(container.LedgerDB.Conn(), log)
	container.SnapshotRepo = snapshots.NewRepository(container.PortfolioDB.Conn(), log)
	container.PriceCacheRepo = pricing.NewCacheRepository(container.CacheDB.Conn(), log)

	return nil
}

// InitializeServices creates clients and services on top of the repositories
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	clock := container.Clock
	capital := container.Capital()

	// Clients
	container.YahooClient = yahoo.NewClient(clock, log)
	container.PriceSource = pricing.NewCachedSource(container.YahooClient, container.PriceCacheRepo, clock, log)
	container.Proposer = proposer.NewHTTPClient(cfg.DecisionServiceURL, cfg.ModelName, 0, log)

	// Ledger and replay; production replay records violations instead of failing
	container.LedgerStore = ledger.NewStore(
		container.LedgerDB.Conn(),
		container.EventRepo,
		container.PositionRepo,
		cfg.MaxHoldings,
		clock,
		log,
	)
	container.ReplayEngine = replay.NewEngine(container.EventRepo, container.PositionRepo, cfg.InitialCapital, false, log)

	// Pricing
	container.PriceLookup = pricing.NewLookup(container.PriceSource, container.PositionRepo, clock, log)
	container.RefreshService = pricing.NewRefreshService(container.PriceSource, container.PositionRepo, clock, log)

	// Snapshots and benchmarks
	container.Materializer = snapshots.NewMaterializer(
		container.ReplayEngine,
		container.SnapshotRepo,
		container.PriceSource,
		container.PositionRepo,
		cfg.InitialCapital,
		clock,
		log,
	)
	container.Aligner = benchmark.NewAligner(
		container.PriceSource,
		container.SnapshotRepo,
		cfg.BenchmarkTickers,
		cfg.InceptionDate,
		clock,
		log,
	)

	// Decisions
	container.ContextBuilder = decisions.NewContextBuilder(
		container.PositionRepo,
		container.EventRepo,
		container.ReplayEngine,
		container.PriceSource,
		capital,
		log,
	)
	container.Executor = decisions.NewExecutor(
		container.DecisionRepo,
		container.LedgerStore,
		container.ContextBuilder,
		container.ReplayEngine,
		container.PriceLookup,
		capital,
		cfg.ModelName,
		clock,
		log,
	)
	container.Executor.SetProposer(container.Proposer)
	container.Executor.SetFollowUp(container.RefreshService, container.Materializer)

	container.Evaluator = evaluation.NewEvaluator(
		container.DecisionRepo,
		container.SnapshotRepo,
		container.PriceLookup,
		cfg.AccuracyLookbackDays,
		clock,
		log,
	)

	container.PortfolioService = portfolio.NewService(
		container.ReplayEngine,
		container.PositionRepo,
		container.EventRepo,
		container.SnapshotRepo,
		container.DecisionRepo,
		capital,
		cfg.InceptionDate,
		clock,
		log,
	)

	// Backups
	container.BackupService = reliability.NewBackupService(
		container.Databases(),
		filepath.Join(cfg.DataDir, "backups"),
		clock,
		log,
	)
	if cfg.Backup.Enabled() {
		r2Client, err := reliability.NewR2Client(ctx, reliability.R2Config{
			AccountID:       cfg.Backup.AccountID,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
			Bucket:          cfg.Backup.Bucket,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create r2 client: %w", err)
		}
		container.R2BackupService = reliability.NewR2BackupService(
			r2Client,
			container.BackupService,
			cfg.Backup.RetentionDays,
			clock,
			log,
		)
	} else {
		log.Info().Msg("R2 backup not configured, backups stay local")
	}

	return nil
}
