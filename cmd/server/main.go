// Package main is the entry point for the paper portfolio tracker daemon.
// It serves the HTTP API and runs the daily decision, snapshot, accuracy and
// backup jobs on their cron schedules.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/papertrail/internal/config"
	"github.com/aristath/papertrail/internal/di"
	"github.com/aristath/papertrail/internal/scheduler"
	"github.com/aristath/papertrail/internal/server"
	"github.com/aristath/papertrail/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Float64("initial_capital", cfg.InitialCapital).
		Int("max_holdings", cfg.MaxHoldings).
		Msg("Starting papertrail")

	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer func() {
		if err := container.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close databases")
		}
	}()

	// Rebuild the open position cache if it drifted from the ledger
	report, err := container.ReplayEngine.Verify(context.Background())
	if err != nil {
		log.Error().Err(err).Msg("Ledger verification failed")
	} else if !report.InSync {
		log.Warn().Msg("Open positions out of sync with ledger, rebuilding")
		if err := container.LedgerStore.RebuildPositions(context.Background(), report.Holdings); err != nil {
			log.Error().Err(err).Msg("Failed to rebuild open positions")
		}
	}

	sched := scheduler.New(log)
	if cfg.EnableScheduler {
		if err := di.ScheduleJobs(sched, jobs, cfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule jobs")
		}
		sched.Start()
	} else {
		log.Info().Msg("Scheduler disabled")
	}

	srv := server.New(server.Config{
		Log:       log,
		Container: container,
		Jobs:      jobs,
		Scheduler: sched,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if cfg.EnableScheduler {
		// Waits for running jobs
		sched.Stop()
	}

	log.Info().Msg("Server stopped")
}
