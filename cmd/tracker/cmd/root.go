package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aristath/papertrail/internal/config"
	"github.com/aristath/papertrail/internal/di"
	"github.com/aristath/papertrail/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	app  *di.Container
	jobs *di.JobInstances
	log  zerolog.Logger

	logLevel   string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Operate the paper portfolio ledger",
	Long: `Tracker runs the paper portfolio pipeline by hand and inspects its state.

The ledger is the source of truth. Cash, holdings and snapshots shown here are
all replayed from it.

Examples:
  tracker pipeline
  tracker decide --date 2026-03-02 --actions actions.yaml
  tracker backfill --only-missing
  tracker summary`,
	SilenceUsage:      true,
	PersistentPreRunE: wire,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if app == nil {
			return nil
		}
		return app.Close()
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
}

// wire loads configuration and builds the container shared by every command.
// Logs go to stderr so stdout stays parseable.
func wire(cmd *cobra.Command, args []string) error {
	if !needsContainer(cmd) {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	log = logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
		Output: os.Stderr,
	})
	logger.SetGlobalLogger(log)

	app, jobs, err = di.Wire(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to wire dependencies: %w", err)
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// needsContainer is false for cobra's built-in help and completion commands
func needsContainer(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "completion":
			return false
		}
	}
	return true
}
