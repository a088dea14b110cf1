package cmd

import (
	"fmt"

	"github.com/aristath/papertrail/internal/reliability"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Archive every database",
	Long: `Copy the ledger, portfolio and cache databases into a verified tar.gz archive.

The archive is uploaded to R2 when R2 credentials are configured, otherwise it
stays in the local backup directory.`,
	Args: cobra.NoArgs,
	RunE: runBackup,
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List local backup archives",
	Args:  cobra.NoArgs,
	RunE:  runBackupList,
}

var cleanCacheCmd = &cobra.Command{
	Use:   "clean-cache",
	Short: "Delete cached closing prices older than a number of days",
	Args:  cobra.NoArgs,
	RunE:  runCleanCache,
}

var cleanCacheDays int

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.AddCommand(backupListCmd)
	rootCmd.AddCommand(cleanCacheCmd)

	cleanCacheCmd.Flags().IntVar(&cleanCacheDays, "days", 30, "keep prices fetched within this many days")
}

func runBackup(cmd *cobra.Command, args []string) error {
	archive, err := app.Backuper().Backup(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, archive)
	}
	fmt.Fprintf(out, "Created %s (%s)\n", archive.Name, formatBytes(archive.SizeBytes))
	return nil
}

func runBackupList(cmd *cobra.Command, args []string) error {
	backups, err := app.BackupService.ListLocal()
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}
	if backups == nil {
		backups = []reliability.BackupInfo{}
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, backups)
	}
	if len(backups) == 0 {
		fmt.Fprintf(out, "No backups in %s\n", app.BackupService.BackupDir())
		return nil
	}

	tw := newTable(out)
	row(tw, "ARCHIVE", "SIZE", "AGE")
	for _, b := range backups {
		row(tw, b.Filename, formatBytes(b.SizeBytes), fmt.Sprintf("%dh", b.AgeHours))
	}
	return tw.Flush()
}

func runCleanCache(cmd *cobra.Command, args []string) error {
	if cleanCacheDays < 0 {
		return fmt.Errorf("--days must not be negative")
	}
	cutoff := app.Clock.Now().AddDate(0, 0, -cleanCacheDays)

	removed, err := app.PriceCacheRepo.Prune(commandContext(cmd), cutoff)
	if err != nil {
		return fmt.Errorf("clean cache: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, map[string]int64{"removed": removed})
	}
	fmt.Fprintf(out, "Removed %d cached prices\n", removed)
	return nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
