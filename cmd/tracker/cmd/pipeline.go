package cmd

import (
	"fmt"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/aristath/papertrail/internal/scheduler"
	"github.com/spf13/cobra"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run the full daily pipeline for today",
	Long: `Refresh prices, run today's decision and store today's snapshot.

Weekends are skipped. A failed stage is reported and the remaining stages
still run.`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(pipelineCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	result := jobs.DailyDecision.RunPipeline(commandContext(cmd))

	out := cmd.OutOrStdout()
	if jsonOutput {
		if err := printJSON(out, result); err != nil {
			return err
		}
		return result.Err()
	}

	printPipeline(cmd, result)
	return result.Err()
}

func printPipeline(cmd *cobra.Command, result *scheduler.PipelineResult) {
	out := cmd.OutOrStdout()
	if result.Skipped {
		fmt.Fprintf(out, "%s is not a trading day, nothing to do\n", result.Date)
		return
	}

	fmt.Fprintf(out, "Pipeline %s\n", result.Date)
	if result.Refresh != nil {
		fmt.Fprintf(out, "  prices:   %d/%d updated\n", result.Refresh.Updated, result.Refresh.Total)
	}
	if result.Decision != nil && result.Decision.Record != nil {
		rec := result.Decision.Record
		fmt.Fprintf(out, "  decision: %s (%d executed, %d rejected)\n", result.Decision.Status, len(rec.Actions), len(rec.Rejected))
	}
	if result.Snapshot != nil {
		printSnapshotLine(cmd, *result.Snapshot)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(out, "  error:    %s\n", e)
	}
}

func printSnapshotLine(cmd *cobra.Command, s domain.Snapshot) {
	fmt.Fprintf(cmd.OutOrStdout(), "  snapshot: %s value %s cash %s return %s\n",
		domain.FormatDate(s.Date), formatMoney(s.PortfolioValue), formatMoney(s.Cash), formatPct(s.TotalReturnPct))
}
