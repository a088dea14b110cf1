package cmd

import (
	"fmt"
	"strings"

	"github.com/aristath/papertrail/internal/clients/proposer"
	"github.com/aristath/papertrail/internal/domain"
	"github.com/aristath/papertrail/internal/modules/decisions"
	"github.com/spf13/cobra"
)

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Run the decision executor for one date",
	Long: `Ask the proposer for actions and apply them to the ledger.

A date that already has a completed decision is skipped. A failed decision
blocks its date; pass --retry-failed to clear it and run again.

With --actions the proposal is read from a YAML or JSON file instead of the
decision service.

Examples:
  tracker decide
  tracker decide --date 2026-03-02 --actions actions.yaml`,
	Args: cobra.NoArgs,
	RunE: runDecide,
}

var (
	decideDate        string
	decideActionsFile string
	decideRetryFailed bool
)

func init() {
	rootCmd.AddCommand(decideCmd)

	decideCmd.Flags().StringVar(&decideDate, "date", "", "decision date YYYY-MM-DD (default today)")
	decideCmd.Flags().StringVar(&decideActionsFile, "actions", "", "read the proposal from a YAML or JSON file")
	decideCmd.Flags().BoolVar(&decideRetryFailed, "retry-failed", false, "delete a failed record for the date before running")
}

func runDecide(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	date, err := parseDateFlag("date", decideDate, domain.Today(app.Clock))
	if err != nil {
		return err
	}

	if decideRetryFailed {
		deleted, err := app.DecisionRepo.DeleteFailed(ctx, date)
		if err != nil {
			return fmt.Errorf("clear failed decision: %w", err)
		}
		if deleted {
			log.Info().Str("date", domain.FormatDate(date)).Msg("Cleared failed decision")
		}
	}

	var result *decisions.RunResult
	if decideActionsFile != "" {
		result, err = app.Executor.RunWith(ctx, date, proposer.NewFileProposer(decideActionsFile))
	} else {
		result, err = app.Executor.Run(ctx, date)
	}
	if err != nil {
		return fmt.Errorf("decide %s: %w", domain.FormatDate(date), err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, result)
	}

	printRunResult(cmd, result)
	if result.Status == decisions.StatusFailed {
		return fmt.Errorf("decision for %s failed", domain.FormatDate(date))
	}
	return nil
}

func printRunResult(cmd *cobra.Command, result *decisions.RunResult) {
	out := cmd.OutOrStdout()
	rec := result.Record
	if rec == nil {
		fmt.Fprintf(out, "Decision %s\n", result.Status)
		return
	}

	fmt.Fprintf(out, "Decision %s: %s\n", domain.FormatDate(rec.Date), result.Status)
	if rec.ErrorMessage != "" {
		fmt.Fprintf(out, "  error: %s\n", rec.ErrorMessage)
	}
	for _, a := range rec.Actions {
		fmt.Fprintf(out, "  %-4s %-8s %s @ %s\n", a.Action, a.Symbol, formatMoney(a.CostAmount), formatPrice(a.Price))
	}
	for _, r := range rec.Rejected {
		fmt.Fprintf(out, "  rejected %s %s: %s\n", r.Action, r.Symbol, r.Reason)
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintf(out, "  warnings: %s\n", strings.Join(result.Warnings, "; "))
	}
	if result.Snapshot != nil {
		printSnapshotLine(cmd, *result.Snapshot)
	}
}
