package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var errLedgerDrift = errors.New("open positions out of sync with the ledger")

var verifyLedgerCmd = &cobra.Command{
	Use:   "verify-ledger",
	Short: "Replay the ledger and compare it with the open position cache",
	Long: `Replay every ledger event and report symbols whose cached open position
disagrees with the replay, plus any replay violations.

With --rebuild the cache is replaced by the replayed holdings.`,
	Args: cobra.NoArgs,
	RunE: runVerifyLedger,
}

var verifyRebuild bool

func init() {
	rootCmd.AddCommand(verifyLedgerCmd)

	verifyLedgerCmd.Flags().BoolVar(&verifyRebuild, "rebuild", false, "rebuild open positions from the ledger when they drift")
}

func runVerifyLedger(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	report, err := app.ReplayEngine.Verify(ctx)
	if err != nil {
		return fmt.Errorf("verify ledger: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		if err := printJSON(out, report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "Replayed %d events, cash %s\n", report.Events, formatMoney(report.Cash))
		if len(report.Missing) > 0 {
			fmt.Fprintf(out, "  missing from cache: %s\n", strings.Join(report.Missing, ", "))
		}
		if len(report.Extra) > 0 {
			fmt.Fprintf(out, "  not held per ledger: %s\n", strings.Join(report.Extra, ", "))
		}
		if len(report.Mismatched) > 0 {
			fmt.Fprintf(out, "  mismatched: %s\n", strings.Join(report.Mismatched, ", "))
		}
		for _, v := range report.Violations {
			fmt.Fprintf(out, "  violation: %s\n", v.Error())
		}
		if report.InSync {
			fmt.Fprintln(out, "Open positions match the ledger")
		}
	}

	if report.InSync {
		return nil
	}
	if !verifyRebuild {
		return errLedgerDrift
	}

	if err := app.LedgerStore.RebuildPositions(ctx, report.Holdings); err != nil {
		return fmt.Errorf("rebuild open positions: %w", err)
	}
	log.Info().Int("positions", len(report.Holdings)).Msg("Open positions rebuilt from ledger")
	if !jsonOutput {
		fmt.Fprintf(out, "Rebuilt %d open positions\n", len(report.Holdings))
	}
	return nil
}
