package cmd

import (
	"fmt"
	"strings"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Materialize the equity curve row for one date",
	Long: `Replay the ledger up to the date, value the holdings and store the snapshot.

Re-running for the same date replaces the row.`,
	Args: cobra.NoArgs,
	RunE: runSnapshot,
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Materialize snapshots for every weekday in a range",
	Args:  cobra.NoArgs,
	RunE:  runBackfill,
}

var (
	snapshotDate string

	backfillStart       string
	backfillEnd         string
	backfillOnlyMissing bool
)

func init() {
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(backfillCmd)

	snapshotCmd.Flags().StringVar(&snapshotDate, "date", "", "snapshot date YYYY-MM-DD (default today)")

	backfillCmd.Flags().StringVar(&backfillStart, "start", "", "first date YYYY-MM-DD (default inception)")
	backfillCmd.Flags().StringVar(&backfillEnd, "end", "", "last date YYYY-MM-DD (default today)")
	backfillCmd.Flags().BoolVar(&backfillOnlyMissing, "only-missing", false, "skip dates that already have a snapshot")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	date, err := parseDateFlag("date", snapshotDate, domain.Today(app.Clock))
	if err != nil {
		return err
	}

	snap, err := app.Materializer.Materialize(commandContext(cmd), date)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", domain.FormatDate(date), err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, snap)
	}

	printSnapshotLine(cmd, *snap)
	if len(snap.Holdings) == 0 {
		return nil
	}
	tw := newTable(out)
	row(tw, "SYMBOL", "SHARES", "BUY", "PRICE", "VALUE", "RETURN")
	for _, h := range snap.Holdings {
		price := formatPrice(h.Price)
		if h.PriceMissing {
			price += "*"
		}
		row(tw, h.Symbol, fmt.Sprintf("%.4f", h.Shares), formatPrice(h.BuyPrice), price, formatMoney(h.Value), formatPct(h.ReturnPct))
	}
	return tw.Flush()
}

func runBackfill(cmd *cobra.Command, args []string) error {
	start, err := parseDateFlag("start", backfillStart, app.Config.InceptionDate)
	if err != nil {
		return err
	}
	end, err := parseDateFlag("end", backfillEnd, domain.Today(app.Clock))
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("--end %s is before --start %s", domain.FormatDate(end), domain.FormatDate(start))
	}

	result, err := app.Materializer.Backfill(commandContext(cmd), start, end, backfillOnlyMissing)
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, result)
	}

	fmt.Fprintf(out, "Backfill %s..%s: %d materialized, %d skipped, %d failed\n",
		domain.FormatDate(start), domain.FormatDate(end), result.Materialized, result.Skipped, result.Failed)
	if len(result.Errors) > 0 {
		fmt.Fprintf(out, "Errors:\n  %s\n", strings.Join(result.Errors, "\n  "))
	}
	return nil
}
