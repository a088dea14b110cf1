package cmd

import (
	"fmt"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/spf13/cobra"
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Inspect decision records",
	Long: `Inspect the audit records written by the decision executor.

Subcommands:
  list  - Recent decisions with their status and accuracy
  show  - Full report for one date (default latest)`,
}

var decisionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent decisions",
	Args:  cobra.NoArgs,
	RunE:  runDecisionsList,
}

var decisionsShowCmd = &cobra.Command{
	Use:   "show [YYYY-MM-DD]",
	Short: "Show the report of one decision",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDecisionsShow,
}

var (
	decisionsLimit int
	decisionsRaw   bool
)

func init() {
	rootCmd.AddCommand(decisionsCmd)
	decisionsCmd.AddCommand(decisionsListCmd)
	decisionsCmd.AddCommand(decisionsShowCmd)

	decisionsListCmd.Flags().IntVarP(&decisionsLimit, "limit", "n", 20, "number of decisions to show")
	decisionsShowCmd.Flags().BoolVar(&decisionsRaw, "raw", false, "print markdown without terminal styling")
}

func runDecisionsList(cmd *cobra.Command, args []string) error {
	records, err := app.DecisionRepo.List(commandContext(cmd), decisionsLimit)
	if err != nil {
		return fmt.Errorf("list decisions: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, records)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No decisions recorded")
		return nil
	}

	tw := newTable(out)
	row(tw, "DATE", "STATUS", "ACTIONS", "REJECTED", "ACCURACY", "SUMMARY")
	for _, rec := range records {
		row(tw,
			domain.FormatDate(rec.Date),
			string(rec.Status),
			fmt.Sprintf("%d", len(rec.Actions)),
			fmt.Sprintf("%d", len(rec.Rejected)),
			formatScore(rec.AccuracyScore),
			truncate(rec.Summary, 60),
		)
	}
	return tw.Flush()
}

func runDecisionsShow(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	var (
		rec *domain.DecisionRecord
		err error
	)
	if len(args) == 1 {
		date, perr := domain.ParseDate(args[0])
		if perr != nil {
			return fmt.Errorf("invalid date %q: %w", args[0], perr)
		}
		rec, err = app.DecisionRepo.GetByDate(ctx, date)
	} else {
		rec, err = app.DecisionRepo.Latest(ctx)
	}
	if err != nil {
		return fmt.Errorf("load decision: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("no decision found")
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, rec)
	}

	md, err := decisionMarkdown(*rec)
	if err != nil {
		return fmt.Errorf("render decision: %w", err)
	}
	if decisionsRaw {
		_, err = fmt.Fprint(out, md)
		return err
	}

	styled, err := renderMarkdown(md)
	if err != nil {
		return fmt.Errorf("render decision: %w", err)
	}
	_, err = fmt.Fprint(out, styled)
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
