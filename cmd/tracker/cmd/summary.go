package cmd

import (
	"fmt"
	"io"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/aristath/papertrail/internal/modules/portfolio"
	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show portfolio value, P&L and open holdings",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

var transactionsCmd = &cobra.Command{
	Use:   "transactions",
	Short: "List the most recent ledger events",
	Args:  cobra.NoArgs,
	RunE:  runTransactions,
}

var transactionsLimit int

func init() {
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(transactionsCmd)

	transactionsCmd.Flags().IntVarP(&transactionsLimit, "limit", "n", 20, "number of events to show")
}

func runSummary(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	summary, err := app.PortfolioService.Summary(ctx)
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	holdings, err := app.PortfolioService.Holdings(ctx)
	if err != nil {
		return fmt.Errorf("holdings: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, map[string]interface{}{
			"summary":  summary,
			"holdings": holdings,
		})
	}

	if err := writeSummary(out, summary); err != nil {
		return err
	}
	if len(holdings) == 0 {
		fmt.Fprintln(out, "\nNo open positions")
		return nil
	}
	fmt.Fprintln(out)
	return writeHoldings(out, holdings)
}

func writeSummary(w io.Writer, s *portfolio.Summary) error {
	tw := newTable(w)
	row(tw, "Portfolio value", formatMoney(s.PortfolioValue))
	row(tw, "Cash", formatMoney(s.Cash))
	row(tw, "Holdings value", formatMoney(s.HoldingsValue))
	row(tw, "Cost basis", formatMoney(s.CostBasis))
	row(tw, "Initial capital", formatMoney(s.InitialCapital))
	row(tw, "Total return", formatPct(s.TotalReturnPct))
	row(tw, "Realized P&L", formatMoney(s.RealizedPnL))
	row(tw, "Unrealized P&L", formatMoney(s.UnrealizedPnL))
	row(tw, "Max drawdown", formatPct(s.MaxDrawdownPct))
	row(tw, "Volatility (ann.)", fmt.Sprintf("%.2f%%", s.AnnualizedVolatilityPct))
	row(tw, "Holdings", fmt.Sprintf("%d / %d (%d slots free)", s.HoldingsCount, s.MaxHoldings, s.AvailableSlots))
	row(tw, "Per-stock allocation", formatMoney(s.PerStockAllocation))
	row(tw, "Inception", s.Inception)
	row(tw, "Last decision", formatOptionalDate(s.LastDecisionDate))
	row(tw, "Last snapshot", formatOptionalDate(s.LastSnapshotDate))
	return tw.Flush()
}

func writeHoldings(w io.Writer, holdings []portfolio.Holding) error {
	tw := newTable(w)
	row(tw, "SYMBOL", "BOUGHT", "BUY", "PRICE", "COST", "VALUE", "P&L", "RETURN", "ALLOC")
	for _, h := range holdings {
		row(tw,
			h.Symbol,
			domain.FormatDate(h.BuyDate),
			formatPrice(h.BuyPrice),
			formatPrice(h.CurrentPrice),
			formatMoney(h.CostAmount),
			formatMoney(h.MarketValue),
			formatMoney(h.UnrealizedPnL),
			formatPct(h.ReturnPct),
			fmt.Sprintf("%.1f%%", h.AllocationPct),
		)
	}
	return tw.Flush()
}

func runTransactions(cmd *cobra.Command, args []string) error {
	events, err := app.PortfolioService.Transactions(commandContext(cmd), transactionsLimit)
	if err != nil {
		return fmt.Errorf("transactions: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, events)
	}
	if len(events) == 0 {
		fmt.Fprintln(out, "Ledger is empty")
		return nil
	}

	tw := newTable(out)
	row(tw, "DATE", "ACTION", "SYMBOL", "PRICE", "AMOUNT", "REALIZED", "REASON")
	for _, e := range events {
		row(tw,
			domain.FormatDate(e.Date),
			string(e.Action),
			e.Symbol,
			formatPrice(e.Price),
			formatMoney(e.CostAmount),
			formatOptionalPct(e.RealizedPct),
			e.Reason,
		)
	}
	return tw.Flush()
}
