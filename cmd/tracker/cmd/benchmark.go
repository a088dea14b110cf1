package cmd

import (
	"fmt"
	"io"

	"github.com/aristath/papertrail/internal/modules/benchmark"
	"github.com/spf13/cobra"
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Compare the portfolio return series with the benchmark tickers",
	Args:  cobra.NoArgs,
	RunE:  runBenchmark,
}

var benchmarkStart string

func init() {
	rootCmd.AddCommand(benchmarkCmd)

	benchmarkCmd.Flags().StringVar(&benchmarkStart, "start", "", "first date YYYY-MM-DD (default inception)")
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	start, err := parseDateFlag("start", benchmarkStart, app.Config.InceptionDate)
	if err != nil {
		return err
	}

	comparison, err := app.Aligner.Report(commandContext(cmd), &start)
	if err != nil {
		return fmt.Errorf("benchmark: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, comparison)
	}
	return writeComparison(out, comparison, app.Config.BenchmarkTickers)
}

// writeComparison prints one row per aligned date; gaps show as "-"
func writeComparison(w io.Writer, c *benchmark.Comparison, tickers []string) error {
	if len(c.Dates) == 0 {
		fmt.Fprintln(w, "No data to compare")
		return nil
	}

	tw := newTable(w)
	header := append([]string{"DATE", "PORTFOLIO"}, tickers...)
	row(tw, header...)
	for i, date := range c.Dates {
		cells := []string{date, seriesCell(c.Portfolio, i)}
		for _, t := range tickers {
			cells = append(cells, seriesCell(c.Benchmarks[t], i))
		}
		row(tw, cells...)
	}
	return tw.Flush()
}

func seriesCell(series []*float64, i int) string {
	if i >= len(series) || series[i] == nil {
		return "-"
	}
	return formatPct(*series[i])
}
