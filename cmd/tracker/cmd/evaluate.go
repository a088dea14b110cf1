package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score decisions whose lookback window has passed",
	Args:  cobra.NoArgs,
	RunE:  runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	result, err := app.Evaluator.EvaluatePending(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, result)
	}

	fmt.Fprintf(out, "Evaluated %d decisions, %d still pending\n", result.Evaluated, result.Skipped)
	for _, e := range result.Errors {
		fmt.Fprintf(out, "  error: %s\n", e)
	}
	return nil
}
