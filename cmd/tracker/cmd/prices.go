package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var refreshPricesCmd = &cobra.Command{
	Use:   "refresh-prices",
	Short: "Update the current price of every open position",
	Args:  cobra.NoArgs,
	RunE:  runRefreshPrices,
}

func init() {
	rootCmd.AddCommand(refreshPricesCmd)
}

func runRefreshPrices(cmd *cobra.Command, args []string) error {
	result, err := app.RefreshService.Refresh(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("refresh prices: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, result)
	}

	fmt.Fprintf(out, "Updated %d of %d positions\n", result.Updated, result.Total)
	if len(result.Failed) > 0 {
		fmt.Fprintf(out, "No price for: %s\n", strings.Join(result.Failed, ", "))
	}
	return nil
}
