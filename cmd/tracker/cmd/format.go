package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/aristath/papertrail/internal/domain"
	"github.com/shopspring/decimal"
)

const displayCurrency = money.USD

// formatMoney renders a dollar amount with grouping, e.g. "$12,345.67"
func formatMoney(amount float64) string {
	cur := money.GetCurrency(displayCurrency)
	factor, _ := decimal.NewFromInt(10).PowInt32(int32(cur.Fraction))
	minor := decimal.NewFromFloat(amount).Mul(factor).Round(0)
	return money.New(minor.IntPart(), displayCurrency).Display()
}

// formatPrice keeps four decimals for sub-dollar prices
func formatPrice(price float64) string {
	if price != 0 && price < 1 && price > -1 {
		return fmt.Sprintf("%.4f", price)
	}
	return fmt.Sprintf("%.2f", price)
}

func formatPct(pct float64) string {
	return fmt.Sprintf("%+.2f%%", pct)
}

func formatOptionalPct(pct *float64) string {
	if pct == nil {
		return "n/a"
	}
	return formatPct(*pct)
}

func formatScore(score *float64) string {
	if score == nil {
		return "pending"
	}
	return fmt.Sprintf("%.1f", *score)
}

func formatOptionalDate(s *string) string {
	if s == nil {
		return "never"
	}
	return *s
}

// parseDateFlag reads a YYYY-MM-DD flag, falling back when empty
func parseDateFlag(name, value string, fallback time.Time) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return domain.Day(fallback), nil
	}
	t, err := domain.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: %w", name, value, err)
	}
	return t, nil
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// row writes tab-separated cells
func row(w io.Writer, cells ...string) {
	fmt.Fprintln(w, strings.Join(cells, "\t"))
}
