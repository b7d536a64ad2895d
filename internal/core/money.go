package core

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

// FormatMillions renders a USD amount as "$12.3M".
func FormatMillions(v float64) string {
	return fmt.Sprintf("$%.1fM", v/1e6)
}

// FormatMillionsPrecise renders a USD amount as "$12.34M".
func FormatMillionsPrecise(v float64) string {
	return fmt.Sprintf("$%.2fM", v/1e6)
}

// FormatUSD renders a whole-dollar amount with thousands separators, e.g. "-$1,234,568".
func FormatUSD(v float64) string {
	r := math.Round(v)
	if r == 0 {
		return "$0"
	}
	if r < 0 {
		return "-$" + humanize.Comma(int64(-r))
	}
	return "$" + humanize.Comma(int64(r))
}

// FormatPercent renders a percentage with the given number of decimals.
func FormatPercent(v float64, decimals int) string {
	return fmt.Sprintf("%.*f%%", decimals, v)
}

// FormatRate renders a discount rate the way it appears in chart titles.
func FormatRate(ratePercent float64) string {
	return fmt.Sprintf("%.1f", ratePercent)
}
