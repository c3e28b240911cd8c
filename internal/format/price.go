package format

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatPrice renders a usd amount with grouping, e.g. "$67,234.50".
// Sub-dollar prices keep more precision.
func FormatPrice(usd float64) string {
	if usd != 0 && math.Abs(usd) < 1 {
		return printer.Sprintf("$%.4f", usd)
	}
	return printer.Sprintf("$%.2f", usd)
}

// FormatChange renders a 24h percentage change with a direction marker.
func FormatChange(change float64) string {
	marker := "▲"
	if change < 0 {
		marker = "▼"
	}
	return printer.Sprintf("%s %.2f%%", marker, math.Abs(change))
}
