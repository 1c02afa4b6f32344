// Package humanize formats byte counts for terminal output.
package humanize

import "fmt"

func Size(i int64) (float64, string) {
	switch {
	case i < 1024:
		return float64(i), "B"
	case i < 1024*1024:
		return float64(i) / 1024, "KB"
	case i < 1024*1024*1024:
		return float64(i) / (1024 * 1024), "MB"
	default:
		return float64(i) / (1024 * 1024 * 1024), "GB"
	}
}

// Format renders i as "12.34MB". Plain bytes have no decimals.
func Format(i int64) string {
	sz, unit := Size(i)

	if unit == "B" {
		return fmt.Sprintf("%d%s", i, unit)
	}

	return fmt.Sprintf("%.2f%s", sz, unit)
}
