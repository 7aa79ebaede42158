package utils

import (
	"fmt"
)

// FormatMinor renders a minor-unit amount for display ("50000" -> "500.00")
// using integer math only; the ledger itself never touches floats.
func FormatMinor(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// FormatRupees renders a minor-unit amount with the currency symbol.
func FormatRupees(minor int64) string {
	return "₹" + FormatMinor(minor)
}
