package exporter

import (
	"fmt"
	"strconv"
)

// formatValue formats a percentile value for CSV output. Nil values become
// empty cells rather than zeros so downstream spreadsheets can tell
// "unreported" from "zero".
func formatValue(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

// formatInt formats an int value for CSV output
func formatInt(i int) string {
	return fmt.Sprintf("%d", i)
}

// formatBool formats a boolean value for CSV output
func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
