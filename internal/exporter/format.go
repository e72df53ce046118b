package exporter

import (
	"fmt"
	"strings"
)

// formatFloat formats a float64 for CSV output with six decimal places, then
// trims trailing zeros so that 42.000000 renders as 42 and 0.125000 as 0.125.
func formatFloat(f float64) string {
	s := fmt.Sprintf("%.6f", f)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return s
}

// formatValue renders a cell value. Nil is the absent value and renders as an
// empty cell.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return formatFloat(x)
	case int:
		return fmt.Sprintf("%d", x)
	case int64:
		return fmt.Sprintf("%d", x)
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(x)
	}
}
