// Package methodology implements the three independent Shariah screening
// methodologies: numeric ratio screens, auto-ban, and the composite
// (Invesense) verdict.
package methodology

import (
	"fmt"
	"math"
)

// NormalizeRatio maps a ratio that may be stored either as a percentage
// (45) or as a fraction (0.45) into fractional space. Values above 1 are
// read as percentages. The result is clamped to [0, 1], which makes the
// function idempotent for every input.
func NormalizeRatio(x float64) float64 {
	if math.IsNaN(x) || x <= 0 {
		return 0
	}
	if x > 1 {
		x /= 100
	}
	return math.Min(x, 1)
}

// PercentFromRatio expresses a fraction-or-percentage ratio on the 0-100
// scale. Unlike NormalizeRatio it does not cap at 100: debt can exceed
// market capitalization, and 150 stays 150.
func PercentFromRatio(x float64) float64 {
	if math.IsNaN(x) || x <= 0 {
		return 0
	}
	if x > 1 {
		return x
	}
	return x * 100
}

// FormatPct formats a percentage for display with two decimals.
func FormatPct(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

// formatPctPtr formats v, or returns "N/A" when v is nil.
func formatPctPtr(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return FormatPct(*v)
}
