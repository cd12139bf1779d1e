package formsync

import (
	"math"
	"strconv"
	"strings"
)

// parseFloatOr parses a string as a float64, returning def if the string is
// empty or unparseable. Source numeric fields may carry thousands separators.
func parseFloatOr(s string, def float64) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}

// absRound returns the rounded absolute value as an int64.
func absRound(v float64) int64 {
	return int64(math.Round(math.Abs(v)))
}

// firstNonEmpty returns the first non-empty candidate.
func firstNonEmpty(candidates ...string) (string, bool) {
	for _, c := range candidates {
		if c != "" {
			return c, true
		}
	}
	return "", false
}
