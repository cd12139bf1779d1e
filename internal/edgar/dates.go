package edgar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Year sanity bounds. Source tables occasionally carry placeholder or
// corrupt dates (e.g. 0001-01-01, 2915-06-30); anything outside these
// bounds is rejected rather than propagated.
const (
	minYear = 2000
	maxYear = 2027
)

var (
	isoDateRe = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	monDateRe = regexp.MustCompile(`^(\d{2})-([A-Za-z]{3})-(\d{4})$`)
)

var monthAbbrevs = map[string]string{
	"JAN": "01", "FEB": "02", "MAR": "03", "APR": "04",
	"MAY": "05", "JUN": "06", "JUL": "07", "AUG": "08",
	"SEP": "09", "OCT": "10", "NOV": "11", "DEC": "12",
}

// NormalizeDate converts a source date string to ISO YYYY-MM-DD form.
// It accepts ISO dates directly and the data set's DD-MON-YYYY form
// (case-insensitive month abbreviation). Any other shape, or a year
// outside [2000, 2027], returns ok=false.
func NormalizeDate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	if m := isoDateRe.FindStringSubmatch(s); m != nil {
		if !yearInBounds(m[1]) {
			return "", false
		}
		return s, true
	}

	if m := monDateRe.FindStringSubmatch(s); m != nil {
		month, ok := monthAbbrevs[strings.ToUpper(m[2])]
		if !ok {
			return "", false
		}
		if !yearInBounds(m[3]) {
			return "", false
		}
		return fmt.Sprintf("%s-%s-%s", m[3], month, m[1]), true
	}

	return "", false
}

func yearInBounds(s string) bool {
	y, err := strconv.Atoi(s)
	if err != nil {
		return false
	}
	return y >= minYear && y <= maxYear
}
