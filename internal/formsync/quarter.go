// Package formsync ingests SEC insider-transaction data into the trade
// store: quarterly archive backfill plus live full-text-search discovery,
// both feeding one normalizer and one idempotent writer.
package formsync

import (
	"fmt"
	"time"
)

// archiveURLFormat is the quarterly insider-transactions data set location.
const archiveURLFormat = "https://www.sec.gov/files/structureddata/data/insider-transactions-data-sets/%dq%d_form345.zip"

// QuarterKey identifies one calendar quarter.
type QuarterKey struct {
	Year    int
	Quarter int // 1..4
}

// String renders the sync-log key, e.g. "2026Q1".
func (q QuarterKey) String() string {
	return fmt.Sprintf("%dQ%d", q.Year, q.Quarter)
}

// ArchiveURL returns the published archive URL for this quarter.
func (q QuarterKey) ArchiveURL() string {
	return fmt.Sprintf(archiveURLFormat, q.Year, q.Quarter)
}

// Prev returns the preceding calendar quarter.
func (q QuarterKey) Prev() QuarterKey {
	if q.Quarter == 1 {
		return QuarterKey{Year: q.Year - 1, Quarter: 4}
	}
	return QuarterKey{Year: q.Year, Quarter: q.Quarter - 1}
}

// CurrentQuarter returns the quarter containing now.
func CurrentQuarter(now time.Time) QuarterKey {
	return QuarterKey{
		Year:    now.Year(),
		Quarter: (int(now.Month())-1)/3 + 1,
	}
}

// QuartersBack returns the n most recent quarters starting from the one
// containing now, newest first. The newest quarter's archive may not be
// published yet; its fetch failure is scoped to that quarter, which stays
// eligible for retry on the next run.
func QuartersBack(now time.Time, n int) []QuarterKey {
	keys := make([]QuarterKey, 0, n)
	q := CurrentQuarter(now)
	for range n {
		keys = append(keys, q)
		q = q.Prev()
	}
	return keys
}
