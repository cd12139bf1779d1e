package formsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQuarterKey_String(t *testing.T) {
	assert.Equal(t, "2026Q1", QuarterKey{Year: 2026, Quarter: 1}.String())
	assert.Equal(t, "2023Q4", QuarterKey{Year: 2023, Quarter: 4}.String())
}

func TestQuarterKey_ArchiveURL(t *testing.T) {
	url := QuarterKey{Year: 2026, Quarter: 2}.ArchiveURL()
	assert.Equal(t, "https://www.sec.gov/files/structureddata/data/insider-transactions-data-sets/2026q2_form345.zip", url)
}

func TestCurrentQuarter(t *testing.T) {
	tests := []struct {
		month time.Month
		want  int
	}{
		{time.January, 1}, {time.March, 1},
		{time.April, 2}, {time.June, 2},
		{time.July, 3}, {time.September, 3},
		{time.October, 4}, {time.December, 4},
	}
	for _, tt := range tests {
		now := time.Date(2026, tt.month, 15, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, QuarterKey{Year: 2026, Quarter: tt.want}, CurrentQuarter(now))
	}
}

func TestQuartersBack_YearBoundary(t *testing.T) {
	now := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	got := QuartersBack(now, 6)

	want := []QuarterKey{
		{2026, 1},
		{2025, 4},
		{2025, 3},
		{2025, 2},
		{2025, 1},
		{2024, 4},
	}
	assert.Equal(t, want, got)
}
