package formsync

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// logRingSize bounds how many recent log lines Status retains.
const logRingSize = 200

// QuarterResult is the per-quarter outcome of the most recent run.
type QuarterResult struct {
	Quarter  string        `json:"quarter"`
	Outcome  string        `json:"outcome"` // "done", "skipped", "failed"
	Rows     int64         `json:"rows"`
	Inserted int64         `json:"inserted"`
	Elapsed  time.Duration `json:"elapsed"`
	Error    string        `json:"error,omitempty"`
}

// Status is a point-in-time snapshot of the tracker.
type Status struct {
	Running   bool            `json:"running"`
	RunID     string          `json:"run_id,omitempty"`
	StartedAt *time.Time      `json:"started_at,omitempty"`
	Quarters  []QuarterResult `json:"quarters"`
	Log       []string        `json:"log"`
}

// Tracker records run progress for the status surface. Safe for
// concurrent use: the engine writes while API handlers read.
type Tracker struct {
	mu        sync.Mutex
	running   bool
	runID     string
	startedAt time.Time
	quarters  []QuarterResult
	log       []string
}

// Begin marks a run started and returns its ID. Returns ok=false if a run
// is already in flight; overlapping runs would double resident memory.
func (t *Tracker) Begin() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return "", false
	}
	t.running = true
	t.runID = uuid.NewString()
	t.startedAt = time.Now().UTC()
	t.quarters = nil
	return t.runID, true
}

// End marks the current run finished.
func (t *Tracker) End() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
}

// Record appends one quarter's outcome.
func (t *Tracker) Record(r QuarterResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.quarters = append(t.quarters, r)
}

// Logf appends a formatted line to the bounded log ring.
func (t *Tracker) Logf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	line := time.Now().UTC().Format(time.RFC3339) + " " + fmt.Sprintf(format, args...)
	t.log = append(t.log, line)
	if len(t.log) > logRingSize {
		t.log = t.log[len(t.log)-logRingSize:]
	}
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Status{
		Running:  t.running,
		RunID:    t.runID,
		Quarters: append([]QuarterResult(nil), t.quarters...),
		Log:      append([]string(nil), t.log...),
	}
	if !t.startedAt.IsZero() {
		started := t.startedAt
		s.StartedAt = &started
	}
	return s
}
