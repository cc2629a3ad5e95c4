package ledger

import "time"

// RunStatus is the lifecycle of a recorded run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunAborted   RunStatus = "aborted"
)

// Totals counts item outcomes across a run.
type Totals struct {
	Items     int
	Skipped   int
	Succeeded int
	Failed    int
}

// Run is one recorded pipeline invocation.
type Run struct {
	ID         string
	Status     RunStatus
	Tier       string
	Totals     Totals
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Duration reports how long the run took, or has been running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Completion is written when a run ends.
type Completion struct {
	Status RunStatus
	Tier   string
	Totals Totals
	Error  string
}

// Result is one recorded stage outcome.
type Result struct {
	ID         int64
	RunID      string
	ItemKey    string
	Source     string
	Stage      string
	Outcome    string
	Kind       string
	Message    string
	Path       string
	Duration   time.Duration
	RecordedAt time.Time
}
