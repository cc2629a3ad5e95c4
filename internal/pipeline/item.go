package pipeline

import (
	"fmt"

	"mediaflow/internal/services"
)

// Status is the coarse lifecycle of a work item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// ItemError records why an item stopped progressing.
type ItemError struct {
	Stage   Stage
	Kind    services.Kind
	Message string
}

func (e ItemError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Stage, e.Kind, e.Message)
}

// WorkItem tracks one media source through every stage. Key is immutable for
// the item's lifetime; Stage is the last stage whose artifact exists.
type WorkItem struct {
	Key       string
	Source    string
	Stage     Stage
	Started   bool
	Status    Status
	Artifacts map[Stage]string
	LastError *ItemError
}

// NewWorkItem creates a pending item for source under the derived key.
func NewWorkItem(key, source string) *WorkItem {
	return &WorkItem{
		Key:       key,
		Source:    source,
		Status:    StatusPending,
		Artifacts: make(map[Stage]string, len(allStages)),
	}
}

// Artifact returns the output path recorded for stage.
func (w *WorkItem) Artifact(stage Stage) string {
	if w == nil || w.Artifacts == nil {
		return ""
	}
	return w.Artifacts[stage]
}

// Phase derives the state-machine position of the item.
func (w *WorkItem) Phase() Phase {
	switch {
	case w.Status == StatusFailed:
		return PhaseFailed
	case !w.Started:
		return PhasePending
	default:
		return w.Stage.CompletedPhase()
	}
}

// Terminal reports whether the item reached Done or Failed.
func (w *WorkItem) Terminal() bool {
	return w.Status == StatusDone || w.Status == StatusFailed
}

// NextStage returns the stage the item should run next.
func (w *WorkItem) NextStage() (Stage, bool) {
	if w.Terminal() {
		return 0, false
	}
	if !w.Started {
		return StageFetch, true
	}
	return w.Stage.Next()
}

// Advance records that stage produced path. Completing a stage at or before
// the current one is rejected so an item never regresses.
func (w *WorkItem) Advance(stage Stage, path string) error {
	if w.Status == StatusFailed {
		return fmt.Errorf("item %s: advance %s: item already failed", w.Key, stage)
	}
	if w.Started && stage <= w.Stage {
		return fmt.Errorf("item %s: advance %s: would regress from %s", w.Key, stage, w.Stage)
	}
	if w.Artifacts == nil {
		w.Artifacts = make(map[Stage]string, len(allStages))
	}
	w.Artifacts[stage] = path
	w.Stage = stage
	w.Started = true
	if stage == StagePersist {
		w.Status = StatusDone
	} else {
		w.Status = StatusInProgress
	}
	return nil
}

// Fail marks the item failed at stage. Failed is terminal.
func (w *WorkItem) Fail(stage Stage, kind services.Kind, message string) {
	w.Status = StatusFailed
	w.LastError = &ItemError{Stage: stage, Kind: kind, Message: message}
}

// Clone returns a deep copy safe to hand to a worker goroutine.
func (w *WorkItem) Clone() WorkItem {
	cp := *w
	cp.Artifacts = make(map[Stage]string, len(w.Artifacts))
	for k, v := range w.Artifacts {
		cp.Artifacts[k] = v
	}
	if w.LastError != nil {
		e := *w.LastError
		cp.LastError = &e
	}
	return cp
}
