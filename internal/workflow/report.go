package workflow

import (
	"time"

	"mediaflow/internal/batch"
	"mediaflow/internal/ledger"
	"mediaflow/internal/pipeline"
	"mediaflow/internal/services"
)

// ItemSummary is the final state of one source after a run.
type ItemSummary struct {
	Key    string
	Source string
	Status pipeline.Status
	// Stage is the last stage whose artifact exists, empty if none.
	Stage string
	// Worked is false when every stage was skipped.
	Worked      bool
	FailedStage string
	Kind        services.Kind
	Message     string
}

// Totals counts items by final state. Skipped items were already complete.
type Totals struct {
	Items     int
	Succeeded int
	Skipped   int
	Failed    int
	Pending   int
}

// RunReport describes one Run call.
type RunReport struct {
	RunID     string
	Tier      string
	Stages    []batch.Report
	Items     []ItemSummary
	Totals    Totals
	StartedAt time.Time
	Duration  time.Duration
}

// Stage returns the report for stage, if it ran.
func (r RunReport) Stage(stage pipeline.Stage) (batch.Report, bool) {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s, true
		}
	}
	return batch.Report{}, false
}

// Item returns the summary for key.
func (r RunReport) Item(key string) (ItemSummary, bool) {
	for _, it := range r.Items {
		if it.Key == key {
			return it, true
		}
	}
	return ItemSummary{}, false
}

func summarizeItem(item *pipeline.WorkItem, worked bool) ItemSummary {
	s := ItemSummary{
		Key:    item.Key,
		Source: item.Source,
		Status: item.Status,
		Worked: worked,
	}
	if item.Started {
		s.Stage = item.Stage.String()
	}
	if item.LastError != nil {
		s.FailedStage = item.LastError.Stage.String()
		s.Kind = item.LastError.Kind
		s.Message = item.LastError.Message
	}
	return s
}

func computeTotals(items []ItemSummary) Totals {
	t := Totals{Items: len(items)}
	for _, it := range items {
		switch {
		case it.Status == pipeline.StatusFailed:
			t.Failed++
		case it.Status == pipeline.StatusDone && it.Worked:
			t.Succeeded++
		case it.Status == pipeline.StatusDone:
			t.Skipped++
		default:
			t.Pending++
		}
	}
	return t
}

func (t Totals) ledgerTotals() ledger.Totals {
	return ledger.Totals{Items: t.Items, Skipped: t.Skipped, Succeeded: t.Succeeded, Failed: t.Failed}
}
