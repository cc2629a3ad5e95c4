package batch

import (
	"time"

	"mediaflow/internal/pipeline"
	"mediaflow/internal/services"
)

// Failure names an item that failed and why.
type Failure struct {
	Key     string
	Kind    services.Kind
	Message string
}

// Report aggregates one batch invocation.
type Report struct {
	Stage     pipeline.Stage
	Total     int
	Skipped   int
	Succeeded int
	Failed    int
	Failures  []Failure
	// Results holds one entry per submitted item, in submission order.
	Results  []pipeline.StageResult
	TimedOut bool
	Duration time.Duration
}

// Summarize builds a report from results already in submission order.
func Summarize(stage pipeline.Stage, results []pipeline.StageResult) Report {
	r := Report{Stage: stage, Total: len(results), Results: results}
	for _, res := range results {
		switch res.Outcome {
		case pipeline.OutcomeSkipped:
			r.Skipped++
		case pipeline.OutcomeSucceeded:
			r.Succeeded++
		default:
			r.Failed++
			r.Failures = append(r.Failures, Failure{Key: res.Key, Kind: res.Kind, Message: res.Message})
			if res.Kind == services.KindTimeout {
				r.TimedOut = true
			}
		}
	}
	return r
}

// Result returns the result for key.
func (r Report) Result(key string) (pipeline.StageResult, bool) {
	for _, res := range r.Results {
		if res.Key == key {
			return res, true
		}
	}
	return pipeline.StageResult{}, false
}

// Merge folds other's counts into r. Used when a stage is split across
// several invocations.
func (r Report) Merge(other Report) Report {
	r.Total += other.Total
	r.Skipped += other.Skipped
	r.Succeeded += other.Succeeded
	r.Failed += other.Failed
	r.Failures = append(r.Failures, other.Failures...)
	r.Results = append(r.Results, other.Results...)
	r.TimedOut = r.TimedOut || other.TimedOut
	r.Duration += other.Duration
	return r
}
