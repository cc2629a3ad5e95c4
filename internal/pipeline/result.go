package pipeline

import (
	"time"

	"mediaflow/internal/services"
)

// Outcome is the result class of one stage execution.
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// StageResult is the outcome of one stage for one item.
type StageResult struct {
	Key      string
	Stage    Stage
	Outcome  Outcome
	Path     string
	Kind     services.Kind
	Message  string
	Duration time.Duration
}

// Skipped builds a result for an artifact that already existed.
func Skipped(key string, stage Stage, path string) StageResult {
	return StageResult{Key: key, Stage: stage, Outcome: OutcomeSkipped, Path: path}
}

// Succeeded builds a result for a stage that produced path.
func Succeeded(key string, stage Stage, path string, elapsed time.Duration) StageResult {
	return StageResult{Key: key, Stage: stage, Outcome: OutcomeSucceeded, Path: path, Duration: elapsed}
}

// Failed builds a result for a stage that did not produce its artifact.
func Failed(key string, stage Stage, kind services.Kind, message string, elapsed time.Duration) StageResult {
	return StageResult{Key: key, Stage: stage, Outcome: OutcomeFailed, Kind: kind, Message: message, Duration: elapsed}
}

// Advanced reports whether the item may proceed to the next stage.
func (r StageResult) Advanced() bool {
	return r.Outcome == OutcomeSkipped || r.Outcome == OutcomeSucceeded
}
