package pipeline

import (
	"fmt"
	"strings"

	"mediaflow/internal/services"
)

// Stage is one step of the fixed processing sequence.
type Stage int

const (
	StageFetch Stage = iota
	StageConvert
	StageTranscribe
	StagePostProcess
	StagePersist
)

var allStages = []Stage{StageFetch, StageConvert, StageTranscribe, StagePostProcess, StagePersist}

type stageInfo struct {
	name       string
	active     Phase
	completed  Phase
	defaultErr services.Kind
}

var stageTable = map[Stage]stageInfo{
	StageFetch:       {"fetch", PhaseFetching, PhaseFetched, services.KindFetch},
	StageConvert:     {"convert", PhaseConverting, PhaseConverted, services.KindConversion},
	StageTranscribe:  {"transcribe", PhaseTranscribing, PhaseTranscribed, services.KindTranscription},
	StagePostProcess: {"postprocess", PhasePostProcessing, PhasePostProcessed, services.KindPostProcess},
	StagePersist:     {"persist", PhasePersisting, PhaseDone, services.KindPersist},
}

// Stages returns the ordered stage sequence.
func Stages() []Stage {
	cp := make([]Stage, len(allStages))
	copy(cp, allStages)
	return cp
}

// String returns the stage's canonical lowercase name.
func (s Stage) String() string {
	if info, ok := stageTable[s]; ok {
		return info.name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	_, ok := stageTable[s]
	return ok
}

// Next returns the stage after s, or false when s is the last stage.
func (s Stage) Next() (Stage, bool) {
	if !s.Valid() || s == StagePersist {
		return s, false
	}
	return s + 1, true
}

// ErrorKind is the classification applied to unmarked failures of this stage.
func (s Stage) ErrorKind() services.Kind {
	return stageTable[s].defaultErr
}

// ActivePhase is the item phase while this stage runs.
func (s Stage) ActivePhase() Phase {
	return stageTable[s].active
}

// CompletedPhase is the item phase once this stage has produced its artifact.
func (s Stage) CompletedPhase() Phase {
	return stageTable[s].completed
}

// ParseStage converts a stage name into a Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "-", "")
	normalized = strings.ReplaceAll(normalized, "_", "")
	for _, s := range allStages {
		if s.String() == normalized {
			return s, true
		}
	}
	return 0, false
}

// Phase is a point in the per-item state machine:
// pending → fetching → fetched → converting → … → done, or failed from anywhere.
type Phase string

const (
	PhasePending        Phase = "pending"
	PhaseFetching       Phase = "fetching"
	PhaseFetched        Phase = "fetched"
	PhaseConverting     Phase = "converting"
	PhaseConverted      Phase = "converted"
	PhaseTranscribing   Phase = "transcribing"
	PhaseTranscribed    Phase = "transcribed"
	PhasePostProcessing Phase = "post_processing"
	PhasePostProcessed  Phase = "post_processed"
	PhasePersisting     Phase = "persisting"
	PhaseDone           Phase = "done"
	PhaseFailed         Phase = "failed"
)
