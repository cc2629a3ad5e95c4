package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"mediaflow/internal/batch"
	"mediaflow/internal/config"
	"mediaflow/internal/gate"
	"mediaflow/internal/ledger"
	"mediaflow/internal/logging"
	"mediaflow/internal/memmon"
	"mediaflow/internal/modelload"
	"mediaflow/internal/pipeline"
	"mediaflow/internal/retry"
	"mediaflow/internal/services"
	"mediaflow/internal/stageexec"
)

// Ledger records runs and their stage results. *ledger.Store satisfies it.
type Ledger interface {
	BeginRun(ctx context.Context, runID string, items int) error
	RecordResult(ctx context.Context, runID, source string, result pipeline.StageResult) error
	FinishRun(ctx context.Context, runID string, c ledger.Completion) error
}

// Dependencies are the collaborators an Orchestrator drives.
type Dependencies struct {
	Fetcher       pipeline.Fetcher
	Converter     pipeline.Converter
	Loader        *modelload.Loader[pipeline.Transcriber]
	PostProcessor pipeline.PostProcessor
	Persister     pipeline.Persister
	Gate          *gate.Gate
	Retry         retry.Policy
	// Ledger is optional; nil disables run recording.
	Ledger Ledger
	// Sampler is optional; nil disables the memory monitor.
	Sampler memmon.Sampler
	Logger  *slog.Logger
}

// Options tunes a run.
type Options struct {
	Concurrency           int
	TranscribeConcurrency int
	BatchTimeout          time.Duration
	MemoryInterval        time.Duration
	MemoryThreshold       float64
	MaxThrottle           time.Duration
	// Language is recorded on transcripts; empty or "auto" means detected.
	Language string
}

// OptionsFromConfig maps the workflow, memory and transcription sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Concurrency:           cfg.Workflow.Concurrency,
		TranscribeConcurrency: cfg.Workflow.TranscribeConcurrency,
		BatchTimeout:          cfg.BatchTimeout(),
		MemoryInterval:        cfg.MemoryInterval(),
		MemoryThreshold:       float64(cfg.Memory.ThresholdPercent),
		MaxThrottle:           cfg.MaxThrottle(),
		Language:              cfg.Transcription.Language,
	}
}

// Orchestrator runs the pipeline over a set of sources.
type Orchestrator struct {
	fetcher   pipeline.Fetcher
	converter pipeline.Converter
	loader    *modelload.Loader[pipeline.Transcriber]
	post      pipeline.PostProcessor
	persister pipeline.Persister
	gate      *gate.Gate
	retry     retry.Policy
	ledger    Ledger
	sampler   memmon.Sampler
	runner    *batch.Runner
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
}

// New validates deps and builds an Orchestrator.
func New(deps Dependencies, opts Options) (*Orchestrator, error) {
	var missing []error
	if deps.Fetcher == nil {
		missing = append(missing, errors.New("fetcher is required"))
	}
	if deps.Converter == nil {
		missing = append(missing, errors.New("converter is required"))
	}
	if deps.Loader == nil {
		missing = append(missing, errors.New("model loader is required"))
	}
	if deps.PostProcessor == nil {
		missing = append(missing, errors.New("post-processor is required"))
	}
	if deps.Persister == nil {
		missing = append(missing, errors.New("persister is required"))
	}
	if deps.Gate == nil {
		missing = append(missing, errors.New("existence gate is required"))
	}
	if len(missing) > 0 {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "new orchestrator", "", errors.Join(missing...))
	}

	logger := logging.NewComponentLogger(deps.Logger, "workflow")
	policy := deps.Retry
	if policy.MaxAttempts < 1 {
		policy, _ = retry.New(1, 0, 1, retry.WithLogger(logger))
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.TranscribeConcurrency < 1 {
		opts.TranscribeConcurrency = 1
	}

	exec := stageexec.New(deps.Gate, deps.Logger)
	return &Orchestrator{
		fetcher:   deps.Fetcher,
		converter: deps.Converter,
		loader:    deps.Loader,
		post:      deps.PostProcessor,
		persister: deps.Persister,
		gate:      deps.Gate,
		retry:     policy,
		ledger:    deps.Ledger,
		sampler:   deps.Sampler,
		runner:    batch.New(exec, deps.Logger),
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (o *Orchestrator) concurrencyFor(stage pipeline.Stage) int {
	if stage == pipeline.StageTranscribe {
		return o.opts.TranscribeConcurrency
	}
	return o.opts.Concurrency
}
