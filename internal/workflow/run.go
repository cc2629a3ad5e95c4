package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"mediaflow/internal/batch"
	"mediaflow/internal/gate"
	"mediaflow/internal/logging"
	"mediaflow/internal/modelload"
	"mediaflow/internal/pipeline"
	"mediaflow/internal/services"
	"mediaflow/internal/stageexec"
)

// runState is owned by the Run goroutine; workers only see item clones.
type runState struct {
	id        string
	items     []*pipeline.WorkItem
	byKey     map[string]*pipeline.WorkItem
	worked    map[string]bool
	rejected  []ItemSummary
	handle    *modelload.Handle[pipeline.Transcriber]
	admission batch.Admitter
}

func (rs *runState) source(key string) string {
	if item := rs.byKey[key]; item != nil {
		return item.Source
	}
	return ""
}

// Run drives sources through every stage. Per-item failures are reported,
// not returned; the error is non-nil only when the run itself stopped early
// (model load failure or cancellation). The report is valid either way.
func (o *Orchestrator) Run(ctx context.Context, sources []string) (RunReport, error) {
	start := o.now()
	rs := &runState{
		id:     uuid.NewString(),
		byKey:  make(map[string]*pipeline.WorkItem, len(sources)),
		worked: make(map[string]bool, len(sources)),
	}
	ctx = services.WithRunID(ctx, rs.id)
	logger := logging.WithContext(ctx, o.logger)
	report := RunReport{RunID: rs.id, StartedAt: start.UTC()}

	if err := o.gate.Layout().EnsureDirs(); err != nil {
		return report, services.Wrap(services.ErrConfiguration, "workflow", "prepare directories", "", err)
	}
	o.plan(logger, rs, sources)
	o.beginLedger(ctx, logger, rs)

	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("sources", len(sources)),
		logging.Int("items", len(rs.items)),
		logging.Int("rejected", len(rs.rejected)),
		logging.Int("concurrency", o.opts.Concurrency),
	)

	admission, stopMonitor := o.startMemoryMonitor(logger)
	rs.admission = admission
	defer stopMonitor()

	var runErr error
	for _, stage := range pipeline.Stages() {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		stageReport, err := o.runStage(ctx, logger, rs, stage)
		report.Stages = append(report.Stages, stageReport)
		if err != nil {
			runErr = err
			break
		}
		if runErr = ctx.Err(); runErr != nil {
			break
		}
	}

	for _, item := range rs.items {
		report.Items = append(report.Items, summarizeItem(item, rs.worked[item.Key]))
	}
	report.Items = append(report.Items, rs.rejected...)
	report.Totals = computeTotals(report.Items)
	if rs.handle != nil {
		report.Tier = string(rs.handle.Tier())
	}
	report.Duration = o.now().Sub(start)

	o.finishLedger(ctx, logger, report, runErr)
	o.logCompletion(logger, report, runErr)
	return report, runErr
}

// plan derives keys, collapses repeated sources, and resumes each item at the
// furthest artifact already on disk. A distinct source whose key is already
// taken is reported failed rather than sharing the other item's artifacts.
func (o *Orchestrator) plan(logger *slog.Logger, rs *runState, sources []string) {
	for _, raw := range sources {
		source := strings.TrimSpace(raw)
		key, err := gate.KeyFor(source)
		if err != nil {
			logging.WarnWithContext(logger, "source rejected", "source_rejected",
				logging.String("source", source),
				logging.Error(err),
				logging.String(logging.FieldImpact, "source is reported failed and not processed"),
			)
			rs.rejected = append(rs.rejected, rejectedSource("", source, err.Error()))
			continue
		}
		if existing, taken := rs.byKey[key]; taken {
			if sameSource(existing.Source, source) {
				logger.Info("repeated source collapsed",
					logging.String(logging.FieldItemKey, key),
					logging.String("source", source),
				)
				continue
			}
			logging.WarnWithContext(logger, "source key collision", "key_collision",
				logging.String(logging.FieldItemKey, key),
				logging.String("source", source),
				logging.String("kept_source", existing.Source),
				logging.String(logging.FieldErrorHint, "rename the file or run it separately"),
				logging.String(logging.FieldImpact, "source is reported failed and not processed"),
			)
			rs.rejected = append(rs.rejected, rejectedSource(key, source,
				fmt.Sprintf("key %q collides with %s", key, existing.Source)))
			continue
		}
		item := pipeline.NewWorkItem(key, source)
		if furthest, ok := o.gate.Furthest(key); ok {
			if err := item.Advance(furthest, o.gate.Path(key, furthest)); err == nil {
				logger.Debug("resuming item",
					logging.String(logging.FieldItemKey, key),
					logging.String("resume_after", furthest.String()),
				)
			}
		}
		rs.items = append(rs.items, item)
		rs.byKey[key] = item
	}
}

func rejectedSource(key, source, message string) ItemSummary {
	return ItemSummary{
		Key:         key,
		Source:      source,
		Status:      pipeline.StatusFailed,
		FailedStage: pipeline.StageFetch.String(),
		Kind:        services.KindFetch,
		Message:     message,
	}
}

func sameSource(a, b string) bool {
	if a == b {
		return true
	}
	if gate.IsRemote(a) || gate.IsRemote(b) {
		return false
	}
	return filepath.Clean(a) == filepath.Clean(b)
}

func (o *Orchestrator) runStage(ctx context.Context, logger *slog.Logger, rs *runState, stage pipeline.Stage) (batch.Report, error) {
	stageLogger := logger.With(logging.String(logging.FieldStage, stage.String()))

	var resumed []pipeline.StageResult
	var eligible []pipeline.WorkItem
	for _, item := range rs.items {
		if item.Status == pipeline.StatusFailed {
			continue
		}
		if item.Started && item.Stage >= stage {
			res := pipeline.Skipped(item.Key, stage, item.Artifact(stage))
			if res.Path == "" {
				res.Message = fmt.Sprintf("resumed from %s", item.Stage)
			}
			resumed = append(resumed, res)
			continue
		}
		eligible = append(eligible, item.Clone())
	}
	for _, res := range resumed {
		o.record(ctx, stageLogger, rs, res)
	}
	report := batch.Summarize(stage, resumed)
	if len(eligible) == 0 {
		return report, nil
	}

	worker, err := o.workerFor(ctx, stageLogger, rs, stage, eligible)
	if err != nil {
		kind := stageexec.Classify(err, stage)
		failed := make([]pipeline.StageResult, 0, len(eligible))
		for _, item := range eligible {
			res := pipeline.Failed(item.Key, stage, kind, err.Error(), 0)
			rs.byKey[item.Key].Fail(stage, kind, res.Message)
			o.record(ctx, stageLogger, rs, res)
			failed = append(failed, res)
		}
		return report.Merge(batch.Summarize(stage, failed)), err
	}

	opts := batch.Options{
		Concurrency: o.concurrencyFor(stage),
		Timeout:     o.opts.BatchTimeout,
		Admission:   rs.admission,
		OnResult: func(res pipeline.StageResult) {
			o.record(ctx, stageLogger, rs, res)
		},
	}
	br := o.runner.RunBatch(ctx, eligible, stage, worker, opts)
	o.apply(stageLogger, rs, stage, br.Results)
	return report.Merge(br), nil
}

// apply folds one batch's results into the item state machine.
func (o *Orchestrator) apply(logger *slog.Logger, rs *runState, stage pipeline.Stage, results []pipeline.StageResult) {
	for _, res := range results {
		item := rs.byKey[res.Key]
		if item == nil {
			continue
		}
		if !res.Advanced() {
			item.Fail(stage, res.Kind, res.Message)
			continue
		}
		if res.Outcome == pipeline.OutcomeSucceeded {
			rs.worked[item.Key] = true
		}
		if err := item.Advance(stage, res.Path); err != nil {
			logger.Error("item state rejected stage result",
				logging.String(logging.FieldItemKey, item.Key),
				logging.Error(err),
			)
			item.Fail(stage, stage.ErrorKind(), err.Error())
		}
	}
}

// workerFor returns the stage worker. For transcription the model is loaded
// here, before any dispatch, and a load failure is returned.
func (o *Orchestrator) workerFor(ctx context.Context, logger *slog.Logger, rs *runState, stage pipeline.Stage, eligible []pipeline.WorkItem) (pipeline.Worker, error) {
	switch stage {
	case pipeline.StageFetch:
		return o.fetchWorker, nil
	case pipeline.StageConvert:
		return o.convertWorker, nil
	case pipeline.StageTranscribe:
		if err := o.ensureModel(ctx, logger, rs, eligible); err != nil {
			return nil, err
		}
		return o.transcribeWorker(rs.handle), nil
	case pipeline.StagePostProcess:
		return o.postProcessWorker, nil
	case pipeline.StagePersist:
		return o.persistWorker, nil
	default:
		return nil, fmt.Errorf("no worker for stage %s", stage)
	}
}

func (o *Orchestrator) ensureModel(ctx context.Context, logger *slog.Logger, rs *runState, eligible []pipeline.WorkItem) error {
	if rs.handle != nil {
		return nil
	}
	needed := false
	for _, item := range eligible {
		if exists, _ := o.gate.CheckStageOutput(item.Key, pipeline.StageTranscribe); !exists {
			needed = true
			break
		}
	}
	if !needed {
		return nil
	}
	loadStart := o.now()
	handle, err := o.loader.Load(ctx)
	if err != nil {
		logging.ErrorWithContext(logger, "transcription model unavailable; run aborted", "model_load_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run `mediaflow deps` to check engine binaries and model files"),
			logging.String(logging.FieldImpact, "no item is transcribed in this run"),
		)
		return err
	}
	rs.handle = handle
	logger.Info("transcription model ready",
		logging.String(logging.FieldEventType, "model_loaded"),
		logging.String("tier", string(handle.Tier())),
		logging.String("engine", handle.Name()),
		logging.Duration("load_duration", o.now().Sub(loadStart)),
	)
	return nil
}

func (o *Orchestrator) logCompletion(logger *slog.Logger, report RunReport, runErr error) {
	attrs := []logging.Attr{
		logging.Int("items", report.Totals.Items),
		logging.Int("succeeded", report.Totals.Succeeded),
		logging.Int("skipped", report.Totals.Skipped),
		logging.Int("failed", report.Totals.Failed),
		logging.String("tier", report.Tier),
		logging.Duration("duration", report.Duration.Round(time.Millisecond)),
	}
	if runErr != nil {
		attrs = append(attrs,
			logging.Error(runErr),
			logging.String(logging.FieldErrorHint, "rerun the same sources to resume from existing artifacts"),
			logging.String(logging.FieldImpact, "remaining stages were not run"),
		)
		logging.WarnWithContext(logger, "run stopped early", "run_stopped", attrs...)
		return
	}
	attrs = append(attrs, logging.String(logging.FieldEventType, "run_complete"))
	logger.Info("run complete", logging.Args(attrs...)...)
}
