package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mediaflow/internal/logging"
	"mediaflow/internal/pipeline"
	"mediaflow/internal/services"
	"mediaflow/internal/stageexec"
)

// Admitter gates each dispatch. memmon.Throttle satisfies it.
type Admitter interface {
	Wait(ctx context.Context) error
}

// Options tunes one batch.
type Options struct {
	// Concurrency bounds simultaneous workers; values below 1 mean 1.
	Concurrency int
	// Timeout bounds the whole batch; zero disables it.
	Timeout time.Duration
	// Admission is consulted before every dispatch when set.
	Admission Admitter
	// OnResult is called on the caller's goroutine as each result arrives.
	OnResult func(pipeline.StageResult)
}

// Runner drives a stage executor over many items.
type Runner struct {
	exec   *stageexec.Executor
	logger *slog.Logger
}

// New builds a runner around exec.
func New(exec *stageexec.Executor, logger *slog.Logger) *Runner {
	return &Runner{exec: exec, logger: logging.NewComponentLogger(logger, "batch")}
}

type indexedResult struct {
	index  int
	result pipeline.StageResult
}

// RunBatch runs stage for every item and returns the aggregate report.
func (r *Runner) RunBatch(ctx context.Context, items []pipeline.WorkItem, stage pipeline.Stage, worker pipeline.Worker, opts Options) Report {
	start := time.Now()
	logger := logging.WithContext(services.WithStage(ctx, stage.String()), r.logger)
	if len(items) == 0 {
		return Report{Stage: stage}
	}

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > len(items) {
		concurrency = len(items)
	}

	waitCtx, cancel := ctx, context.CancelFunc(func() {})
	if opts.Timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
	}
	defer cancel()

	logger.Info("dispatching",
		logging.Int("items", len(items)),
		logging.Int("concurrency", concurrency),
		logging.Duration("timeout", opts.Timeout),
	)

	// Buffered to len(items) so workers finishing after the wait is abandoned
	// never block.
	resultCh := make(chan indexedResult, len(items))
	go r.dispatch(ctx, waitCtx, items, stage, worker, concurrency, opts.Admission, resultCh)

	results := make([]pipeline.StageResult, len(items))
	resolved := make([]bool, len(items))
	remaining := len(items)

	apply := func(ir indexedResult) {
		if resolved[ir.index] {
			return
		}
		resolved[ir.index] = true
		results[ir.index] = ir.result
		remaining--
		if opts.OnResult != nil {
			opts.OnResult(ir.result)
		}
	}

collect:
	for remaining > 0 {
		select {
		case ir := <-resultCh:
			apply(ir)
		case <-waitCtx.Done():
			break collect
		}
	}
	// Keep results that landed before the deadline fired.
drain:
	for remaining > 0 {
		select {
		case ir := <-resultCh:
			apply(ir)
		default:
			break drain
		}
	}

	if remaining > 0 {
		kind, message := abandonReason(ctx, waitCtx, opts.Timeout)
		if kind == services.KindCanceled {
			logger.Info("batch wait abandoned; outstanding items marked as canceled",
				logging.String(logging.FieldEventType, "batch_canceled"),
				logging.Int("outstanding", remaining),
			)
		} else {
			logging.WarnWithContext(logger, "batch wait abandoned; outstanding items marked as timed out", "batch_timeout",
				logging.Int("outstanding", remaining),
				logging.String("reason", message),
				logging.String(logging.FieldErrorHint, "raise workflow.batch_timeout_seconds or lower the item count"),
				logging.String(logging.FieldImpact, "outstanding items are reported failed; rerun to resume them"),
			)
		}
		elapsed := time.Since(start)
		for i := range items {
			if resolved[i] {
				continue
			}
			res := pipeline.Failed(items[i].Key, stage, kind, message, elapsed)
			results[i] = res
			if opts.OnResult != nil {
				opts.OnResult(res)
			}
		}
	}

	report := Summarize(stage, results)
	report.Duration = time.Since(start)
	logger.Info("batch complete",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Int("skipped", report.Skipped),
		logging.Int("succeeded", report.Succeeded),
		logging.Int("failed", report.Failed),
		logging.Duration("elapsed", report.Duration),
	)
	return report
}

// dispatch starts one goroutine per item while holding at most concurrency
// slots. It stops dispatching once waitCtx is done; those items are resolved
// by the collector as timed out.
func (r *Runner) dispatch(ctx, waitCtx context.Context, items []pipeline.WorkItem, stage pipeline.Stage, worker pipeline.Worker, concurrency int, admission Admitter, out chan<- indexedResult) {
	sem := make(chan struct{}, concurrency)
	for i := range items {
		if admission != nil {
			if err := admission.Wait(waitCtx); err != nil {
				return
			}
		}
		select {
		case sem <- struct{}{}:
		case <-waitCtx.Done():
			return
		}
		if waitCtx.Err() != nil {
			<-sem
			return
		}
		item := items[i].Clone()
		go func(index int, item pipeline.WorkItem) {
			defer func() { <-sem }()
			out <- indexedResult{index: index, result: r.runOne(ctx, item, stage, worker)}
		}(i, item)
	}
}

func (r *Runner) runOne(ctx context.Context, item pipeline.WorkItem, stage pipeline.Stage, worker pipeline.Worker) (result pipeline.StageResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = pipeline.Failed(item.Key, stage, stage.ErrorKind(), fmt.Sprintf("executor panic: %v", rec), 0)
		}
	}()
	if r.exec == nil {
		return pipeline.Failed(item.Key, stage, stage.ErrorKind(), "stage executor unavailable", 0)
	}
	return r.exec.Run(ctx, item, stage, worker)
}

// abandonReason distinguishes the batch's own deadline from cancellation of
// the caller's context.
func abandonReason(ctx, waitCtx context.Context, timeout time.Duration) (services.Kind, string) {
	if err := ctx.Err(); err != nil {
		return services.KindCanceled, fmt.Sprintf("batch abandoned: %v", err)
	}
	if errors.Is(waitCtx.Err(), context.DeadlineExceeded) && timeout > 0 {
		return services.KindTimeout, fmt.Sprintf("batch timeout of %s elapsed", timeout)
	}
	return services.KindTimeout, "batch abandoned"
}
