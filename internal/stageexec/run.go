package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"mediaflow/internal/gate"
	"mediaflow/internal/logging"
	"mediaflow/internal/pipeline"
	"mediaflow/internal/services"
)

// Executor runs one stage for one item behind the existence gate.
type Executor struct {
	Gate   *gate.Gate
	Logger *slog.Logger
}

// New builds an executor.
func New(g *gate.Gate, logger *slog.Logger) *Executor {
	return &Executor{Gate: g, Logger: logging.NewComponentLogger(logger, "stageexec")}
}

// Run executes stage for item. Existing artifacts short-circuit to a skipped
// result without calling worker. Worker errors and panics are contained and
// returned as failed results; Run itself never panics on worker misbehavior.
func (e *Executor) Run(ctx context.Context, item pipeline.WorkItem, stage pipeline.Stage, worker pipeline.Worker) pipeline.StageResult {
	stageCtx := services.WithStage(services.WithItemKey(ctx, item.Key), stage.String())
	logger := logging.WithContext(stageCtx, e.logger())

	if e.Gate == nil {
		return pipeline.Failed(item.Key, stage, stage.ErrorKind(), "existence gate unavailable", 0)
	}
	exists, dest := e.Gate.CheckStageOutput(item.Key, stage)
	if exists {
		logger.Debug("stage output present; skipping",
			logging.String(logging.FieldEventType, "stage_skip"),
			logging.String("path", dest),
		)
		return pipeline.Skipped(item.Key, stage, dest)
	}
	if worker == nil {
		return pipeline.Failed(item.Key, stage, stage.ErrorKind(), fmt.Sprintf("no worker for stage %s", stage), 0)
	}

	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("source", strings.TrimSpace(item.Source)),
		logging.String("dest", dest),
	)
	start := time.Now()
	path, err := invoke(stageCtx, item, dest, worker)
	elapsed := time.Since(start)
	if err != nil {
		return e.handleFailure(logger, item, stage, err, elapsed)
	}
	if strings.TrimSpace(path) == "" {
		path = dest
	}

	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("path", path),
		logging.Duration("elapsed", elapsed),
	)
	return pipeline.Succeeded(item.Key, stage, path, elapsed)
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger == nil {
		return logging.NewNop()
	}
	return e.Logger
}

type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string {
	return fmt.Sprintf("worker panic: %v", p.value)
}

func invoke(ctx context.Context, item pipeline.WorkItem, dest string, worker pipeline.Worker) (path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			path = ""
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	return worker(ctx, item, dest)
}

func (e *Executor) handleFailure(logger *slog.Logger, item pipeline.WorkItem, stage pipeline.Stage, stageErr error, elapsed time.Duration) pipeline.StageResult {
	kind := Classify(stageErr, stage)
	message := strings.TrimSpace(stageErr.Error())
	if message == "" {
		message = "stage failed"
	}

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("error_kind", string(kind)),
		logging.String("error_message", message),
		logging.Duration("elapsed", elapsed),
		logging.Error(stageErr),
	}
	var pe *panicError
	if errors.As(stageErr, &pe) {
		attrs = append(attrs, logging.String("stack", string(pe.stack)))
	}
	logging.ErrorWithContext(logger, "stage failed", "stage_failure", attrs...)
	return pipeline.Failed(item.Key, stage, kind, message, elapsed)
}

// Classify maps a worker error to a report kind. Kind markers win; an
// unmarked deadline expiry is a Timeout and anything else takes the stage's
// default kind.
func Classify(err error, stage pipeline.Stage) services.Kind {
	if err == nil {
		return services.KindNone
	}
	if kind := services.KindOf(err, services.KindNone); kind != services.KindNone {
		return kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.KindTimeout
	}
	return stage.ErrorKind()
}
