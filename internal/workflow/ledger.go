package workflow

import (
	"context"
	"errors"
	"log/slog"

	"mediaflow/internal/ledger"
	"mediaflow/internal/logging"
	"mediaflow/internal/pipeline"
)

// Ledger writes are best effort and detached from run cancellation so an
// aborted run is still recorded.

func (o *Orchestrator) beginLedger(ctx context.Context, logger *slog.Logger, rs *runState) {
	if o.ledger == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := o.ledger.BeginRun(ctx, rs.id, len(rs.items)+len(rs.rejected)); err != nil {
		o.ledgerWarning(logger, "begin run", err)
		return
	}
	for _, rej := range rs.rejected {
		res := pipeline.Failed(rej.Key, pipeline.StageFetch, rej.Kind, rej.Message, 0)
		if err := o.ledger.RecordResult(ctx, rs.id, rej.Source, res); err != nil {
			o.ledgerWarning(logger, "record rejected source", err)
		}
	}
}

func (o *Orchestrator) record(ctx context.Context, logger *slog.Logger, rs *runState, res pipeline.StageResult) {
	if o.ledger == nil {
		return
	}
	if err := o.ledger.RecordResult(context.WithoutCancel(ctx), rs.id, rs.source(res.Key), res); err != nil {
		o.ledgerWarning(logger, "record result", err)
	}
}

func (o *Orchestrator) finishLedger(ctx context.Context, logger *slog.Logger, report RunReport, runErr error) {
	if o.ledger == nil {
		return
	}
	completion := ledger.Completion{
		Status: ledger.RunCompleted,
		Tier:   report.Tier,
		Totals: report.Totals.ledgerTotals(),
	}
	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		completion.Status = ledger.RunAborted
		completion.Error = runErr.Error()
	default:
		completion.Status = ledger.RunFailed
		completion.Error = runErr.Error()
	}
	if err := o.ledger.FinishRun(context.WithoutCancel(ctx), report.RunID, completion); err != nil {
		o.ledgerWarning(logger, "finish run", err)
	}
}

func (o *Orchestrator) ledgerWarning(logger *slog.Logger, op string, err error) {
	logging.WarnWithContext(logger, "run ledger write failed", "ledger_write_failed",
		logging.String("operation", op),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check paths.ledger_path is writable"),
		logging.String(logging.FieldImpact, "run history is incomplete; processing continues"),
	)
}
