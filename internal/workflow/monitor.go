package workflow

import (
	"log/slog"

	"mediaflow/internal/batch"
	"mediaflow/internal/logging"
	"mediaflow/internal/memmon"
)

// startMemoryMonitor samples memory for the duration of a run. Breaches
// engage a throttle that batches consult before each dispatch.
func (o *Orchestrator) startMemoryMonitor(logger *slog.Logger) (batch.Admitter, func()) {
	if o.sampler == nil || o.opts.MemoryInterval <= 0 || o.opts.MemoryThreshold <= 0 {
		return nil, func() {}
	}
	throttle := memmon.NewThrottle(o.opts.MaxThrottle, logger)
	monitor := memmon.New(o.sampler, logger)
	monitor.OnRecover(throttle.Release)
	if err := monitor.Start(o.opts.MemoryInterval, o.opts.MemoryThreshold, throttle.Engage); err != nil {
		logging.WarnWithContext(logger, "memory monitor not started", "memory_monitor_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check memory.interval_seconds and memory.threshold_percent"),
			logging.String(logging.FieldImpact, "batches dispatch without memory throttling"),
		)
		return nil, func() {}
	}
	return throttle, monitor.Stop
}
