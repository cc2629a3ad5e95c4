package memmon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mediaflow/internal/logging"
)

// Throttle holds new dispatches while memory pressure is engaged. A nil
// *Throttle never blocks.
type Throttle struct {
	maxHold time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	engaged bool
	release chan struct{}
}

// NewThrottle returns a disengaged throttle. maxHold bounds how long a single
// Wait blocks; zero means until release or cancellation.
func NewThrottle(maxHold time.Duration, logger *slog.Logger) *Throttle {
	return &Throttle{
		maxHold: maxHold,
		logger:  logging.NewComponentLogger(logger, "memmon"),
	}
}

// Engage starts holding dispatches. Safe to call from the monitor loop.
func (t *Throttle) Engage(sample Sample) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.engaged {
		return
	}
	t.engaged = true
	t.release = make(chan struct{})
	logging.WarnWithContext(t.logger, "memory pressure; holding new dispatches", "memory_throttle_engaged",
		logging.Float64("used_percent", sample.UsedPercent),
		logging.String(logging.FieldErrorHint, "lower workflow.concurrency or memory.threshold_percent"),
		logging.String(logging.FieldImpact, "batch dispatch paused until memory recovers"),
	)
}

// Release lets held dispatches proceed.
func (t *Throttle) Release(sample Sample) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.engaged {
		return
	}
	t.engaged = false
	close(t.release)
	t.release = nil
	t.logger.Info("memory pressure cleared; resuming dispatches",
		logging.Float64("used_percent", sample.UsedPercent),
	)
}

// Engaged reports whether dispatches are currently held.
func (t *Throttle) Engaged() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.engaged
}

// Wait blocks while the throttle is engaged. It returns nil on release or
// once maxHold elapses, and ctx.Err() on cancellation.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	if !t.engaged {
		t.mu.Unlock()
		return nil
	}
	release := t.release
	t.mu.Unlock()

	var timeout <-chan time.Time
	if t.maxHold > 0 {
		timer := time.NewTimer(t.maxHold)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout:
		logging.WarnWithContext(t.logger, "memory throttle hold expired; dispatching anyway", "memory_throttle_expired",
			logging.Duration("max_hold", t.maxHold),
			logging.String(logging.FieldErrorHint, "raise memory.max_throttle_seconds or reduce load"),
			logging.String(logging.FieldImpact, "work proceeds under memory pressure"),
		)
		return nil
	}
}
