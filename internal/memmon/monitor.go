package memmon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mediaflow/internal/logging"
)

// ErrRunning is returned by Start when the sampling loop is already active.
var ErrRunning = errors.New("memory monitor already running")

// Monitor runs one background sampling loop.
type Monitor struct {
	sampler Sampler
	logger  *slog.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	latest    Sample
	hasLatest bool
	onRecover func(Sample)
}

// New creates a stopped monitor.
func New(sampler Sampler, logger *slog.Logger) *Monitor {
	if sampler == nil {
		sampler = NewSystemSampler()
	}
	return &Monitor{
		sampler: sampler,
		logger:  logging.NewComponentLogger(logger, "memmon"),
	}
}

// OnRecover registers fn to run on the first sample back under the threshold
// after a breach. It takes effect on the next Start.
func (m *Monitor) OnRecover(fn func(Sample)) {
	m.mu.Lock()
	m.onRecover = fn
	m.mu.Unlock()
}

// Start spawns the sampling loop. A nil onBreach logs a warning per breach.
func (m *Monitor) Start(interval time.Duration, thresholdPercent float64, onBreach func(Sample)) error {
	if interval <= 0 {
		return fmt.Errorf("memory monitor: interval must be positive, got %s", interval)
	}
	if thresholdPercent <= 0 || thresholdPercent > 100 {
		return fmt.Errorf("memory monitor: threshold must be within (0, 100], got %g", thresholdPercent)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return ErrRunning
	}
	if onBreach == nil {
		onBreach = m.logBreach
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done

	m.logger.Debug("memory monitor starting",
		logging.Duration("interval", interval),
		logging.Float64("threshold_percent", thresholdPercent),
	)
	go m.loop(ctx, done, interval, thresholdPercent, onBreach, m.onRecover)
	return nil
}

// Stop cancels the loop and waits for it to exit. Calling Stop on a stopped
// monitor is a no-op. Stop must not be called from a breach or recover
// callback.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	done := m.done
	m.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Running reports whether the loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// Latest returns the most recent successful sample.
func (m *Monitor) Latest() (Sample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest, m.hasLatest
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}, interval time.Duration, threshold float64, onBreach, onRecover func(Sample)) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	breached := false
	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("memory monitor stopped")
			return
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			return
		}

		sample, err := m.sampler.Sample()
		if err != nil {
			m.logger.Warn("memory sample failed; skipping tick",
				logging.Error(err),
				logging.String(logging.FieldEventType, "memory_sample_failed"),
			)
			continue
		}
		m.mu.Lock()
		m.latest = sample
		m.hasLatest = true
		m.mu.Unlock()

		if sample.UsedPercent >= threshold {
			breached = true
			onBreach(sample)
			continue
		}
		if breached {
			breached = false
			m.logger.Info("memory pressure recovered",
				logging.Float64("used_percent", sample.UsedPercent),
			)
			if onRecover != nil {
				onRecover(sample)
			}
		}
	}
}

func (m *Monitor) logBreach(sample Sample) {
	logging.WarnWithContext(m.logger, "memory usage above threshold", "memory_pressure",
		logging.Float64("used_percent", sample.UsedPercent),
		logging.Uint64("used_bytes", sample.UsedBytes),
		logging.Uint64("available_bytes", sample.AvailableBytes),
		logging.String(logging.FieldErrorHint, "lower workflow.concurrency or free memory"),
		logging.String(logging.FieldImpact, "new work may be throttled"),
	)
}
