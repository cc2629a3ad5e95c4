package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"mediaflow/internal/config"
	"mediaflow/internal/logging"
	"mediaflow/internal/services"
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Policy configures bounded retries.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64

	logger *slog.Logger
	sleep  Sleeper
}

// Option customizes a Policy.
type Option func(*Policy)

// WithLogger attaches a logger for attempt and wait events.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Policy) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithSleeper overrides how backoff waits are performed (useful for tests).
func WithSleeper(sleeper Sleeper) Option {
	return func(p *Policy) {
		if sleeper != nil {
			p.sleep = sleeper
		}
	}
}

// New validates the settings and builds a Policy.
func New(maxAttempts int, initialDelay time.Duration, multiplier float64, opts ...Option) (Policy, error) {
	if maxAttempts < 1 {
		return Policy{}, fmt.Errorf("retry: max attempts must be >= 1, got %d", maxAttempts)
	}
	if multiplier < 1 {
		return Policy{}, fmt.Errorf("retry: backoff multiplier must be >= 1, got %g", multiplier)
	}
	if initialDelay < 0 {
		return Policy{}, fmt.Errorf("retry: initial delay must be >= 0, got %s", initialDelay)
	}
	p := Policy{
		MaxAttempts:  maxAttempts,
		InitialDelay: initialDelay,
		Multiplier:   multiplier,
		logger:       logging.NewNop(),
		sleep:        sleepWithContext,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p, nil
}

// FromConfig builds a Policy from the retry section.
func FromConfig(cfg *config.Config, logger *slog.Logger, opts ...Option) (Policy, error) {
	if cfg == nil {
		return Policy{}, errors.New("retry: config is required")
	}
	opts = append([]Option{WithLogger(logging.NewComponentLogger(logger, "retry"))}, opts...)
	return New(cfg.Retry.MaxAttempts, cfg.RetryInitialDelay(), cfg.Retry.BackoffMultiplier, opts...)
}

// Delay returns the wait after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.InitialDelay <= 0 {
		return 0
	}
	factor := math.Pow(p.Multiplier, float64(attempt-1))
	delay := float64(p.InitialDelay) * factor
	if delay > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

// Do invokes fn until it succeeds, MaxAttempts is reached, or the error is
// not retryable. The last error from fn is returned as-is.
func (p Policy) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p Policy, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	logger := p.logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.WithContext(ctx, logger)
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepWithContext
	}

	var (
		zero    T
		lastErr error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		logger.Debug("attempt starting",
			logging.String("operation", operation),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", attempts),
		)
		value, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("attempt succeeded after retry",
					logging.String("operation", operation),
					logging.Int("attempt", attempt),
				)
			}
			return value, nil
		}
		lastErr = err

		if attempt >= attempts {
			break
		}
		if !services.IsRetryable(err) {
			logger.Info("attempt failed with non-retryable error",
				logging.String("operation", operation),
				logging.Int("attempt", attempt),
				logging.Error(err),
			)
			return zero, err
		}

		delay := p.Delay(attempt)
		logger.Warn("attempt failed; waiting before retry",
			logging.String("operation", operation),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", attempts),
			logging.Duration("wait", delay),
			logging.Error(err),
			logging.String(logging.FieldEventType, "retry_wait"),
		)
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			logger.Info("retry wait abandoned",
				logging.String("operation", operation),
				logging.Error(sleepErr),
			)
			return zero, lastErr
		}
	}

	logging.WarnWithContext(logger, "retries exhausted", "retry_exhausted",
		logging.String("operation", operation),
		logging.Int("attempts", attempts),
		logging.Error(lastErr),
		logging.String(logging.FieldErrorHint, "check network connectivity and the source identifier"),
	)
	return zero, lastErr
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
