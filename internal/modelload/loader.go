package modelload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mediaflow/internal/logging"
	"mediaflow/internal/services"
)

// Tier identifies which provider produced a handle.
type Tier string

const (
	TierPrimary  Tier = "primary"
	TierFallback Tier = "fallback"
)

// Provider loads one tier of a capability.
type Provider[M any] struct {
	Name      string
	Load      func(ctx context.Context) (M, error)
	Reentrant bool
}

func (p Provider[M]) configured() bool {
	return p.Load != nil
}

// Handle wraps whichever model loaded successfully. It is immutable apart
// from the invocation lock.
type Handle[M any] struct {
	tier      Tier
	name      string
	model     M
	reentrant bool
	mu        sync.Mutex
}

// Tier reports which provider produced the handle.
func (h *Handle[M]) Tier() Tier { return h.tier }

// Name reports the provider name.
func (h *Handle[M]) Name() string { return h.name }

// Reentrant reports whether Invoke calls run concurrently.
func (h *Handle[M]) Reentrant() bool { return h.reentrant }

// NewHandle wraps an already constructed model. Mostly useful in tests.
func NewHandle[M any](tier Tier, name string, model M, reentrant bool) *Handle[M] {
	return &Handle[M]{tier: tier, name: name, model: model, reentrant: reentrant}
}

// Invoke runs fn against the handle's model. Calls on non-reentrant handles
// are serialized.
func Invoke[M any, R any](ctx context.Context, h *Handle[M], fn func(context.Context, M) (R, error)) (R, error) {
	var zero R
	if h == nil {
		return zero, errors.New("model handle is nil")
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if !h.reentrant {
		h.mu.Lock()
		defer h.mu.Unlock()
	}
	return fn(ctx, h.model)
}

// LoadError carries the failure of both tiers.
type LoadError struct {
	PrimaryName  string
	FallbackName string
	Primary      error
	Fallback     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("model load failed: primary %s: %v; fallback %s: %v",
		nameOr(e.PrimaryName, "unnamed"), e.Primary, nameOr(e.FallbackName, "unnamed"), e.Fallback)
}

// Is matches services.ErrModelLoad.
func (e *LoadError) Is(target error) bool {
	return target == services.ErrModelLoad
}

// Unwrap exposes both causes.
func (e *LoadError) Unwrap() []error {
	causes := make([]error, 0, 2)
	if e.Primary != nil {
		causes = append(causes, e.Primary)
	}
	if e.Fallback != nil {
		causes = append(causes, e.Fallback)
	}
	return causes
}

var errNotConfigured = errors.New("provider not configured")

// Loader resolves a handle from a primary and fallback provider.
type Loader[M any] struct {
	Primary  Provider[M]
	Fallback Provider[M]

	logger *slog.Logger
	mu     sync.Mutex
}

// NewLoader builds a loader. The fallback may be the zero Provider.
func NewLoader[M any](primary, fallback Provider[M], logger *slog.Logger) *Loader[M] {
	return &Loader[M]{
		Primary:  primary,
		Fallback: fallback,
		logger:   logging.NewComponentLogger(logger, "modelload"),
	}
}

// Load tries the primary then the fallback provider. When both fail the
// returned error is a *LoadError.
func (l *Loader[M]) Load(ctx context.Context) (*Handle[M], error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	logger := logging.WithContext(ctx, l.logger)

	primary := l.try(ctx, logger, TierPrimary, l.Primary)
	if primary.err == nil {
		return primary.handle, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, l.loadError(primary.err, err)
	}
	logging.WarnWithContext(logger, "primary model unavailable; trying fallback", "model_fallback",
		logging.String("primary", l.Primary.Name),
		logging.String("fallback", l.Fallback.Name),
		logging.Error(primary.err),
		logging.String(logging.FieldErrorHint, "check the primary engine installation"),
		logging.String(logging.FieldImpact, "transcription uses the fallback engine"),
	)

	fallback := l.try(ctx, logger, TierFallback, l.Fallback)
	if fallback.err == nil {
		return fallback.handle, nil
	}
	err := l.loadError(primary.err, fallback.err)
	logging.ErrorWithContext(logger, "no model tier could be loaded", "model_load_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "install whisperx or configure transcription.fallback"),
	)
	return nil, err
}

type attempt[M any] struct {
	handle *Handle[M]
	err    error
}

func (l *Loader[M]) try(ctx context.Context, logger *slog.Logger, tier Tier, p Provider[M]) (result attempt[M]) {
	if !p.configured() {
		return attempt[M]{err: errNotConfigured}
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = attempt[M]{err: fmt.Errorf("%s provider panicked: %v", p.Name, r)}
		}
	}()
	model, err := p.Load(ctx)
	if err != nil {
		logger.Info("model tier failed to load",
			logging.String("tier", string(tier)),
			logging.String("provider", p.Name),
			logging.Error(err),
		)
		return attempt[M]{err: err}
	}
	logger.Info("model loaded",
		logging.String("tier", string(tier)),
		logging.String("provider", p.Name),
		logging.Duration("elapsed", time.Since(start)),
	)
	return attempt[M]{handle: NewHandle(tier, p.Name, model, p.Reentrant)}
}

func (l *Loader[M]) loadError(primary, fallback error) *LoadError {
	return &LoadError{
		PrimaryName:  l.Primary.Name,
		FallbackName: l.Fallback.Name,
		Primary:      primary,
		Fallback:     fallback,
	}
}

func nameOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
