package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mediaflow/internal/config"
	"mediaflow/internal/gate"
	"mediaflow/internal/modelload"
	"mediaflow/internal/persist"
	"mediaflow/internal/pipeline"
	"mediaflow/internal/postprocess"
	"mediaflow/internal/retry"
	"mediaflow/internal/services"
	"mediaflow/internal/testsupport"
)

type fakeFetcher struct {
	mu        sync.Mutex
	calls     map[string]int
	transient map[string]int
	missing   map[string]bool
}

func (f *fakeFetcher) Fetch(_ context.Context, source, dest string) (string, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[source]++
	n := f.calls[source]
	transient := f.transient[source]
	missing := f.missing[source]
	f.mu.Unlock()

	if missing {
		return "", services.Wrap(services.ErrFetch, "fetch", "", source, services.ErrNotFound)
	}
	if n <= transient {
		return "", services.Wrap(services.ErrFetch, "fetch", "", "HTTP Error 429", services.ErrTransient)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", err
	}
	return dest, os.WriteFile(dest, []byte("media:"+source), 0o644)
}

func (f *fakeFetcher) callsFor(source string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[source]
}

func (f *fakeFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

type fakeConverter struct {
	fail     map[string]bool
	delay    time.Duration
	inflight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
}

func (c *fakeConverter) Convert(_ context.Context, source, dest string) (string, error) {
	c.calls.Add(1)
	now := c.inflight.Add(1)
	defer c.inflight.Add(-1)
	for {
		peak := c.peak.Load()
		if now <= peak || c.peak.CompareAndSwap(peak, now) {
			break
		}
	}
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.fail[filepath.Base(source)] {
		return "", errors.New("ffmpeg: exit status 1: Invalid data found when processing input")
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", err
	}
	return dest, os.WriteFile(dest, []byte("RIFF"), 0o644)
}

type fakeEngine struct {
	name    string
	loadErr error
	loads   atomic.Int32
	calls   atomic.Int32
}

func (e *fakeEngine) Name() string { return e.name }

func (e *fakeEngine) Transcribe(_ context.Context, audioPath string) ([]pipeline.Segment, error) {
	e.calls.Add(1)
	return []pipeline.Segment{
		{Start: 0, End: 2.5, Text: fmt.Sprintf("spoken words from %s", filepath.Base(audioPath))},
	}, nil
}

func (e *fakeEngine) provider() modelload.Provider[pipeline.Transcriber] {
	return modelload.Provider[pipeline.Transcriber]{
		Name: e.name,
		Load: func(context.Context) (pipeline.Transcriber, error) {
			e.loads.Add(1)
			if e.loadErr != nil {
				return nil, e.loadErr
			}
			return e, nil
		},
	}
}

type harness struct {
	t         *testing.T
	cfg       *config.Config
	layout    gate.Layout
	fetcher   *fakeFetcher
	converter *fakeConverter
	primary   *fakeEngine
	fallback  *fakeEngine
	ledger    Ledger
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	return &harness{
		t:         t,
		cfg:       cfg,
		layout:    gate.LayoutFromConfig(cfg),
		fetcher:   &fakeFetcher{},
		converter: &fakeConverter{},
		primary:   &fakeEngine{name: "primary-engine"},
		fallback:  &fakeEngine{name: "fallback-engine"},
	}
}

func (h *harness) orchestrator() *Orchestrator {
	h.t.Helper()
	policy, err := retry.New(3, time.Millisecond, 2, retry.WithSleeper(func(context.Context, time.Duration) error { return nil }))
	if err != nil {
		h.t.Fatalf("retry policy: %v", err)
	}
	o, err := New(Dependencies{
		Fetcher:       h.fetcher,
		Converter:     h.converter,
		Loader:        modelload.NewLoader(h.primary.provider(), h.fallback.provider(), nil),
		PostProcessor: postprocess.New(h.cfg.PostProcess, nil),
		Persister:     persist.NewFilesystem(nil),
		Gate:          gate.New(h.layout),
		Retry:         policy,
		Ledger:        h.ledger,
	}, OptionsFromConfig(h.cfg))
	if err != nil {
		h.t.Fatalf("New: %v", err)
	}
	return o
}

func (h *harness) outputExists(key string) bool {
	info, err := os.Stat(h.layout.Path(key, pipeline.StagePersist))
	return err == nil && info.Size() > 0
}
