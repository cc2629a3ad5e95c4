package batch

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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaflow/internal/gate"
	"mediaflow/internal/pipeline"
	"mediaflow/internal/services"
	"mediaflow/internal/stageexec"
)

func newRunner(t *testing.T) (*Runner, gate.Layout) {
	t.Helper()
	dir := t.TempDir()
	layout := gate.Layout{WorkDir: filepath.Join(dir, "work"), OutputDir: filepath.Join(dir, "out")}
	require.NoError(t, layout.EnsureDirs())
	return New(stageexec.New(gate.New(layout), nil), nil), layout
}

func makeItems(keys ...string) []pipeline.WorkItem {
	items := make([]pipeline.WorkItem, 0, len(keys))
	for _, k := range keys {
		items = append(items, *pipeline.NewWorkItem(k, k+".mp4"))
	}
	return items
}

func writingWorker(calls *sync.Map) pipeline.Worker {
	return func(_ context.Context, item pipeline.WorkItem, dest string) (string, error) {
		if calls != nil {
			calls.Store(item.Key, true)
		}
		return dest, os.WriteFile(dest, []byte(item.Key), 0o644)
	}
}

func TestTranscribeScenarioSkipsExistingTranscript(t *testing.T) {
	runner, layout := newRunner(t)
	require.NoError(t, os.WriteFile(layout.Path("a", pipeline.StageTranscribe), []byte("{}"), 0o644))

	var calls sync.Map
	report := runner.RunBatch(context.Background(), makeItems("a", "b"), pipeline.StageTranscribe, writingWorker(&calls), Options{Concurrency: 2})

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	_, aCalled := calls.Load("a")
	_, bCalled := calls.Load("b")
	assert.False(t, aCalled, "a's worker must not run")
	assert.True(t, bCalled)
}

func TestConcurrencyDoesNotChangeCounts(t *testing.T) {
	keys := make([]string, 10)
	for i := range keys {
		keys[i] = fmt.Sprintf("item-%02d", i)
	}
	var reports []Report
	for _, c := range []int{1, 4} {
		runner, _ := newRunner(t)
		reports = append(reports, runner.RunBatch(context.Background(), makeItems(keys...), pipeline.StageConvert, writingWorker(nil), Options{Concurrency: c}))
	}
	for _, r := range reports {
		assert.Equal(t, 10, r.Total)
		assert.Equal(t, 10, r.Succeeded)
		assert.Zero(t, r.Failed)
		assert.Zero(t, r.Skipped)
	}
	assert.Equal(t, reports[0].Succeeded, reports[1].Succeeded)
}

func TestConcurrencyBound(t *testing.T) {
	runner, _ := newRunner(t)
	var active, peak atomic.Int32
	worker := func(_ context.Context, _ pipeline.WorkItem, dest string) (string, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return dest, os.WriteFile(dest, []byte("x"), 0o644)
	}
	keys := make([]string, 12)
	for i := range keys {
		keys[i] = fmt.Sprintf("k%d", i)
	}
	report := runner.RunBatch(context.Background(), makeItems(keys...), pipeline.StageFetch, worker, Options{Concurrency: 3})
	assert.Equal(t, 12, report.Succeeded)
	assert.LessOrEqual(t, peak.Load(), int32(3))

	peak.Store(0)
	runner, _ = newRunner(t)
	runner.RunBatch(context.Background(), makeItems(keys...), pipeline.StageFetch, worker, Options{Concurrency: 1})
	assert.Equal(t, int32(1), peak.Load(), "concurrency 1 is sequential")
}

func TestFailureIsolation(t *testing.T) {
	runner, _ := newRunner(t)
	worker := func(_ context.Context, item pipeline.WorkItem, dest string) (string, error) {
		switch item.Key {
		case "bad":
			return "", services.Wrap(services.ErrFetch, "fetch", "yt-dlp", "video unavailable", nil)
		case "panics":
			panic("nil pointer in decoder")
		}
		return dest, os.WriteFile(dest, []byte("ok"), 0o644)
	}

	report := runner.RunBatch(context.Background(), makeItems("ok1", "bad", "panics", "ok2"), pipeline.StageFetch, worker, Options{Concurrency: 2})
	require.Len(t, report.Results, 4)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 2, report.Failed)

	for i, key := range []string{"ok1", "bad", "panics", "ok2"} {
		assert.Equal(t, key, report.Results[i].Key, "results keep submission order")
	}
	bad, ok := report.Result("bad")
	require.True(t, ok)
	assert.Equal(t, services.KindFetch, bad.Kind)
	panicked, _ := report.Result("panics")
	assert.Equal(t, services.KindFetch, panicked.Kind)

	kinds := map[string]services.Kind{}
	for _, f := range report.Failures {
		kinds[f.Key] = f.Kind
	}
	assert.Equal(t, map[string]services.Kind{"bad": services.KindFetch, "panics": services.KindFetch}, kinds)
}

func TestTimeoutMarksOutstandingItems(t *testing.T) {
	runner, _ := newRunner(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	worker := func(_ context.Context, item pipeline.WorkItem, dest string) (string, error) {
		if item.Key == "slow" {
			<-release
			return "", errors.New("finished after the batch gave up")
		}
		return dest, os.WriteFile(dest, []byte("ok"), 0o644)
	}

	var observed []pipeline.StageResult
	report := runner.RunBatch(context.Background(), makeItems("fast", "slow"), pipeline.StageConvert, worker, Options{
		Concurrency: 2,
		Timeout:     100 * time.Millisecond,
		OnResult:    func(r pipeline.StageResult) { observed = append(observed, r) },
	})

	assert.True(t, report.TimedOut)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	slow, _ := report.Result("slow")
	assert.Equal(t, services.KindTimeout, slow.Kind)
	fast, _ := report.Result("fast")
	assert.Equal(t, pipeline.OutcomeSucceeded, fast.Outcome)
	assert.Len(t, observed, 2, "every item reported exactly once")
}

func TestTimeoutCoversUndispatchedItems(t *testing.T) {
	runner, _ := newRunner(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	worker := func(context.Context, pipeline.WorkItem, string) (string, error) {
		<-release
		return "", errors.New("unreachable")
	}
	report := runner.RunBatch(context.Background(), makeItems("a", "b", "c"), pipeline.StageFetch, worker, Options{
		Concurrency: 1,
		Timeout:     50 * time.Millisecond,
	})
	assert.Equal(t, 3, report.Failed)
	for _, res := range report.Results {
		assert.Equal(t, services.KindTimeout, res.Kind)
	}
}

func TestCancellationIsNotReportedAsTimeout(t *testing.T) {
	runner, _ := newRunner(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	worker := func(context.Context, pipeline.WorkItem, string) (string, error) {
		close(started)
		<-release
		return "", errors.New("finished after cancellation")
	}
	go func() {
		<-started
		cancel()
	}()

	report := runner.RunBatch(ctx, makeItems("a", "b"), pipeline.StageFetch, worker, Options{
		Concurrency: 1,
		Timeout:     time.Minute,
	})
	assert.False(t, report.TimedOut)
	assert.Equal(t, 2, report.Failed)
	for _, res := range report.Results {
		assert.Equal(t, services.KindCanceled, res.Kind)
		assert.Contains(t, res.Message, "context canceled")
	}
}

type countingAdmitter struct{ calls atomic.Int32 }

func (c *countingAdmitter) Wait(context.Context) error {
	c.calls.Add(1)
	return nil
}

func TestAdmissionConsultedPerDispatch(t *testing.T) {
	runner, _ := newRunner(t)
	adm := &countingAdmitter{}
	report := runner.RunBatch(context.Background(), makeItems("a", "b", "c"), pipeline.StagePersist, writingWorker(nil), Options{
		Concurrency: 2,
		Admission:   adm,
	})
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, int32(3), adm.calls.Load())
}

func TestEmptyBatch(t *testing.T) {
	runner, _ := newRunner(t)
	report := runner.RunBatch(context.Background(), nil, pipeline.StageFetch, writingWorker(nil), Options{})
	assert.Zero(t, report.Total)
	assert.Empty(t, report.Results)
}

func TestWorkerReceivesIsolatedCopy(t *testing.T) {
	runner, _ := newRunner(t)
	items := makeItems("a")
	items[0].Artifacts[pipeline.StageFetch] = "/raw/a"
	worker := func(_ context.Context, item pipeline.WorkItem, dest string) (string, error) {
		item.Artifacts[pipeline.StageFetch] = "mutated"
		return dest, os.WriteFile(dest, []byte("x"), 0o644)
	}
	runner.RunBatch(context.Background(), items, pipeline.StageConvert, worker, Options{Concurrency: 1})
	assert.Equal(t, "/raw/a", items[0].Artifacts[pipeline.StageFetch])
}
