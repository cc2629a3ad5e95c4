package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaflow/internal/fileutil"
	"mediaflow/internal/ledger"
	"mediaflow/internal/modelload"
	"mediaflow/internal/pipeline"
	"mediaflow/internal/services"
	"mediaflow/internal/testsupport"
)

func TestRunCompletesEveryStage(t *testing.T) {
	h := newHarness(t, testsupport.WithConcurrency(2))
	report, err := h.orchestrator().Run(context.Background(), []string{"/media/a.mp4", "/media/b.mp4"})
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "primary", report.Tier)
	assert.Equal(t, Totals{Items: 2, Succeeded: 2}, report.Totals)
	require.Len(t, report.Stages, len(pipeline.Stages()))
	for _, stage := range report.Stages {
		assert.Equal(t, 2, stage.Succeeded, "stage %s", stage.Stage)
	}
	for _, key := range []string{"a.mp4", "b.mp4"} {
		assert.True(t, h.outputExists(key), "output for %s", key)
		item, ok := report.Item(key)
		require.True(t, ok)
		assert.Equal(t, pipeline.StatusDone, item.Status)
		assert.Equal(t, "persist", item.Stage)
	}

	var artifact pipeline.Artifact
	require.NoError(t, fileutil.ReadJSON(h.layout.Path("a.mp4", pipeline.StagePersist), &artifact))
	assert.Equal(t, "primary-engine", artifact.Engine)
	assert.Equal(t, "primary", artifact.Tier)
	assert.Equal(t, "spoken words from a.mp4.wav", artifact.Text)
}

func TestRunIsIdempotentAcrossRestarts(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator()
	sources := []string{"/media/a.mp4", "/media/b.mp4"}

	_, err := o.Run(context.Background(), sources)
	require.NoError(t, err)
	fetches := h.fetcher.total()
	transcriptions := h.primary.calls.Load()

	second, err := o.Run(context.Background(), sources)
	require.NoError(t, err)

	assert.Equal(t, fetches, h.fetcher.total(), "no refetch")
	assert.Equal(t, transcriptions, h.primary.calls.Load(), "no retranscription")
	assert.Equal(t, int32(1), h.primary.loads.Load(), "model is not loaded when nothing needs it")
	assert.Equal(t, Totals{Items: 2, Skipped: 2}, second.Totals)
	assert.Empty(t, second.Tier)
	for _, stage := range second.Stages {
		assert.Equal(t, 2, stage.Skipped, "stage %s", stage.Stage)
	}
}

func TestRunResumesPastFurthestArtifact(t *testing.T) {
	h := newHarness(t)
	testsupport.WriteStageArtifacts(t, h.layout, "a.mp4", pipeline.StageConvert)

	report, err := h.orchestrator().Run(context.Background(), []string{"/media/a.mp4"})
	require.NoError(t, err)

	assert.Zero(t, h.fetcher.callsFor("/media/a.mp4"), "fetch is skipped when audio exists")
	assert.Zero(t, h.converter.calls.Load())
	assert.Equal(t, int32(1), h.primary.calls.Load())

	fetch, ok := report.Stage(pipeline.StageFetch)
	require.True(t, ok)
	require.Len(t, fetch.Results, 1)
	assert.Equal(t, pipeline.OutcomeSkipped, fetch.Results[0].Outcome)
	assert.Contains(t, fetch.Results[0].Message, "resumed from convert")
	assert.True(t, h.outputExists("a.mp4"))
	assert.Equal(t, 1, report.Totals.Succeeded)
}

func TestRunIsolatesItemFailures(t *testing.T) {
	h := newHarness(t, testsupport.WithConcurrency(2))
	h.converter.fail = map[string]bool{"b.mp4": true}

	report, err := h.orchestrator().Run(context.Background(), []string{"/media/a.mp4", "/media/b.mp4"})
	require.NoError(t, err)

	a, _ := report.Item("a.mp4")
	b, _ := report.Item("b.mp4")
	assert.Equal(t, pipeline.StatusDone, a.Status)
	assert.Equal(t, pipeline.StatusFailed, b.Status)
	assert.Equal(t, "fetch", b.Stage, "failed item keeps its last good stage")
	assert.Equal(t, "convert", b.FailedStage)
	assert.Equal(t, services.KindConversion, b.Kind)
	assert.True(t, h.outputExists("a.mp4"))
	assert.False(t, h.outputExists("b.mp4"))

	convert, _ := report.Stage(pipeline.StageConvert)
	assert.Equal(t, 1, convert.Succeeded)
	require.Len(t, convert.Failures, 1)
	assert.Equal(t, "b.mp4", convert.Failures[0].Key)

	transcribe, _ := report.Stage(pipeline.StageTranscribe)
	assert.Equal(t, 1, transcribe.Total, "failed items do not continue")
	assert.Equal(t, Totals{Items: 2, Succeeded: 1, Failed: 1}, report.Totals)
}

func TestRunRetriesTransientFetchFailures(t *testing.T) {
	h := newHarness(t)
	h.fetcher.transient = map[string]int{"https://example.com/v/1": 2}
	h.fetcher.missing = map[string]bool{"https://example.com/v/gone": true}

	report, err := h.orchestrator().Run(context.Background(), []string{"https://example.com/v/1", "https://example.com/v/gone"})
	require.NoError(t, err)

	assert.Equal(t, 3, h.fetcher.callsFor("https://example.com/v/1"))
	assert.Equal(t, 1, h.fetcher.callsFor("https://example.com/v/gone"), "not-found is not retried")
	assert.Equal(t, 1, report.Totals.Succeeded)
	assert.Equal(t, 1, report.Totals.Failed)

	fetch, _ := report.Stage(pipeline.StageFetch)
	require.Len(t, fetch.Failures, 1)
	assert.Equal(t, services.KindFetch, fetch.Failures[0].Kind)
}

func TestRunFallsBackToSecondaryModel(t *testing.T) {
	h := newHarness(t)
	h.primary.loadErr = errors.New("uvx: executable file not found in $PATH")

	report, err := h.orchestrator().Run(context.Background(), []string{"/media/a.mp4"})
	require.NoError(t, err)

	assert.Equal(t, string(modelload.TierFallback), report.Tier)
	assert.Zero(t, h.primary.calls.Load())
	assert.Equal(t, int32(1), h.fallback.calls.Load())

	var transcript pipeline.Transcript
	require.NoError(t, fileutil.ReadJSON(h.layout.Path("a.mp4", pipeline.StageTranscribe), &transcript))
	assert.Equal(t, "fallback", transcript.Tier)
	assert.Equal(t, "fallback-engine", transcript.Engine)
}

func TestRunAbortsWhenNoModelLoads(t *testing.T) {
	h := newHarness(t)
	h.primary.loadErr = errors.New("primary broken")
	h.fallback.loadErr = errors.New("fallback broken")

	report, err := h.orchestrator().Run(context.Background(), []string{"/media/a.mp4", "/media/b.mp4"})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrModelLoad)

	var loadErr *modelload.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.EqualError(t, loadErr.Primary, "primary broken")

	assert.Zero(t, h.primary.calls.Load()+h.fallback.calls.Load(), "nothing is transcribed")
	require.Len(t, report.Stages, 3, "fetch, convert, transcribe")
	transcribe := report.Stages[2]
	assert.Equal(t, pipeline.StageTranscribe, transcribe.Stage)
	assert.Equal(t, 2, transcribe.Failed)
	for _, f := range transcribe.Failures {
		assert.Equal(t, services.KindModelLoad, f.Kind)
	}
	assert.Equal(t, 2, report.Totals.Failed)
	assert.False(t, h.outputExists("a.mp4"))
}

func TestRunSkipsModelLoadWhenTranscriptsExist(t *testing.T) {
	h := newHarness(t)
	transcript := pipeline.Transcript{
		Key:      "a.mp4",
		Source:   "/media/a.mp4",
		Segments: []pipeline.Segment{{Start: 0, End: 1, Text: "already transcribed"}},
	}
	require.NoError(t, fileutil.WriteJSON(h.layout.Path("a.mp4", pipeline.StageTranscribe), transcript))

	report, err := h.orchestrator().Run(context.Background(), []string{"/media/a.mp4"})
	require.NoError(t, err)

	assert.Zero(t, h.primary.loads.Load())
	assert.Zero(t, h.fallback.loads.Load())
	assert.True(t, h.outputExists("a.mp4"))
	assert.Equal(t, 1, report.Totals.Succeeded)
}

func TestRunOutcomesIndependentOfConcurrency(t *testing.T) {
	sources := make([]string, 0, 6)
	for i := range 6 {
		sources = append(sources, fmt.Sprintf("/media/clip%d.mp4", i))
	}

	outcomes := func(concurrency int) (map[string]pipeline.Status, int32) {
		h := newHarness(t, testsupport.WithConcurrency(concurrency))
		h.converter.fail = map[string]bool{"clip3.mp4": true}
		h.converter.delay = 5 * time.Millisecond
		report, err := h.orchestrator().Run(context.Background(), sources)
		require.NoError(t, err)
		got := make(map[string]pipeline.Status, len(report.Items))
		for _, item := range report.Items {
			got[item.Key] = item.Status
		}
		return got, h.converter.peak.Load()
	}

	sequential, seqPeak := outcomes(1)
	parallel, parPeak := outcomes(4)
	assert.Equal(t, sequential, parallel)
	assert.Equal(t, pipeline.StatusFailed, sequential["clip3.mp4"])
	assert.Equal(t, int32(1), seqPeak)
	assert.LessOrEqual(t, parPeak, int32(4))
}

func TestRunCollapsesRepeatedSourcesAndRejectsBadOnes(t *testing.T) {
	h := newHarness(t)
	report, err := h.orchestrator().Run(context.Background(), []string{
		"/media/a.mp4",
		"/media/./a.mp4",
		"   ",
		"https://example.com/watch?v=1",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, h.fetcher.callsFor("/media/a.mp4"))
	assert.Zero(t, h.fetcher.callsFor("/media/./a.mp4"), "repeated source is processed once")
	assert.Equal(t, Totals{Items: 3, Succeeded: 2, Failed: 1}, report.Totals)

	var rejected ItemSummary
	for _, item := range report.Items {
		if item.Key == "" {
			rejected = item
		}
	}
	assert.Equal(t, pipeline.StatusFailed, rejected.Status)
	assert.Equal(t, services.KindFetch, rejected.Kind)
}

func TestRunKeepsDistinctSourcesApart(t *testing.T) {
	h := newHarness(t)
	store := testsupport.MustOpenLedger(t, h.cfg)
	h.ledger = store
	sources := []string{"/media/x/talk.mp4", "/media/y/talk.mp4", "/media/a.mp4", "/media/a.wav"}

	report, err := h.orchestrator().Run(context.Background(), sources)
	require.NoError(t, err)

	for _, source := range []string{"/media/x/talk.mp4", "/media/a.mp4", "/media/a.wav"} {
		assert.Equal(t, 1, h.fetcher.callsFor(source), source)
	}
	assert.Zero(t, h.fetcher.callsFor("/media/y/talk.mp4"))
	assert.True(t, h.outputExists("a.mp4"))
	assert.True(t, h.outputExists("a.wav"))

	require.Len(t, report.Items, len(sources))
	assert.Equal(t, Totals{Items: 4, Succeeded: 3, Failed: 1}, report.Totals)

	var collided ItemSummary
	for _, item := range report.Items {
		if item.Source == "/media/y/talk.mp4" {
			collided = item
		}
	}
	assert.Equal(t, "talk.mp4", collided.Key)
	assert.Equal(t, pipeline.StatusFailed, collided.Status)
	assert.Equal(t, "fetch", collided.FailedStage)
	assert.Equal(t, services.KindFetch, collided.Kind)
	assert.Contains(t, collided.Message, "collides with /media/x/talk.mp4")

	run, err := store.GetRun(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, 4, run.Totals.Items)
	assert.Equal(t, 1, run.Totals.Failed)

	results, err := store.RunResults(context.Background(), report.RunID)
	require.NoError(t, err)
	var recorded bool
	for _, res := range results {
		if res.Source == "/media/y/talk.mp4" {
			recorded = true
			assert.Equal(t, string(pipeline.OutcomeFailed), res.Outcome)
			assert.Equal(t, string(services.KindFetch), res.Kind)
			assert.Equal(t, "talk.mp4", res.ItemKey)
		}
	}
	assert.True(t, recorded, "collision is recorded in the ledger")
}

func TestRunRecordsLedger(t *testing.T) {
	h := newHarness(t)
	store := testsupport.MustOpenLedger(t, h.cfg)
	h.ledger = store
	h.converter.fail = map[string]bool{"b.mp4": true}

	report, err := h.orchestrator().Run(context.Background(), []string{"/media/a.mp4", "/media/b.mp4"})
	require.NoError(t, err)

	run, err := store.GetRun(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, ledger.RunCompleted, run.Status)
	assert.Equal(t, "primary", run.Tier)
	assert.Equal(t, ledger.Totals{Items: 2, Succeeded: 1, Failed: 1}, run.Totals)

	results, err := store.RunResults(context.Background(), report.RunID)
	require.NoError(t, err)
	// a: five stages; b: fetch and the failed convert.
	assert.Len(t, results, 7)
}

func TestRunRecordsModelLoadFailureInLedger(t *testing.T) {
	h := newHarness(t)
	store := testsupport.MustOpenLedger(t, h.cfg)
	h.ledger = store
	h.primary.loadErr = errors.New("primary broken")
	h.fallback.loadErr = errors.New("fallback broken")

	report, err := h.orchestrator().Run(context.Background(), []string{"/media/a.mp4"})
	require.Error(t, err)

	run, getErr := store.GetRun(context.Background(), report.RunID)
	require.NoError(t, getErr)
	assert.Equal(t, ledger.RunFailed, run.Status)
	assert.Contains(t, run.Error, "primary broken")
}

func TestRunHonoursCancellation(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := h.orchestrator().Run(ctx, []string{"/media/a.mp4"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, h.fetcher.total())
	assert.Equal(t, Totals{Items: 1, Pending: 1}, report.Totals)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Dependencies{}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrConfiguration)
	assert.Contains(t, err.Error(), "fetcher is required")
}
