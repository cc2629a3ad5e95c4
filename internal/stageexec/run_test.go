package stageexec

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaflow/internal/gate"
	"mediaflow/internal/pipeline"
	"mediaflow/internal/services"
)

func newExecutor(t *testing.T) (*Executor, gate.Layout) {
	t.Helper()
	dir := t.TempDir()
	layout := gate.Layout{WorkDir: filepath.Join(dir, "work"), OutputDir: filepath.Join(dir, "out")}
	require.NoError(t, layout.EnsureDirs())
	return New(gate.New(layout), nil), layout
}

func TestRunSkipsExistingArtifact(t *testing.T) {
	exec, layout := newExecutor(t)
	path := layout.Path("a", pipeline.StageTranscribe)
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	called := false
	result := exec.Run(context.Background(), *pipeline.NewWorkItem("a", "a.mp4"), pipeline.StageTranscribe,
		func(context.Context, pipeline.WorkItem, string) (string, error) {
			called = true
			return "", nil
		})

	assert.False(t, called, "worker must not run when output exists")
	assert.Equal(t, pipeline.OutcomeSkipped, result.Outcome)
	assert.Equal(t, path, result.Path)
}

func TestRunSucceedsWithWorkerPath(t *testing.T) {
	exec, layout := newExecutor(t)
	var gotDest string
	result := exec.Run(context.Background(), *pipeline.NewWorkItem("b", "b.mp4"), pipeline.StageConvert,
		func(_ context.Context, item pipeline.WorkItem, dest string) (string, error) {
			gotDest = dest
			assert.Equal(t, "b", item.Key)
			return dest, os.WriteFile(dest, []byte("RIFF"), 0o644)
		})

	assert.Equal(t, pipeline.OutcomeSucceeded, result.Outcome)
	assert.Equal(t, layout.Path("b", pipeline.StageConvert), gotDest)
	assert.Equal(t, gotDest, result.Path)
	assert.True(t, result.Advanced())
}

func TestRunDefaultsPathToDestination(t *testing.T) {
	exec, layout := newExecutor(t)
	result := exec.Run(context.Background(), *pipeline.NewWorkItem("c", "c.mp4"), pipeline.StagePersist,
		func(context.Context, pipeline.WorkItem, string) (string, error) { return "", nil })
	assert.Equal(t, layout.Path("c", pipeline.StagePersist), result.Path)
}

func TestRunClassifiesErrors(t *testing.T) {
	cases := []struct {
		name  string
		stage pipeline.Stage
		err   error
		want  services.Kind
	}{
		{"unmarked fetch", pipeline.StageFetch, errors.New("exit status 1"), services.KindFetch},
		{"unmarked convert", pipeline.StageConvert, errors.New("invalid data"), services.KindConversion},
		{"marked transcription", pipeline.StageTranscribe,
			services.Wrap(services.ErrTranscription, "transcribe", "whisperx", "no speech", nil), services.KindTranscription},
		{"deadline", pipeline.StagePersist, context.DeadlineExceeded, services.KindTimeout},
		{"external tool falls back", pipeline.StagePostProcess,
			services.Wrap(services.ErrExternalTool, "postprocess", "run", "crash", nil), services.KindPostProcess},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			exec, _ := newExecutor(t)
			result := exec.Run(context.Background(), *pipeline.NewWorkItem("x", "x.mp4"), tc.stage,
				func(context.Context, pipeline.WorkItem, string) (string, error) { return "", tc.err })
			assert.Equal(t, pipeline.OutcomeFailed, result.Outcome)
			assert.Equal(t, tc.want, result.Kind)
			assert.NotEmpty(t, result.Message)
			assert.False(t, result.Advanced())
		})
	}
}

func TestRunContainsPanics(t *testing.T) {
	exec, _ := newExecutor(t)
	result := exec.Run(context.Background(), *pipeline.NewWorkItem("p", "p.mp4"), pipeline.StageTranscribe,
		func(context.Context, pipeline.WorkItem, string) (string, error) {
			panic("model crashed")
		})
	assert.Equal(t, pipeline.OutcomeFailed, result.Outcome)
	assert.Equal(t, services.KindTranscription, result.Kind)
	assert.Contains(t, result.Message, "model crashed")
}

func TestRunWithoutWorkerFails(t *testing.T) {
	exec, _ := newExecutor(t)
	result := exec.Run(context.Background(), *pipeline.NewWorkItem("n", "n.mp4"), pipeline.StageFetch, nil)
	assert.Equal(t, pipeline.OutcomeFailed, result.Outcome)
	assert.Equal(t, services.KindFetch, result.Kind)
}
