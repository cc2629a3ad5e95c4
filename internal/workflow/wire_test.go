package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaflow/internal/config"
	"mediaflow/internal/testsupport"
)

func TestWireBuildsOrchestrator(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithConcurrency(3), testsupport.WithRetry(5, 10, 1.5))
	cfg.Memory.Enabled = true

	o, err := Wire(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, o.ledger)
	assert.NotNil(t, o.sampler)
	assert.Equal(t, 3, o.opts.Concurrency)
	assert.Equal(t, cfg.Paths.WorkDir, o.gate.Layout().WorkDir)
	assert.Equal(t, 5, o.retry.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, o.retry.InitialDelay)
	assert.InDelta(t, 1.5, o.retry.Multiplier, 1e-9)
}

func TestWireRejectsBadPersistBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Persist.Backend = "tape"
	_, err := Wire(context.Background(), cfg, nil, nil)
	assert.Error(t, err)
}

func TestEngineProvider(t *testing.T) {
	primary := EngineProvider(config.Engine{Engine: config.EngineWhisperX, Model: "large-v3"}, "en", nil)
	assert.Equal(t, "whisperx/large-v3", primary.Name)
	assert.NotNil(t, primary.Load)

	fallback := EngineProvider(config.Engine{Engine: config.EngineWhisperCPP, Model: "base", Reentrant: true}, "", nil)
	assert.Equal(t, "whispercpp/base", fallback.Name)
	assert.True(t, fallback.Reentrant)

	unset := EngineProvider(config.Engine{}, "", nil)
	assert.Nil(t, unset.Load)
}
