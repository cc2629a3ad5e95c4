package workflow

import (
	"context"
	"log/slog"

	"mediaflow/internal/config"
	"mediaflow/internal/gate"
	"mediaflow/internal/ledger"
	"mediaflow/internal/memmon"
	"mediaflow/internal/modelload"
	"mediaflow/internal/persist"
	"mediaflow/internal/pipeline"
	"mediaflow/internal/postprocess"
	"mediaflow/internal/retry"
	"mediaflow/internal/services/ffmpeg"
	"mediaflow/internal/services/whispercpp"
	"mediaflow/internal/services/whisperx"
	"mediaflow/internal/services/ytdlp"
)

// Wire builds an Orchestrator backed by the external tool adapters named in
// cfg. store may be nil to run without a ledger.
func Wire(ctx context.Context, cfg *config.Config, store *ledger.Store, logger *slog.Logger) (*Orchestrator, error) {
	policy, err := retry.FromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	persister, err := persist.New(ctx, cfg.Persist, logger)
	if err != nil {
		return nil, err
	}
	language := cfg.Transcription.Language
	loader := modelload.NewLoader(
		EngineProvider(cfg.Transcription.Primary, language, logger),
		EngineProvider(cfg.Transcription.Fallback, language, logger),
		logger,
	)

	deps := Dependencies{
		Fetcher:       ytdlp.New(cfg.Fetch, cfg.FetchTimeout(), logger),
		Converter:     ffmpeg.New(cfg.Convert, logger),
		Loader:        loader,
		PostProcessor: postprocess.New(cfg.PostProcess, logger),
		Persister:     persister,
		Gate:          gate.New(gate.LayoutFromConfig(cfg)),
		Retry:         policy,
		Logger:        logger,
	}
	if store != nil {
		deps.Ledger = store
	}
	if cfg.Memory.Enabled {
		deps.Sampler = memmon.NewSystemSampler()
	}
	return New(deps, OptionsFromConfig(cfg))
}

// EngineProvider adapts one engine section into a loader tier. An unset
// engine yields the zero Provider, which the loader reports as not
// configured.
func EngineProvider(e config.Engine, language string, logger *slog.Logger) modelload.Provider[pipeline.Transcriber] {
	switch e.Engine {
	case config.EngineWhisperX:
		return whisperx.New(e, language, logger).Provider()
	case config.EngineWhisperCPP:
		return whispercpp.New(e, language, logger).Provider()
	default:
		return modelload.Provider[pipeline.Transcriber]{}
	}
}
