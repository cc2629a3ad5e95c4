package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	PersistFilesystem = "filesystem"
	PersistMinIO      = "minio"

	EngineWhisperX   = "whisperx"
	EngineWhisperCPP = "whispercpp"
)

const (
	defaultConcurrency            = 4
	defaultTranscribeConcurrency  = 1
	defaultRetryMaxAttempts       = 3
	defaultRetryInitialDelayMS    = 2000
	defaultRetryBackoffMultiplier = 2.0
	defaultMemoryIntervalSeconds  = 5
	defaultMemoryThresholdPercent = 90
	defaultMemoryMaxThrottle      = 120
	defaultYtDlpBinary            = "yt-dlp"
	defaultYtDlpFormat            = "bestaudio/best"
	defaultFetchTimeoutSeconds    = 1800
	defaultFFmpegBinary           = "ffmpeg"
	defaultSampleRate             = 16000
	defaultPrimaryModel           = "large-v3"
	defaultFallbackModel          = "small"
	defaultFallbackBinary         = "whisper-cli"
	defaultVADMethod              = "silero"
	defaultKeywordLimit           = 15
	defaultMinWordLength          = 4
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

func defaultDataDir() string {
	return filepath.Join(xdg.DataHome, "mediaflow")
}

func defaultStateDir() string {
	return filepath.Join(xdg.StateHome, "mediaflow")
}

func defaultModelDir() string {
	return filepath.Join(xdg.CacheHome, "mediaflow", "models")
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:    filepath.Join(defaultDataDir(), "work"),
			OutputDir:  filepath.Join(defaultDataDir(), "output"),
			LogDir:     filepath.Join(defaultStateDir(), "logs"),
			LedgerPath: filepath.Join(defaultStateDir(), "ledger.db"),
		},
		Workflow: Workflow{
			Concurrency:           defaultConcurrency,
			TranscribeConcurrency: defaultTranscribeConcurrency,
		},
		Retry: Retry{
			MaxAttempts:       defaultRetryMaxAttempts,
			InitialDelayMS:    defaultRetryInitialDelayMS,
			BackoffMultiplier: defaultRetryBackoffMultiplier,
		},
		Memory: Memory{
			Enabled:            true,
			IntervalSeconds:    defaultMemoryIntervalSeconds,
			ThresholdPercent:   defaultMemoryThresholdPercent,
			MaxThrottleSeconds: defaultMemoryMaxThrottle,
		},
		Fetch: Fetch{
			YtDlpBinary:    defaultYtDlpBinary,
			Format:         defaultYtDlpFormat,
			TimeoutSeconds: defaultFetchTimeoutSeconds,
		},
		Convert: Convert{
			FFmpegBinary: defaultFFmpegBinary,
			SampleRate:   defaultSampleRate,
		},
		Transcription: Transcription{
			Primary: Engine{
				Engine:    EngineWhisperX,
				Model:     defaultPrimaryModel,
				VADMethod: defaultVADMethod,
			},
			Fallback: Engine{
				Engine:   EngineWhisperCPP,
				Model:    defaultFallbackModel,
				Binary:   defaultFallbackBinary,
				ModelDir: defaultModelDir(),
			},
		},
		PostProcess: PostProcess{
			KeywordLimit:  defaultKeywordLimit,
			MinWordLength: defaultMinWordLength,
		},
		Persist: Persist{
			Backend: PersistFilesystem,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
