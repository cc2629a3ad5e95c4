package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateMemory(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validatePersist(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		return errors.New("paths.work_dir must be set")
	}
	if c.Persist.Backend == PersistFilesystem && strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set for the filesystem persist backend")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.concurrency":            c.Workflow.Concurrency,
		"workflow.transcribe_concurrency": c.Workflow.TranscribeConcurrency,
	})
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be at least 1")
	}
	if c.Retry.InitialDelayMS < 0 {
		return errors.New("retry.initial_delay_ms must not be negative")
	}
	if c.Retry.BackoffMultiplier < 1 {
		return errors.New("retry.backoff_multiplier must be at least 1")
	}
	return nil
}

func (c *Config) validateMemory() error {
	if !c.Memory.Enabled {
		return nil
	}
	if err := ensurePositiveMap(map[string]int{
		"memory.interval_seconds":     c.Memory.IntervalSeconds,
		"memory.max_throttle_seconds": c.Memory.MaxThrottleSeconds,
	}); err != nil {
		return err
	}
	if c.Memory.ThresholdPercent < 1 || c.Memory.ThresholdPercent > 100 {
		return errors.New("memory.threshold_percent must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	if err := validateEngine("transcription.primary", c.Transcription.Primary, true); err != nil {
		return err
	}
	return validateEngine("transcription.fallback", c.Transcription.Fallback, false)
}

func validateEngine(name string, e Engine, required bool) error {
	switch e.Engine {
	case "":
		if required {
			return fmt.Errorf("%s.engine must be set", name)
		}
		return nil
	case EngineWhisperX:
		if e.VADMethod != "silero" && e.VADMethod != "pyannote" {
			return fmt.Errorf("%s.vad_method must be silero or pyannote", name)
		}
	case EngineWhisperCPP:
		if strings.TrimSpace(e.ModelDir) == "" {
			return fmt.Errorf("%s.model_dir must be set for whispercpp", name)
		}
	default:
		return fmt.Errorf("%s.engine: unsupported value %q", name, e.Engine)
	}
	if e.Model == "" {
		return fmt.Errorf("%s.model must be set", name)
	}
	return nil
}

func (c *Config) validatePersist() error {
	switch c.Persist.Backend {
	case PersistFilesystem:
		return nil
	case PersistMinIO:
		m := c.Persist.MinIO
		if m.Endpoint == "" {
			return errors.New("persist.minio.endpoint must be set when persist.backend is minio")
		}
		if m.Bucket == "" {
			return errors.New("persist.minio.bucket must be set when persist.backend is minio")
		}
		if m.AccessKey == "" || m.SecretKey == "" {
			return errors.New("persist.minio credentials missing; set access_key/secret_key or MINIO_ACCESS_KEY/MINIO_SECRET_KEY")
		}
		return nil
	default:
		return fmt.Errorf("persist.backend: unsupported value %q", c.Persist.Backend)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
