package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeTools()
	if err := c.normalizeTranscription(); err != nil {
		return err
	}
	c.normalizePersist()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LedgerPath) == "" && c.Paths.LogDir != "" {
		c.Paths.LedgerPath = filepath.Join(filepath.Dir(c.Paths.LogDir), "ledger.db")
	}
	if c.Paths.LedgerPath, err = expandPath(c.Paths.LedgerPath); err != nil {
		return fmt.Errorf("paths.ledger_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.TranscribeConcurrency <= 0 {
		c.Workflow.TranscribeConcurrency = defaultTranscribeConcurrency
	}
	if c.Workflow.BatchTimeoutSeconds < 0 {
		c.Workflow.BatchTimeoutSeconds = 0
	}
}

func (c *Config) normalizeTools() {
	c.Fetch.YtDlpBinary = strings.TrimSpace(c.Fetch.YtDlpBinary)
	if c.Fetch.YtDlpBinary == "" {
		c.Fetch.YtDlpBinary = defaultYtDlpBinary
	}
	c.Fetch.Format = strings.TrimSpace(c.Fetch.Format)
	if c.Fetch.Format == "" {
		c.Fetch.Format = defaultYtDlpFormat
	}
	c.Convert.FFmpegBinary = strings.TrimSpace(c.Convert.FFmpegBinary)
	if c.Convert.FFmpegBinary == "" {
		c.Convert.FFmpegBinary = defaultFFmpegBinary
	}
	if c.Convert.SampleRate <= 0 {
		c.Convert.SampleRate = defaultSampleRate
	}
	if c.PostProcess.KeywordLimit <= 0 {
		c.PostProcess.KeywordLimit = defaultKeywordLimit
	}
	if c.PostProcess.MinWordLength <= 0 {
		c.PostProcess.MinWordLength = defaultMinWordLength
	}
	c.PostProcess.Language = strings.TrimSpace(c.PostProcess.Language)
	if c.PostProcess.Language == "" {
		c.PostProcess.Language = strings.TrimSpace(c.Transcription.Language)
	}
}

func (c *Config) normalizeTranscription() error {
	c.Transcription.Language = strings.ToLower(strings.TrimSpace(c.Transcription.Language))
	for _, tier := range []struct {
		name   string
		engine *Engine
	}{
		{"transcription.primary", &c.Transcription.Primary},
		{"transcription.fallback", &c.Transcription.Fallback},
	} {
		e := tier.engine
		e.Engine = strings.ToLower(strings.TrimSpace(e.Engine))
		e.Model = strings.TrimSpace(e.Model)
		e.Binary = strings.TrimSpace(e.Binary)
		e.VADMethod = strings.ToLower(strings.TrimSpace(e.VADMethod))
		if e.Engine == EngineWhisperX && e.VADMethod == "" {
			e.VADMethod = defaultVADMethod
		}
		e.HFToken = strings.TrimSpace(e.HFToken)
		if e.HFToken == "" {
			if value, ok := os.LookupEnv("HUGGING_FACE_HUB_TOKEN"); ok {
				e.HFToken = strings.TrimSpace(value)
			} else if value, ok := os.LookupEnv("HF_TOKEN"); ok {
				e.HFToken = strings.TrimSpace(value)
			}
		}
		if e.ModelDir != "" {
			var err error
			if e.ModelDir, err = expandPath(e.ModelDir); err != nil {
				return fmt.Errorf("%s.model_dir: %w", tier.name, err)
			}
		}
	}
	return nil
}

func (c *Config) normalizePersist() {
	c.Persist.Backend = strings.ToLower(strings.TrimSpace(c.Persist.Backend))
	if c.Persist.Backend == "" {
		c.Persist.Backend = PersistFilesystem
	}
	m := &c.Persist.MinIO
	m.Endpoint = strings.TrimSpace(m.Endpoint)
	m.Bucket = strings.TrimSpace(m.Bucket)
	m.Prefix = strings.Trim(strings.TrimSpace(m.Prefix), "/")
	if m.AccessKey == "" {
		if value, ok := os.LookupEnv("MINIO_ACCESS_KEY"); ok {
			m.AccessKey = strings.TrimSpace(value)
		}
	}
	if m.SecretKey == "" {
		if value, ok := os.LookupEnv("MINIO_SECRET_KEY"); ok {
			m.SecretKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
