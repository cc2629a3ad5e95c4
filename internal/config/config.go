package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir    string `toml:"work_dir" yaml:"work_dir"`
	OutputDir  string `toml:"output_dir" yaml:"output_dir"`
	LogDir     string `toml:"log_dir" yaml:"log_dir"`
	LedgerPath string `toml:"ledger_path" yaml:"ledger_path"`
}

// Workflow contains batch execution settings.
type Workflow struct {
	Concurrency int `toml:"concurrency" yaml:"concurrency"`
	// TranscribeConcurrency bounds the transcription batch separately because
	// a single model handle is shared by every worker. Default: 1.
	TranscribeConcurrency int `toml:"transcribe_concurrency" yaml:"transcribe_concurrency"`
	// BatchTimeoutSeconds is the per-batch deadline; 0 disables it.
	BatchTimeoutSeconds int `toml:"batch_timeout_seconds" yaml:"batch_timeout_seconds"`
}

// Retry configures the retry policy wrapped around fetches.
type Retry struct {
	MaxAttempts       int     `toml:"max_attempts" yaml:"max_attempts"`
	InitialDelayMS    int     `toml:"initial_delay_ms" yaml:"initial_delay_ms"`
	BackoffMultiplier float64 `toml:"backoff_multiplier" yaml:"backoff_multiplier"`
}

// Memory configures the memory pressure monitor.
type Memory struct {
	Enabled          bool `toml:"enabled" yaml:"enabled"`
	IntervalSeconds  int  `toml:"interval_seconds" yaml:"interval_seconds"`
	ThresholdPercent int  `toml:"threshold_percent" yaml:"threshold_percent"`
	// MaxThrottleSeconds caps how long a dispatch waits for pressure to clear.
	MaxThrottleSeconds int `toml:"max_throttle_seconds" yaml:"max_throttle_seconds"`
}

// Fetch configures media retrieval.
type Fetch struct {
	YtDlpBinary    string `toml:"ytdlp_binary" yaml:"ytdlp_binary"`
	Format         string `toml:"format" yaml:"format"`
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
}

// Convert configures audio normalization.
type Convert struct {
	FFmpegBinary string `toml:"ffmpeg_binary" yaml:"ffmpeg_binary"`
	SampleRate   int    `toml:"sample_rate" yaml:"sample_rate"`
}

// Engine describes one transcription tier.
type Engine struct {
	// Engine selects the adapter: "whisperx" or "whispercpp".
	Engine      string `toml:"engine" yaml:"engine"`
	Model       string `toml:"model" yaml:"model"`
	Binary      string `toml:"binary" yaml:"binary"`
	ModelDir    string `toml:"model_dir" yaml:"model_dir"`
	CUDAEnabled bool   `toml:"cuda_enabled" yaml:"cuda_enabled"`
	VADMethod   string `toml:"vad_method" yaml:"vad_method"`
	HFToken     string `toml:"hf_token" yaml:"hf_token"`
	// Reentrant marks engines that tolerate concurrent invocations.
	Reentrant bool `toml:"reentrant" yaml:"reentrant"`
}

// Transcription contains the primary and fallback engine settings.
type Transcription struct {
	Language string `toml:"language" yaml:"language"`
	Primary  Engine `toml:"primary" yaml:"primary"`
	Fallback Engine `toml:"fallback" yaml:"fallback"`
}

// PostProcess configures transcript post-processing.
type PostProcess struct {
	Language      string `toml:"language" yaml:"language"`
	KeywordLimit  int    `toml:"keyword_limit" yaml:"keyword_limit"`
	MinWordLength int    `toml:"min_word_length" yaml:"min_word_length"`
}

// MinIO contains object storage settings for the minio persist backend.
type MinIO struct {
	Endpoint  string `toml:"endpoint" yaml:"endpoint"`
	Bucket    string `toml:"bucket" yaml:"bucket"`
	Prefix    string `toml:"prefix" yaml:"prefix"`
	AccessKey string `toml:"access_key" yaml:"access_key"`
	SecretKey string `toml:"secret_key" yaml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl" yaml:"use_ssl"`
}

// Persist selects where final artifacts are written.
type Persist struct {
	// Backend is "filesystem" or "minio".
	Backend string `toml:"backend" yaml:"backend"`
	MinIO   MinIO  `toml:"minio" yaml:"minio"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" yaml:"format"`
	Level  string `toml:"level" yaml:"level"`
}

// Config encapsulates all configuration values for mediaflow.
//
// Configuration sections by subsystem:
//   - Paths: work, output, and log directories plus the run ledger
//   - Workflow: batch concurrency and timeout
//   - Retry: fetch retry policy
//   - Memory: memory pressure monitor and throttle
//   - Fetch, Convert: external download and audio normalization tools
//   - Transcription: primary and fallback engines
//   - PostProcess: keyword extraction settings
//   - Persist: filesystem or MinIO output
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths" yaml:"paths"`
	Workflow      Workflow      `toml:"workflow" yaml:"workflow"`
	Retry         Retry         `toml:"retry" yaml:"retry"`
	Memory        Memory        `toml:"memory" yaml:"memory"`
	Fetch         Fetch         `toml:"fetch" yaml:"fetch"`
	Convert       Convert       `toml:"convert" yaml:"convert"`
	Transcription Transcription `toml:"transcription" yaml:"transcription"`
	PostProcess   PostProcess   `toml:"postprocess" yaml:"postprocess"`
	Persist       Persist       `toml:"persist" yaml:"persist"`
	Logging       Logging       `toml:"logging" yaml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(filepath.Join(xdg.ConfigHome, "mediaflow", "config.toml"))
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. Files ending in .yaml or .yml are decoded as YAML,
// everything else as TOML.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		if err := decodeFile(resolvedPath, &cfg); err != nil {
			return nil, "", false, err
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(file).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("parse config: %w", err)
		}
	default:
		if err := toml.NewDecoder(file).Decode(cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediaflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a run writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.WorkDir, c.Paths.LogDir}
	if c.Persist.Backend == PersistFilesystem {
		dirs = append(dirs, c.Paths.OutputDir)
	}
	if dir := filepath.Dir(c.Paths.LedgerPath); c.Paths.LedgerPath != "" && dir != "" {
		dirs = append(dirs, dir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RetryInitialDelay returns the first backoff delay of the fetch retry policy.
func (c *Config) RetryInitialDelay() time.Duration {
	return time.Duration(c.Retry.InitialDelayMS) * time.Millisecond
}

// BatchTimeout returns the per-batch deadline, or zero when disabled.
func (c *Config) BatchTimeout() time.Duration {
	if c.Workflow.BatchTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Workflow.BatchTimeoutSeconds) * time.Second
}

// MemoryInterval returns the memory sampling cadence.
func (c *Config) MemoryInterval() time.Duration {
	return time.Duration(c.Memory.IntervalSeconds) * time.Second
}

// MaxThrottle returns the longest a dispatch waits under memory pressure.
func (c *Config) MaxThrottle() time.Duration {
	return time.Duration(c.Memory.MaxThrottleSeconds) * time.Second
}

// FetchTimeout returns the per-attempt fetch deadline, or zero when disabled.
func (c *Config) FetchTimeout() time.Duration {
	if c.Fetch.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}
