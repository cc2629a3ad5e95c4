package whispercpp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"mediaflow/internal/config"
	langpkg "mediaflow/internal/language"
	"mediaflow/internal/logging"
	"mediaflow/internal/modelload"
	"mediaflow/internal/pipeline"
	"mediaflow/internal/services"
)

const (
	defaultBinary = "whisper-cli"
	defaultModel  = "base"
)

// Engine transcribes audio with whisper.cpp.
type Engine struct {
	cfg      config.Engine
	language string
	run      services.CommandRunner
	lookPath func(string) (string, error)
	logger   *slog.Logger
}

// New creates a whisper.cpp engine.
func New(cfg config.Engine, language string, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		language: language,
		run:      services.RunCommand,
		lookPath: exec.LookPath,
		logger:   logging.NewComponentLogger(logger, "whispercpp"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (e *Engine) WithCommandRunner(runner services.CommandRunner) *Engine {
	if runner != nil {
		e.run = runner
	}
	return e
}

// WithLookPath sets a custom binary resolver (for testing).
func (e *Engine) WithLookPath(fn func(string) (string, error)) *Engine {
	if fn != nil {
		e.lookPath = fn
	}
	return e
}

func (e *Engine) model() string {
	if m := strings.TrimSpace(e.cfg.Model); m != "" {
		return m
	}
	return defaultModel
}

func (e *Engine) binary() string {
	if b := strings.TrimSpace(e.cfg.Binary); b != "" {
		return b
	}
	return defaultBinary
}

// ModelPath is the ggml weights file for the configured model.
func (e *Engine) ModelPath() string {
	return filepath.Join(e.cfg.ModelDir, fmt.Sprintf("ggml-%s.bin", e.model()))
}

// Name identifies the engine in transcripts and logs.
func (e *Engine) Name() string {
	return "whispercpp/" + e.model()
}

// Provider exposes the engine as a model loader tier.
func (e *Engine) Provider() modelload.Provider[pipeline.Transcriber] {
	return modelload.Provider[pipeline.Transcriber]{
		Name:      e.Name(),
		Load:      e.Load,
		Reentrant: e.cfg.Reentrant,
	}
}

// Load resolves the CLI and checks the model file is present.
func (e *Engine) Load(ctx context.Context) (pipeline.Transcriber, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := e.lookPath(e.binary())
	if err != nil {
		return nil, services.Wrap(services.ErrModelLoad, "transcribe", "locate binary", e.binary(), err)
	}
	info, err := os.Stat(e.ModelPath())
	if err != nil {
		return nil, services.Wrap(services.ErrModelLoad, "transcribe", "model file", e.ModelPath(), err)
	}
	if info.IsDir() || info.Size() == 0 {
		return nil, services.Wrap(services.ErrModelLoad, "transcribe", "model file",
			e.ModelPath()+" is not a model", services.ErrValidation)
	}
	e.cfg.Binary = path
	e.logger.Debug("whisper.cpp ready",
		logging.String("binary", path),
		logging.String("model_path", e.ModelPath()),
	)
	return e, nil
}

// Transcribe runs whisper.cpp on audioPath and returns its segments.
func (e *Engine) Transcribe(ctx context.Context, audioPath string) ([]pipeline.Segment, error) {
	outputDir, err := os.MkdirTemp("", "mediaflow-whispercpp-*")
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcribe", "prepare output", "", err)
	}
	defer os.RemoveAll(outputDir)

	outputBase := filepath.Join(outputDir, "transcript")
	if _, err := e.run(ctx, e.binary(), e.buildArgs(audioPath, outputBase)...); err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcribe", "whisper.cpp", audioPath, err)
	}
	segments, err := parseOutput(outputBase + ".json")
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcribe", "read output", audioPath, err)
	}
	return segments, nil
}

func (e *Engine) buildArgs(audioPath, outputBase string) []string {
	args := []string{
		"-m", e.ModelPath(),
		"-f", audioPath,
		"-of", outputBase,
		"-oj",
	}
	if lang := langpkg.ToISO2(e.language); lang != "" {
		args = append(args, "-l", lang)
	}
	return args
}

type cppOutput struct {
	Transcription []struct {
		Timestamps struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"timestamps"`
		Offsets *struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func parseOutput(path string) ([]pipeline.Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var output cppOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("parse whisper.cpp json: %w", err)
	}
	segments := make([]pipeline.Segment, 0, len(output.Transcription))
	for _, item := range output.Transcription {
		text := strings.TrimSpace(item.Text)
		if text == "" {
			continue
		}
		var start, end float64
		if item.Offsets != nil {
			start = float64(item.Offsets.From) / 1000
			end = float64(item.Offsets.To) / 1000
		} else {
			start = parseTimestamp(item.Timestamps.From)
			end = parseTimestamp(item.Timestamps.To)
		}
		segments = append(segments, pipeline.Segment{Start: start, End: end, Text: text})
	}
	return segments, nil
}

var timestampPattern = regexp.MustCompile(`(\d+):(\d+):(\d+)[,.](\d+)`)

// parseTimestamp converts "HH:MM:SS,mmm" to seconds.
func parseTimestamp(ts string) float64 {
	matches := timestampPattern.FindStringSubmatch(ts)
	if len(matches) != 5 {
		return 0
	}
	hours, _ := strconv.Atoi(matches[1])
	minutes, _ := strconv.Atoi(matches[2])
	seconds, _ := strconv.Atoi(matches[3])
	millis, _ := strconv.Atoi(matches[4])
	return float64(hours)*3600 + float64(minutes)*60 + float64(seconds) + float64(millis)/1000
}
