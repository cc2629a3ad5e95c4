package whisperx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"mediaflow/internal/config"
	langpkg "mediaflow/internal/language"
	"mediaflow/internal/logging"
	"mediaflow/internal/modelload"
	"mediaflow/internal/pipeline"
	"mediaflow/internal/services"
)

// Engine transcribes audio with WhisperX.
type Engine struct {
	cfg      config.Engine
	language string
	run      services.CommandRunner
	lookPath func(string) (string, error)
	logger   *slog.Logger
}

// New creates a WhisperX engine. language may be empty or "auto" for
// detection.
func New(cfg config.Engine, language string, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		language: language,
		run:      services.CommandRunnerWithEnv(torchEnv),
		lookPath: exec.LookPath,
		logger:   logging.NewComponentLogger(logger, "whisperx"),
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

// Model returns the configured model name.
func (e *Engine) Model() string {
	if e.cfg.Model != "" {
		return e.cfg.Model
	}
	return DefaultModel
}

// Name identifies the engine in transcripts and logs.
func (e *Engine) Name() string {
	return "whisperx/" + e.Model()
}

func (e *Engine) binary() string {
	if b := strings.TrimSpace(e.cfg.Binary); b != "" {
		return b
	}
	return UVXCommand
}

// Provider exposes the engine as a model loader tier.
func (e *Engine) Provider() modelload.Provider[pipeline.Transcriber] {
	return modelload.Provider[pipeline.Transcriber]{
		Name:      e.Name(),
		Load:      e.Load,
		Reentrant: e.cfg.Reentrant,
	}
}

// Load verifies the launcher resolves and answers a version probe.
func (e *Engine) Load(ctx context.Context) (pipeline.Transcriber, error) {
	path, err := e.lookPath(e.binary())
	if err != nil {
		return nil, services.Wrap(services.ErrModelLoad, "transcribe", "locate launcher", e.binary(), err)
	}
	out, err := e.run(ctx, path, "--version")
	if err != nil {
		return nil, services.Wrap(services.ErrModelLoad, "transcribe", "probe launcher", path, err)
	}
	e.logger.Debug("whisperx launcher ready",
		logging.String("binary", path),
		logging.String("version", strings.TrimSpace(string(out))),
		logging.String("model", e.Model()),
		logging.Bool("cuda", e.cfg.CUDAEnabled),
	)
	return e, nil
}

// Transcribe runs WhisperX on audioPath and returns its segments.
func (e *Engine) Transcribe(ctx context.Context, audioPath string) ([]pipeline.Segment, error) {
	if strings.TrimSpace(audioPath) == "" {
		return nil, services.Wrap(services.ErrTranscription, "transcribe", "whisperx", "audio path required", services.ErrValidation)
	}
	outputDir, err := os.MkdirTemp("", "mediaflow-whisperx-*")
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcribe", "prepare output", "", err)
	}
	defer os.RemoveAll(outputDir)

	if _, err := e.run(ctx, e.binary(), e.buildArgs(audioPath, outputDir, e.language)...); err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcribe", "whisperx", audioPath, err)
	}

	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	segments, err := LoadSegments(filepath.Join(outputDir, baseName+".json"))
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcribe", "read output", audioPath, err)
	}
	return toPipeline(segments), nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (e *Engine) buildArgs(source, outputDir, language string) []string {
	args := make([]string, 0, 40)

	if e.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", e.Model(),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
		"--best_of", BestOf,
		"--temperature", Temperature,
		"--patience", Patience,
	)

	vadMethod := e.cfg.VADMethod
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)
	if vadMethod == VADMethodPyannote && e.cfg.HFToken != "" {
		args = append(args, "--hf_token", e.cfg.HFToken)
	}

	if lang := langpkg.ToISO2(language); lang != "" {
		args = append(args, "--language", lang)
	}

	if e.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}

// Word represents a single word with timing from WhisperX output.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Words []Word  `json:"words"`
}

type whisperXPayload struct {
	Segments []Segment `json:"segments"`
}

// LoadSegments loads segments from a WhisperX JSON file.
func LoadSegments(jsonPath string) ([]Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload.Segments, nil
}

func toPipeline(segments []Segment) []pipeline.Segment {
	out := make([]pipeline.Segment, 0, len(segments))
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		converted := pipeline.Segment{Start: seg.Start, End: seg.End, Text: text}
		for _, w := range seg.Words {
			converted.Words = append(converted.Words, pipeline.Word{
				Word:  strings.TrimSpace(w.Word),
				Start: w.Start,
				End:   w.End,
			})
		}
		out = append(out, converted)
	}
	return out
}
