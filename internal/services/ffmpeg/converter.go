package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"mediaflow/internal/config"
	"mediaflow/internal/logging"
	"mediaflow/internal/services"
)

const (
	defaultFFmpeg     = "ffmpeg"
	defaultFFprobe    = "ffprobe"
	defaultSampleRate = 16000
)

// Converter normalizes media into speech-ready WAV.
type Converter struct {
	ffmpeg     string
	ffprobe    string
	sampleRate int
	run        services.CommandRunner
	logger     *slog.Logger
}

// New builds a converter from the convert section.
func New(cfg config.Convert, logger *slog.Logger) *Converter {
	ffmpegBinary := strings.TrimSpace(cfg.FFmpegBinary)
	if ffmpegBinary == "" {
		ffmpegBinary = defaultFFmpeg
	}
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = defaultSampleRate
	}
	return &Converter{
		ffmpeg:     ffmpegBinary,
		ffprobe:    ProbeBinary(ffmpegBinary),
		sampleRate: rate,
		run:        services.RunCommand,
		logger:     logging.NewComponentLogger(logger, "ffmpeg"),
	}
}

// ProbeBinary derives the ffprobe binary that ships next to ffmpegBinary.
func ProbeBinary(ffmpegBinary string) string {
	dir, base := filepath.Split(ffmpegBinary)
	if !strings.Contains(base, "ffmpeg") {
		return defaultFFprobe
	}
	return dir + strings.Replace(base, "ffmpeg", "ffprobe", 1)
}

// WithCommandRunner sets a custom command runner (for testing).
func (c *Converter) WithCommandRunner(runner services.CommandRunner) *Converter {
	if runner != nil {
		c.run = runner
	}
	return c
}

// Convert writes the first audio stream of source to dest as mono PCM WAV.
func (c *Converter) Convert(ctx context.Context, source, dest string) (string, error) {
	probe, err := Probe(ctx, c.run, c.ffprobe, source)
	if err != nil {
		return "", services.Wrap(services.ErrConversion, "convert", "probe", source, err)
	}
	stream, ok := probe.AudioStream()
	if !ok {
		return "", services.Wrap(services.ErrConversion, "convert", "probe",
			fmt.Sprintf("%s has no audio stream", source), services.ErrValidation)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", services.Wrap(services.ErrConversion, "convert", "prepare directory", dest, err)
	}
	tmp := filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+".tmp.wav")
	defer os.Remove(tmp)

	if _, err := c.run(ctx, c.ffmpeg, c.buildArgs(source, stream.Index, tmp)...); err != nil {
		return "", services.Wrap(services.ErrConversion, "convert", "ffmpeg", source, err)
	}
	if info, err := os.Stat(tmp); err != nil || info.Size() == 0 {
		return "", services.Wrap(services.ErrConversion, "convert", "ffmpeg",
			fmt.Sprintf("no audio written for %s", source), err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return "", services.Wrap(services.ErrConversion, "convert", "finalize", dest, err)
	}

	c.logger.Debug("audio normalized",
		logging.String("source", source),
		logging.Int("stream", stream.Index),
		logging.Float64("duration_seconds", probe.DurationSeconds()),
	)
	return dest, nil
}

func (c *Converter) buildArgs(source string, audioIndex int, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-map", fmt.Sprintf("0:%d", audioIndex),
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", strconv.Itoa(c.sampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		dest,
	}
}
