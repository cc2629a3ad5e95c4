package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mediaflow/internal/config"
	"mediaflow/internal/fileutil"
	"mediaflow/internal/gate"
	"mediaflow/internal/logging"
	"mediaflow/internal/services"
)

const defaultBinary = "yt-dlp"

// Fetcher retrieves media into the fetch artifact path.
type Fetcher struct {
	binary  string
	format  string
	timeout time.Duration
	run     services.CommandRunner
	logger  *slog.Logger
}

// New builds a fetcher from the fetch section.
func New(cfg config.Fetch, timeout time.Duration, logger *slog.Logger) *Fetcher {
	binary := strings.TrimSpace(cfg.YtDlpBinary)
	if binary == "" {
		binary = defaultBinary
	}
	return &Fetcher{
		binary:  binary,
		format:  strings.TrimSpace(cfg.Format),
		timeout: timeout,
		run:     services.RunCommand,
		logger:  logging.NewComponentLogger(logger, "ytdlp"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (f *Fetcher) WithCommandRunner(runner services.CommandRunner) *Fetcher {
	if runner != nil {
		f.run = runner
	}
	return f
}

// Fetch places the media for source at dest and returns dest.
func (f *Fetcher) Fetch(ctx context.Context, source, dest string) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", services.Wrap(services.ErrValidation, "fetch", "resolve source", "source is empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", services.Wrap(services.ErrFetch, "fetch", "prepare directory", dest, err)
	}
	if gate.IsRemote(source) {
		return f.download(ctx, source, dest)
	}
	return f.linkLocal(source, dest)
}

func (f *Fetcher) linkLocal(source, dest string) (string, error) {
	info, err := os.Stat(source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", services.Wrap(services.ErrFetch, "fetch", "stat source", source,
				fmt.Errorf("%w: %w", services.ErrNotFound, err))
		}
		return "", services.Wrap(services.ErrFetch, "fetch", "stat source", source, err)
	}
	if info.IsDir() {
		return "", services.Wrap(services.ErrFetch, "fetch", "stat source",
			fmt.Sprintf("%s is a directory", source), services.ErrValidation)
	}

	_ = os.Remove(dest)
	if err := os.Link(source, dest); err == nil {
		f.logger.Debug("linked local source", logging.String("source", source), logging.String("dest", dest))
		return dest, nil
	}
	if err := fileutil.CopyFileVerified(source, dest); err != nil {
		return "", services.Wrap(services.ErrFetch, "fetch", "copy local source", source, err)
	}
	f.logger.Debug("copied local source", logging.String("source", source), logging.String("dest", dest))
	return dest, nil
}

func (f *Fetcher) download(ctx context.Context, source, dest string) (string, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	stem := filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+".download")
	defer cleanupPartials(stem)

	output, err := f.run(ctx, f.binary, f.buildArgs(source, stem)...)
	if err != nil {
		return "", classifyFailure(source, err)
	}

	downloaded := downloadedPath(output, stem)
	if downloaded == "" {
		return "", services.Wrap(services.ErrFetch, "fetch", "locate download",
			fmt.Sprintf("yt-dlp reported success but no file was written for %s", source), nil)
	}
	if err := os.Rename(downloaded, dest); err != nil {
		return "", services.Wrap(services.ErrFetch, "fetch", "move download", downloaded, err)
	}
	f.logger.Info("downloaded source",
		logging.String("source", source),
		logging.String("dest", dest),
	)
	return dest, nil
}

func (f *Fetcher) buildArgs(source, stem string) []string {
	args := []string{
		"--no-playlist",
		"--no-progress",
		"--no-warnings",
		"--no-simulate",
		"--print", "after_move:filepath",
		"-o", stem + ".%(ext)s",
	}
	if f.format != "" {
		args = append(args, "-f", f.format)
	}
	return append(args, "--", source)
}

// downloadedPath prefers the path yt-dlp printed and falls back to globbing
// the output stem.
func downloadedPath(output []byte, stem string) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		candidate := strings.TrimSpace(lines[i])
		if candidate == "" {
			continue
		}
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	matches, _ := filepath.Glob(stem + ".*")
	for _, m := range matches {
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		return m
	}
	return ""
}

func cleanupPartials(stem string) {
	matches, _ := filepath.Glob(stem + ".*")
	for _, m := range matches {
		_ = os.Remove(m)
	}
}

func classifyFailure(source string, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return services.Wrap(services.ErrFetch, "fetch", "yt-dlp", "download timed out for "+source,
			fmt.Errorf("%w: %w", services.ErrTransient, err))
	case strings.Contains(msg, "private video"),
		strings.Contains(msg, "video unavailable"),
		strings.Contains(msg, "unsupported url"),
		strings.Contains(msg, "http error 404"),
		strings.Contains(msg, "does not exist"):
		return services.Wrap(services.ErrFetch, "fetch", "yt-dlp", "source unavailable: "+source,
			fmt.Errorf("%w: %w", services.ErrNotFound, err))
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "rate-limit"),
		strings.Contains(msg, "timed out"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "temporary failure"):
		return services.Wrap(services.ErrFetch, "fetch", "yt-dlp", "transient failure for "+source,
			fmt.Errorf("%w: %w", services.ErrTransient, err))
	default:
		return services.Wrap(services.ErrFetch, "fetch", "yt-dlp", source, err)
	}
}
