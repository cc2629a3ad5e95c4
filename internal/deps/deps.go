package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"mediaflow/internal/config"
	"mediaflow/internal/services/ffmpeg"
)

// Requirement defines an external dependency mediaflow relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the tools the configured pipeline invokes. The fallback
// engine is optional; the run degrades only if the primary also fails.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{Name: "yt-dlp", Command: cfg.Fetch.YtDlpBinary, Description: "Downloads remote media"},
		{Name: "FFmpeg", Command: cfg.Convert.FFmpegBinary, Description: "Normalizes audio for transcription"},
		{Name: "FFprobe", Command: ffmpeg.ProbeBinary(cfg.Convert.FFmpegBinary), Description: "Inspects media streams"},
	}
	reqs = append(reqs, engineRequirement("Primary engine", cfg.Transcription.Primary, false))
	if cfg.Transcription.Fallback.Engine != "" {
		reqs = append(reqs, engineRequirement("Fallback engine", cfg.Transcription.Fallback, true))
	}
	return reqs
}

func engineRequirement(name string, e config.Engine, optional bool) Requirement {
	command := strings.TrimSpace(e.Binary)
	if command == "" {
		switch e.Engine {
		case config.EngineWhisperX:
			command = "uvx"
		case config.EngineWhisperCPP:
			command = "whisper-cli"
		}
	}
	return Requirement{
		Name:        name,
		Command:     command,
		Description: fmt.Sprintf("Runs %s (%s)", e.Engine, e.Model),
		Optional:    optional,
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// CheckModelFile reports whether a whisper.cpp engine has its ggml weights.
// Other engines fetch their weights on demand and always report available.
func CheckModelFile(name string, e config.Engine) Status {
	status := Status{Name: name + " model", Optional: name != "Primary engine"}
	if e.Engine != config.EngineWhisperCPP {
		status.Command = e.Model
		status.Description = "Downloaded on first use"
		status.Available = true
		return status
	}
	model := strings.TrimSpace(e.Model)
	if model == "" {
		model = "base"
	}
	path := filepath.Join(e.ModelDir, fmt.Sprintf("ggml-%s.bin", model))
	status.Command = path
	status.Description = "whisper.cpp weights"
	info, err := os.Stat(path)
	switch {
	case err != nil:
		status.Detail = fmt.Sprintf("model file %q not found", path)
	case info.IsDir() || info.Size() == 0:
		status.Detail = fmt.Sprintf("model file %q is empty", path)
	default:
		status.Available = true
	}
	return status
}

// Check runs every binary and model check for cfg.
func Check(cfg *config.Config) []Status {
	results := CheckBinaries(Requirements(cfg))
	results = append(results, CheckModelFile("Primary engine", cfg.Transcription.Primary))
	if cfg.Transcription.Fallback.Engine != "" {
		results = append(results, CheckModelFile("Fallback engine", cfg.Transcription.Fallback))
	}
	return results
}

// MissingRequired returns the unavailable, non-optional entries.
func MissingRequired(results []Status) []Status {
	var missing []Status
	for _, s := range results {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}
