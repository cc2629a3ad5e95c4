package whisperx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"mediaflow/internal/config"
	"mediaflow/internal/services"
)

func argValue(args []string, flag string) string {
	idx := slices.Index(args, flag)
	if idx < 0 || idx+1 >= len(args) {
		return ""
	}
	return args[idx+1]
}

func TestTranscribeParsesSegments(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "episode.wav")
	var captured []string
	engine := New(config.Engine{Model: "large-v3-turbo"}, "English", nil).
		WithCommandRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
			if name != UVXCommand {
				t.Fatalf("unexpected binary %q", name)
			}
			captured = args
			payload := `{"segments":[
				{"text":" Hello there. ","start":0.0,"end":1.5,"words":[{"word":"Hello","start":0.0,"end":0.6},{"word":"there.","start":0.7,"end":1.5}]},
				{"text":"   ","start":1.5,"end":2.0},
				{"text":"General Kenobi.","start":2.0,"end":3.1}
			]}`
			out := filepath.Join(argValue(args, "--output_dir"), "episode.json")
			return nil, os.WriteFile(out, []byte(payload), 0o644)
		})

	segments, err := engine.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Text != "Hello there." || len(segments[0].Words) != 2 {
		t.Fatalf("unexpected first segment %+v", segments[0])
	}
	if segments[1].Start != 2.0 || segments[1].End != 3.1 {
		t.Fatalf("unexpected timing %+v", segments[1])
	}
	if got := argValue(captured, "--language"); got != "en" {
		t.Fatalf("expected --language en, got %q", got)
	}
	if got := argValue(captured, "--model"); got != "large-v3-turbo" {
		t.Fatalf("unexpected model %q", got)
	}
	if _, err := os.Stat(argValue(captured, "--output_dir")); !os.IsNotExist(err) {
		t.Fatalf("expected output dir removed, stat err=%v", err)
	}
}

func TestBuildArgsDeviceAndVAD(t *testing.T) {
	cpu := New(config.Engine{}, "auto", nil).buildArgs("a.wav", "/tmp/out", "auto")
	if argValue(cpu, "--device") != CPUDevice || argValue(cpu, "--compute_type") != CPUComputeType {
		t.Fatalf("expected cpu device args, got %v", cpu)
	}
	if slices.Contains(cpu, "--language") {
		t.Fatalf("auto language must not pin --language: %v", cpu)
	}
	if argValue(cpu, "--vad_method") != VADMethodSilero {
		t.Fatalf("expected silero default, got %v", cpu)
	}

	gpu := New(config.Engine{CUDAEnabled: true, VADMethod: VADMethodPyannote, HFToken: "hf_x"}, "", nil).
		buildArgs("a.wav", "/tmp/out", "")
	if argValue(gpu, "--index-url") != CUDAIndexURL || argValue(gpu, "--device") != CUDADevice {
		t.Fatalf("expected cuda args, got %v", gpu)
	}
	if argValue(gpu, "--hf_token") != "hf_x" {
		t.Fatalf("expected hf token, got %v", gpu)
	}
}

func TestTranscribeFailureIsTranscriptionError(t *testing.T) {
	engine := New(config.Engine{}, "", nil).WithCommandRunner(func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("uvx: exit status 1: CUDA out of memory")
	})
	_, err := engine.Transcribe(context.Background(), "/tmp/x.wav")
	if services.KindOf(err, services.KindNone) != services.KindTranscription {
		t.Fatalf("expected transcription error, got %v", err)
	}
}

func TestTranscribeMissingOutput(t *testing.T) {
	engine := New(config.Engine{}, "", nil).WithCommandRunner(func(context.Context, string, ...string) ([]byte, error) {
		return nil, nil
	})
	if _, err := engine.Transcribe(context.Background(), "/tmp/x.wav"); !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected transcription error, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		engine := New(config.Engine{}, "", nil).
			WithLookPath(func(name string) (string, error) { return "/usr/bin/" + name, nil }).
			WithCommandRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
				if name != "/usr/bin/uvx" || !slices.Equal(args, []string{"--version"}) {
					t.Fatalf("unexpected probe %s %v", name, args)
				}
				return []byte("uv 0.8.0\n"), nil
			})
		got, err := engine.Load(context.Background())
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got.Name() != "whisperx/large-v3" {
			t.Fatalf("unexpected name %q", got.Name())
		}
	})

	t.Run("missing launcher", func(t *testing.T) {
		engine := New(config.Engine{}, "", nil).
			WithLookPath(func(string) (string, error) { return "", errors.New("executable file not found in $PATH") })
		if _, err := engine.Load(context.Background()); !errors.Is(err, services.ErrModelLoad) {
			t.Fatalf("expected model load error, got %v", err)
		}
	})
}

func TestProviderCarriesReentrancy(t *testing.T) {
	p := New(config.Engine{Reentrant: true, Model: "small"}, "", nil).Provider()
	if p.Name != "whisperx/small" || !p.Reentrant || p.Load == nil {
		t.Fatalf("unexpected provider %+v", p)
	}
}
