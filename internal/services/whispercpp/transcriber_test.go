package whispercpp

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

func TestParseTimestamp(t *testing.T) {
	cases := map[string]float64{
		"00:00:01,500": 1.5,
		"01:02:03.250": 3723.25,
		"garbage":      0,
	}
	for in, want := range cases {
		if got := parseTimestamp(in); got != want {
			t.Errorf("parseTimestamp(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTranscribeReadsJSONOutput(t *testing.T) {
	modelDir := t.TempDir()
	engine := New(config.Engine{ModelDir: modelDir, Model: "small"}, "french", nil).
		WithCommandRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
			if name != defaultBinary {
				t.Fatalf("unexpected binary %q", name)
			}
			if args[1] != filepath.Join(modelDir, "ggml-small.bin") {
				t.Fatalf("unexpected model arg %q", args[1])
			}
			if idx := slices.Index(args, "-l"); idx < 0 || args[idx+1] != "fr" {
				t.Fatalf("expected -l fr in %v", args)
			}
			base := args[slices.Index(args, "-of")+1]
			payload := `{"transcription":[
				{"timestamps":{"from":"00:00:00,000","to":"00:00:02,000"},"text":" Bonjour."},
				{"timestamps":{"from":"00:00:02,000","to":"00:00:03,000"},"offsets":{"from":2000,"to":3500},"text":" Salut."},
				{"timestamps":{"from":"00:00:03,500","to":"00:00:04,000"},"text":"  "}
			]}`
			return nil, os.WriteFile(base+".json", []byte(payload), 0o644)
		})

	segments, err := engine.Transcribe(context.Background(), "/audio/a.wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Text != "Bonjour." || segments[0].End != 2 {
		t.Fatalf("unexpected first segment %+v", segments[0])
	}
	if segments[1].End != 3.5 {
		t.Fatalf("offsets should win over timestamps, got %+v", segments[1])
	}
}

func TestTranscribeFailure(t *testing.T) {
	engine := New(config.Engine{}, "", nil).WithCommandRunner(func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("whisper-cli: exit status 3")
	})
	_, err := engine.Transcribe(context.Background(), "/audio/a.wav")
	if services.KindOf(err, services.KindNone) != services.KindTranscription {
		t.Fatalf("expected transcription error, got %v", err)
	}
}

func TestLoadRequiresModelFile(t *testing.T) {
	modelDir := t.TempDir()
	found := func(name string) (string, error) { return "/usr/local/bin/" + name, nil }

	engine := New(config.Engine{ModelDir: modelDir}, "", nil).WithLookPath(found)
	if _, err := engine.Load(context.Background()); !errors.Is(err, services.ErrModelLoad) {
		t.Fatalf("expected model load error without weights, got %v", err)
	}

	if err := os.WriteFile(filepath.Join(modelDir, "ggml-base.bin"), []byte("ggml"), 0o644); err != nil {
		t.Fatal(err)
	}
	loaded, err := engine.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Name() != "whispercpp/base" {
		t.Fatalf("unexpected name %q", loaded.Name())
	}
}

func TestLoadMissingBinary(t *testing.T) {
	engine := New(config.Engine{ModelDir: t.TempDir()}, "", nil).
		WithLookPath(func(string) (string, error) { return "", errors.New("not found") })
	if _, err := engine.Load(context.Background()); !errors.Is(err, services.ErrModelLoad) {
		t.Fatalf("expected model load error, got %v", err)
	}
}
