package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	baseDir    string
	binDir     string
	workDir    string
	ledgerPath string
	configPath string
}

type testConfigOption func(*testing.T, *strings.Builder, *cliTestEnv)

func withBinaries(names ...string) testConfigOption {
	return func(t *testing.T, _ *strings.Builder, env *cliTestEnv) {
		for _, name := range names {
			writeStubBinary(t, env.binDir, name)
		}
	}
}

// withExtra appends TOML tables not already written by setupCLITestEnv.
func withExtra(toml string) testConfigOption {
	return func(_ *testing.T, b *strings.Builder, _ *cliTestEnv) {
		b.WriteString(toml)
		b.WriteString("\n")
	}
}

func setupCLITestEnv(t *testing.T, opts ...testConfigOption) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	env := &cliTestEnv{
		baseDir:    base,
		binDir:     filepath.Join(base, "bin"),
		workDir:    filepath.Join(base, "work"),
		ledgerPath: filepath.Join(base, "state", "ledger.db"),
		configPath: filepath.Join(base, "config.toml"),
	}
	if err := os.MkdirAll(env.binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[paths]\nwork_dir = %q\noutput_dir = %q\nlog_dir = %q\nledger_path = %q\n\n",
		env.workDir, filepath.Join(base, "output"), filepath.Join(base, "logs"), env.ledgerPath)
	b.WriteString("[memory]\nenabled = false\n\n")
	fmt.Fprintf(&b, "[fetch]\nytdlp_binary = %q\n\n", filepath.Join(env.binDir, "yt-dlp"))
	fmt.Fprintf(&b, "[convert]\nffmpeg_binary = %q\n\n", filepath.Join(env.binDir, "ffmpeg"))
	fmt.Fprintf(&b, "[transcription.primary]\nengine = \"whisperx\"\nmodel = \"tiny\"\nbinary = %q\n\n",
		filepath.Join(env.binDir, "uvx"))
	fmt.Fprintf(&b, "[transcription.fallback]\nengine = \"whispercpp\"\nmodel = \"small\"\nbinary = %q\nmodel_dir = %q\n\n",
		filepath.Join(env.binDir, "whisper-cli"), filepath.Join(base, "models"))
	b.WriteString("[logging]\nlevel = \"error\"\n\n")
	for _, opt := range opts {
		opt(t, &b, env)
	}

	if err := os.WriteFile(env.configPath, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func writeStubBinary(t *testing.T, dir, name string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func requireNotContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if strings.Contains(haystack, needle) {
		t.Fatalf("expected output not to contain %q, got:\n%s", needle, haystack)
	}
}
