package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CommandRunner executes an external tool and returns its stdout. Adapters
// take one so tests never exec real binaries.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// RunCommand is the default CommandRunner. A failing command's error carries
// the tail of its stderr.
func RunCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return runCommand(ctx, nil, name, args...)
}

// CommandRunnerWithEnv returns a runner that adds env to the inherited
// environment.
func CommandRunnerWithEnv(env ...string) CommandRunner {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return runCommand(ctx, env, name, args...)
	}
}

func runCommand(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return stdout.Bytes(), fmt.Errorf("%s: %w", name, ctxErr)
		}
		return stdout.Bytes(), fmt.Errorf("%s: %w: %s", name, err, tail(stderr.String(), 2048))
	}
	return stdout.Bytes(), nil
}

func tail(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return "…" + s[len(s)-limit:]
}
