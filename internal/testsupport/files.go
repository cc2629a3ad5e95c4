package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"mediaflow/internal/gate"
	"mediaflow/internal/pipeline"
)

// WriteFile creates path (and its parent directories) holding size bytes of
// filler. A size <= 0 writes a single byte so the existence gate sees it.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, int(size)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteStageArtifacts places a placeholder artifact for key at each stage so
// runs resume past them.
func WriteStageArtifacts(t testing.TB, layout gate.Layout, key string, stages ...pipeline.Stage) {
	t.Helper()

	for _, stage := range stages {
		WriteFile(t, layout.Path(key, stage), 16)
	}
}
