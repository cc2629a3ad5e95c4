package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"mediaflow/internal/config"
	"mediaflow/internal/pipeline"
)

// New selects the configured backend.
func New(ctx context.Context, cfg config.Persist, logger *slog.Logger) (pipeline.Persister, error) {
	switch cfg.Backend {
	case config.PersistFilesystem, "":
		return NewFilesystem(logger), nil
	case config.PersistMinIO:
		return NewMinIO(ctx, cfg.MinIO, logger)
	default:
		return nil, fmt.Errorf("unsupported persist backend %q", cfg.Backend)
	}
}

func encodeArtifact(artifact pipeline.Artifact) ([]byte, error) {
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func stem(destPath string) string {
	return strings.TrimSuffix(destPath, ".json")
}
