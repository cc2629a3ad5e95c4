package persist

import (
	"context"
	"log/slog"

	"mediaflow/internal/fileutil"
	"mediaflow/internal/logging"
	"mediaflow/internal/pipeline"
	"mediaflow/internal/services"
)

// Filesystem persists artifacts to local disk.
type Filesystem struct {
	logger *slog.Logger
}

// NewFilesystem returns the local-disk backend.
func NewFilesystem(logger *slog.Logger) *Filesystem {
	return &Filesystem{logger: logging.NewComponentLogger(logger, "persist")}
}

// Save writes destPath and its .txt and .srt siblings atomically.
func (f *Filesystem) Save(ctx context.Context, artifact pipeline.Artifact, destPath string) error {
	data, err := encodeArtifact(artifact)
	if err != nil {
		return services.Wrap(services.ErrPersist, "persist", "encode", artifact.Key, err)
	}
	base := stem(destPath)
	for _, r := range renditions(artifact, data) {
		if err := ctx.Err(); err != nil {
			return services.Wrap(services.ErrPersist, "persist", "write", artifact.Key, err)
		}
		if err := fileutil.WriteAtomic(base+r.suffix, r.data); err != nil {
			return services.Wrap(services.ErrPersist, "persist", "write", base+r.suffix, err)
		}
	}
	f.logger.Debug("artifact written",
		logging.String(logging.FieldItemKey, artifact.Key),
		logging.String("path", destPath),
	)
	return nil
}
