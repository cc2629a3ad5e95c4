package persist

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"mediaflow/internal/config"
	"mediaflow/internal/fileutil"
	"mediaflow/internal/logging"
	"mediaflow/internal/pipeline"
	"mediaflow/internal/services"
)

// ObjectPutter is the subset of *minio.Client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Receipt is written at the gate path once every object is uploaded.
type Receipt struct {
	Key        string      `json:"key"`
	Bucket     string      `json:"bucket"`
	Objects    []ObjectRef `json:"objects"`
	UploadedAt time.Time   `json:"uploaded_at"`
}

// ObjectRef identifies one uploaded object.
type ObjectRef struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	ETag string `json:"etag,omitempty"`
}

// MinIO persists artifacts to an S3-compatible bucket.
type MinIO struct {
	client ObjectPutter
	bucket string
	prefix string
	now    func() time.Time
	logger *slog.Logger
}

// NewMinIO connects to the configured endpoint and verifies the bucket.
func NewMinIO(ctx context.Context, cfg config.MinIO, logger *slog.Logger) (*MinIO, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "persist", "minio client", endpoint, err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, services.Wrap(services.ErrPersist, "persist", "bucket check", cfg.Bucket, err)
	}
	if !exists {
		return nil, services.Wrap(services.ErrConfiguration, "persist", "bucket check",
			fmt.Sprintf("bucket %q does not exist", cfg.Bucket), nil)
	}
	return NewMinIOWithClient(client, cfg.Bucket, cfg.Prefix, logger), nil
}

// NewMinIOWithClient builds the backend around an existing client.
func NewMinIOWithClient(client ObjectPutter, bucket, prefix string, logger *slog.Logger) *MinIO {
	return &MinIO{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
		logger: logging.NewComponentLogger(logger, "persist"),
	}
}

func (m *MinIO) objectName(key, suffix string) string {
	if m.prefix == "" {
		return key + suffix
	}
	return path.Join(m.prefix, key+suffix)
}

// Save uploads the artifact renditions then writes a receipt to destPath.
func (m *MinIO) Save(ctx context.Context, artifact pipeline.Artifact, destPath string) error {
	data, err := encodeArtifact(artifact)
	if err != nil {
		return services.Wrap(services.ErrPersist, "persist", "encode", artifact.Key, err)
	}
	key := filepath.Base(stem(destPath))
	receipt := Receipt{Key: artifact.Key, Bucket: m.bucket}
	for _, r := range renditions(artifact, data) {
		name := m.objectName(key, r.suffix)
		info, err := m.client.PutObject(ctx, m.bucket, name, bytes.NewReader(r.data), int64(len(r.data)),
			minio.PutObjectOptions{ContentType: r.contentType})
		if err != nil {
			return services.Wrap(services.ErrPersist, "persist", "upload", name, err)
		}
		receipt.Objects = append(receipt.Objects, ObjectRef{Name: name, Size: int64(len(r.data)), ETag: info.ETag})
	}
	receipt.UploadedAt = m.now().UTC()
	if err := fileutil.WriteJSON(destPath, receipt); err != nil {
		return services.Wrap(services.ErrPersist, "persist", "write receipt", destPath, err)
	}
	m.logger.Debug("artifact uploaded",
		logging.String(logging.FieldItemKey, artifact.Key),
		logging.String("bucket", m.bucket),
		logging.Int("objects", len(receipt.Objects)),
	)
	return nil
}
