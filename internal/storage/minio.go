package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"docvault/internal/config"
)

const (
	// minioPartSize bounds the per-part buffer minio-go allocates for streams of unknown size.
	minioPartSize = 16 << 20

	bucketCheckTimeout = 10 * time.Second
)

// minioStorage stores documents in a MinIO bucket. Objects carry the document's
// MIME type and metadata; keys are used verbatim as object names.
type minioStorage struct {
	client *minio.Client
	bucket string
}

func validateMinIOConfig(cfg config.MinIOConfig) error {
	var missing []string
	if strings.TrimSpace(cfg.Endpoint) == "" {
		missing = append(missing, "MINIO_ENDPOINT")
	}
	if cfg.AccessKey == "" {
		missing = append(missing, "MINIO_ACCESS_KEY")
	}
	if cfg.SecretKey == "" {
		missing = append(missing, "MINIO_SECRET_KEY")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		missing = append(missing, "MINIO_BUCKET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("minio driver: %s must be set", strings.Join(missing, ", "))
	}
	return nil
}

// NewMinIO connects to the configured endpoint and creates the document bucket on first use.
func NewMinIO(cfg config.MinIOConfig) (Driver, error) {
	if err := validateMinIOConfig(cfg); err != nil {
		return nil, err
	}

	cli, err := minio.New(strings.TrimSpace(cfg.Endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), bucketCheckTimeout)
	defer cancel()
	bucket := strings.TrimSpace(cfg.Bucket)
	if err := ensureBucket(ctx, cli, bucket); err != nil {
		return nil, err
	}
	return &minioStorage{client: cli, bucket: bucket}, nil
}

func ensureBucket(ctx context.Context, cli *minio.Client, bucket string) error {
	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("minio driver: stat bucket %q: %w", bucket, err)
	}
	if exists {
		return nil
	}
	err = cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
	// Another replica may have created it between the two calls.
	if code := minio.ToErrorResponse(err).Code; code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
		return nil
	}
	if err != nil {
		return fmt.Errorf("minio driver: create bucket %q: %w", bucket, err)
	}
	return nil
}

func (m *minioStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	size := opt.Size
	if size <= 0 {
		size = -1
	}
	uploaded, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  opt.ContentType,
		UserMetadata: opt.Metadata,
		PartSize:     minioPartSize,
	})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("minio put %q: %w", key, err)
	}

	lastModified := uploaded.LastModified
	if lastModified.IsZero() {
		lastModified = time.Now()
	}
	return ObjectInfo{
		Key:          key,
		Size:         uploaded.Size,
		ETag:         uploaded.ETag,
		ContentType:  opt.ContentType,
		LastModified: lastModified,
		Metadata:     opt.Metadata,
	}, nil
}

// Get stats the object before handing it out so a missing key fails here, not on the first Read.
func (m *minioStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateMinIOError(err)
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, translateMinIOError(err)
	}
	return obj, nil
}

// Delete is idempotent on the server side; RemoveObject reports success for absent keys.
func (m *minioStorage) Delete(ctx context.Context, key string) error {
	return translateMinIOError(m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}))
}

func translateMinIOError(err error) error {
	if err == nil {
		return nil
	}
	var resp minio.ErrorResponse
	if errors.As(err, &resp) && (resp.Code == "NoSuchKey" || resp.Code == "NoSuchObject") {
		return ErrFileNotFound.WithCause(err)
	}
	return err
}
