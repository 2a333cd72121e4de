package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/config"
)

func TestNewMinIO_RequiresConfig(t *testing.T) {
	_, err := NewMinIO(config.MinIOConfig{Endpoint: "localhost:9000", Bucket: "docs"})
	require.Error(t, err)
	assert.Equal(t, "minio driver: MINIO_ACCESS_KEY, MINIO_SECRET_KEY must be set", err.Error())
}

func TestNewS3_RequiresConfig(t *testing.T) {
	_, err := NewS3(config.S3Config{Bucket: "docs"})
	assert.ErrorContains(t, err, "s3 bucket and credentials are required")
}

func TestTranslateMinIOError(t *testing.T) {
	missing := fmt.Errorf("get: %w", minio.ErrorResponse{Code: "NoSuchKey", Message: "gone"})
	assert.ErrorIs(t, translateMinIOError(missing), ErrFileNotFound)

	denied := minio.ErrorResponse{Code: "AccessDenied"}
	err := translateMinIOError(denied)
	assert.NotErrorIs(t, err, ErrFileNotFound)
	assert.Equal(t, denied, err)

	assert.NoError(t, translateMinIOError(nil))
}

func TestTranslateS3Error(t *testing.T) {
	assert.ErrorIs(t, translateS3Error(&types.NoSuchKey{}), ErrFileNotFound)
	assert.ErrorIs(t, translateS3Error(fmt.Errorf("head: %w", &types.NotFound{})), ErrFileNotFound)

	other := errors.New("throttled")
	assert.Equal(t, other, translateS3Error(other))
}
