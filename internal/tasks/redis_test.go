package tasks

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func setupRedis(t *testing.T) string {
	t.Helper()
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION is not set")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "docker.io/redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate redis container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return "redis://" + endpoint + "/0"
}

func TestRedis_ScheduleAndConsume(t *testing.T) {
	url := setupRedis(t)
	ctx := context.Background()

	client, err := NewRedisClient(url)
	require.NoError(t, err)

	reg := NewRegistry()
	rec := &received{}
	reg.Register(ExtractDocumentFileContent, Handle(rec.handle))

	r := NewRedis(client, "docvault:test:tasks", reg, 2, zap.NewNop())
	data := ExtractDocumentFileContentData{DocumentID: "doc_1", OrganizationID: "org_1"}
	require.NoError(t, r.ScheduleJob(ctx, ExtractDocumentFileContent, data))

	r.Start(ctx)
	assert.Eventually(t, func() bool { return len(rec.all()) == 1 }, 10*time.Second, 50*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	require.NoError(t, r.Stop(stopCtx))
	assert.Equal(t, data, rec.all()[0])
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient("not-a-url://")
	assert.Error(t, err)
}
