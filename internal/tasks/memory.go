package tasks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"docvault/internal/worker"
)

// Memory runs jobs in-process on a dedicated worker pool. Jobs do not survive a restart.
type Memory struct {
	registry *Registry
	pool     *worker.Pool
	log      *zap.Logger
}

var _ Runner = (*Memory)(nil)

func NewMemory(registry *Registry, workers, queueSize int, log *zap.Logger) *Memory {
	log = log.With(zap.String("component", "tasks"), zap.String("driver", "memory"))
	return &Memory{
		registry: registry,
		pool:     worker.New(workers, queueSize, log),
		log:      log,
	}
}

func (m *Memory) ScheduleJob(_ context.Context, name string, data any) error {
	env, err := newEnvelope(name, data)
	if err != nil {
		return err
	}
	if err := m.pool.Submit(name, func(ctx context.Context) error {
		return m.registry.Dispatch(ctx, env)
	}); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	m.log.Debug("job scheduled", zap.String("job", name), zap.String("job_id", env.ID))
	return nil
}

// Start is a no-op: pool workers are already running.
func (m *Memory) Start(context.Context) {}

// Stop waits for queued jobs to finish.
func (m *Memory) Stop(ctx context.Context) error {
	return m.pool.Shutdown(ctx)
}
