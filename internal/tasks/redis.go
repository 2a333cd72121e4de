package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const popTimeout = 5 * time.Second

// NewRedisClient parses redisURL and checks the connection.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// Redis queues jobs on a Redis list so they survive restarts and can be shared by replicas.
// Jobs are appended with RPUSH and consumed with BLPOP.
type Redis struct {
	client   *redis.Client
	queue    string
	registry *Registry
	workers  int
	log      *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ Runner = (*Redis)(nil)

func NewRedis(client *redis.Client, queue string, registry *Registry, workers int, log *zap.Logger) *Redis {
	if workers <= 0 {
		workers = 1
	}
	return &Redis{
		client:   client,
		queue:    queue,
		registry: registry,
		workers:  workers,
		log:      log.With(zap.String("component", "tasks"), zap.String("driver", "redis")),
	}
}

func (r *Redis) ScheduleJob(ctx context.Context, name string, data any) error {
	env, err := newEnvelope(name, data)
	if err != nil {
		return err
	}
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s job: %w", name, err)
	}
	if err := r.client.RPush(ctx, r.queue, b).Err(); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	r.log.Debug("job scheduled", zap.String("job", name), zap.String("job_id", env.ID))
	return nil
}

// Start launches the consumers. Calling it twice is a no-op.
func (r *Redis) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(r.workers)
	for i := 0; i < r.workers; i++ {
		go r.consume(ctx)
	}
	r.log.Info("task consumers started", zap.String("queue", r.queue), zap.Int("workers", r.workers))
}

func (r *Redis) consume(ctx context.Context) {
	defer r.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		res, err := r.client.BLPop(ctx, popTimeout, r.queue).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Warn("task queue pop failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		// res is [queue, value].
		if len(res) == 2 {
			r.run(ctx, res[1])
		}
	}
}

func (r *Redis) run(ctx context.Context, raw string) {
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		r.log.Error("invalid job envelope", zap.Error(err))
		return
	}
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("job panicked", zap.String("job", env.Name), zap.Any("panic", rec))
		}
	}()
	if err := r.registry.Dispatch(ctx, env); err != nil {
		r.log.Warn("job failed",
			zap.String("job", env.Name),
			zap.String("job_id", env.ID),
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// Stop cancels the consumers, waits for running jobs and closes the client.
func (r *Redis) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return r.client.Close()
}
