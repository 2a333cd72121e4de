package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is a periodic background task.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// TaskFunc adapts a function into a named Task.
type TaskFunc struct {
	TaskName string
	Fn       func(ctx context.Context) error
}

func (t TaskFunc) Name() string                  { return t.TaskName }
func (t TaskFunc) Run(ctx context.Context) error { return t.Fn(ctx) }

// Periodic runs registered tasks on a fixed interval.
type Periodic struct {
	mu      sync.Mutex
	tasks   []Task
	log     *zap.Logger
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewPeriodic(log *zap.Logger) *Periodic {
	return &Periodic{log: log.With(zap.String("component", "periodic_tasks"))}
}

// RegisterTask adds a task. Tasks registered after StartPeriodic run from the next tick.
func (p *Periodic) RegisterTask(task Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, task)
	p.log.Info("task registered", zap.String("task", task.Name()))
}

// RunOnce runs every registered task sequentially.
func (p *Periodic) RunOnce(ctx context.Context) {
	p.mu.Lock()
	tasks := append([]Task(nil), p.tasks...)
	p.mu.Unlock()

	for _, task := range tasks {
		start := time.Now()
		if err := task.Run(ctx); err != nil {
			p.log.Error("task failed",
				zap.String("task", task.Name()),
				zap.Error(err),
				zap.Duration("duration", time.Since(start)),
			)
			continue
		}
		p.log.Info("task completed",
			zap.String("task", task.Name()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// StartPeriodic runs the tasks immediately and then every interval until Stop.
func (p *Periodic) StartPeriodic(interval time.Duration) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		p.RunOnce(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.RunOnce(ctx)
			}
		}
	}()

	p.log.Info("periodic tasks started", zap.Duration("interval", interval))
}

// Stop cancels the running pass and waits for it to return.
func (p *Periodic) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Info("periodic tasks stopped")
}
