// Package worker runs fire-and-forget jobs on a fixed set of goroutines.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrPoolClosed is returned by Submit and Enqueue after Shutdown.
var ErrPoolClosed = errors.New("worker pool is closed")

// ErrQueueFull is returned by Submit when the queue has no free slot.
var ErrQueueFull = errors.New("worker pool queue is full")

// Job is one unit of background work. Its error is logged, never returned to the submitter.
type Job func(ctx context.Context) error

type envelope struct {
	name string
	job  Job
}

// Pool is a bounded queue drained by a fixed number of workers. Jobs passed to Enqueue that
// do not fit wait in an unbounded overflow list fed into the queue by a single goroutine.
type Pool struct {
	queue  chan envelope
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	omu      sync.Mutex
	overflow []envelope
	wake     chan struct{}

	draining  chan struct{}
	spillDone chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// New starts workers goroutines reading from a queue of queueSize slots.
func New(workers, queueSize int, log *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:  make(chan envelope, queueSize),
		log:    log.With(zap.String("component", "worker_pool")),
		ctx:       ctx,
		cancel:    cancel,
		wake:      make(chan struct{}, 1),
		draining:  make(chan struct{}),
		spillDone: make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run()
	}
	go p.spill()
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()
	for env := range p.queue {
		p.execute(env)
	}
}

func (p *Pool) execute(env envelope) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("job panicked", zap.String("job", env.name), zap.Any("panic", r))
		}
	}()
	if err := env.job(p.ctx); err != nil {
		p.log.Warn("job failed",
			zap.String("job", env.name),
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// Submit enqueues job without waiting for it to run. It never blocks: when the queue is full
// the job is dropped and ErrQueueFull returned.
func (p *Pool) Submit(name string, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queue <- envelope{name: name, job: job}:
		return nil
	default:
		p.log.Warn("job dropped, queue full", zap.String("job", name))
		return ErrQueueFull
	}
}

// Enqueue is Submit for jobs that must not be lost. It never blocks and never drops: when the
// queue is full the job joins the overflow list and runs after the jobs ahead of it.
// It fails only after Shutdown.
func (p *Pool) Enqueue(name string, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	env := envelope{name: name, job: job}
	p.omu.Lock()
	if len(p.overflow) == 0 {
		select {
		case p.queue <- env:
			p.omu.Unlock()
			return nil
		default:
		}
	}
	p.overflow = append(p.overflow, env)
	pending := len(p.overflow)
	p.omu.Unlock()

	if pending == 1 {
		p.log.Debug("queue full, job spilled to overflow", zap.String("job", name))
	}
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

func (p *Pool) spill() {
	defer close(p.spillDone)
	for {
		for {
			env, ok := p.peekOverflow()
			if !ok {
				break
			}
			select {
			case p.queue <- env:
				p.popOverflow()
			case <-p.ctx.Done():
				p.omu.Lock()
				dropped := len(p.overflow)
				p.omu.Unlock()
				p.log.Warn("overflow jobs abandoned on shutdown", zap.Int("jobs", dropped))
				return
			}
		}

		select {
		case <-p.wake:
		case <-p.draining:
			// No Enqueue can add work once draining is closed.
			if _, ok := p.peekOverflow(); !ok {
				return
			}
		}
	}
}

func (p *Pool) peekOverflow() (envelope, bool) {
	p.omu.Lock()
	defer p.omu.Unlock()
	if len(p.overflow) == 0 {
		return envelope{}, false
	}
	return p.overflow[0], true
}

func (p *Pool) popOverflow() {
	p.omu.Lock()
	defer p.omu.Unlock()
	p.overflow[0] = envelope{}
	p.overflow = p.overflow[1:]
}

// Shutdown stops accepting jobs and waits for queued and overflowed jobs to finish. When ctx
// expires first the context handed to running jobs is cancelled and ctx.Err is returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.draining)

		go func() {
			<-p.spillDone
			close(p.queue)
			p.wg.Wait()
			close(p.stopped)
		}()
	})

	select {
	case <-p.stopped:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}
