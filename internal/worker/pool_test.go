package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPool_RunsSubmittedJobs(t *testing.T) {
	p := New(3, 100, zap.NewNop())

	var ran atomic.Int32
	for i := 0; i < 50; i++ {
		require.NoError(t, p.Submit("count", func(context.Context) error {
			ran.Add(1)
			return nil
		}))
	}

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, int32(50), ran.Load())
}

func TestPool_FailuresAndPanicsDoNotStopWorkers(t *testing.T) {
	p := New(1, 10, zap.NewNop())

	var ran atomic.Int32
	require.NoError(t, p.Submit("fails", func(context.Context) error { return errors.New("boom") }))
	require.NoError(t, p.Submit("panics", func(context.Context) error { panic("oops") }))
	require.NoError(t, p.Submit("ok", func(context.Context) error {
		ran.Add(1)
		return nil
	}))

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, int32(1), ran.Load())
}

func TestPool_SubmitNeverBlocks(t *testing.T) {
	p := New(1, 1, zap.NewNop())
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, p.Submit("blocker", func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, p.Submit("queued", func(context.Context) error { return nil }))

	assert.ErrorIs(t, p.Submit("overflow", func(context.Context) error { return nil }), ErrQueueFull)

	close(release)
	require.NoError(t, p.Shutdown(context.Background()))
	assert.ErrorIs(t, p.Submit("late", func(context.Context) error { return nil }), ErrPoolClosed)
}

func TestPool_EnqueueNeverDrops(t *testing.T) {
	p := New(1, 1, zap.NewNop())
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, p.Submit("blocker", func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, p.Submit("queued", func(context.Context) error { return nil }))

	var (
		mu    sync.Mutex
		order []int
	)
	for i := 0; i < 5; i++ {
		i := i
		require.NoError(t, p.Enqueue("spilled", func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, i)
			return nil
		}))
	}

	close(release)
	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.ErrorIs(t, p.Enqueue("late", func(context.Context) error { return nil }), ErrPoolClosed)
}

func TestPool_ShutdownTimeoutCancelsJobs(t *testing.T) {
	p := New(1, 1, zap.NewNop())
	cancelled := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, p.Submit("slow", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Shutdown(ctx), context.DeadlineExceeded)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("running job was not cancelled")
	}
}
