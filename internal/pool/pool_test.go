package pool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPool(t *testing.T, cfg Config, reg *HandlerRegistry) *Pool {
	t.Helper()
	p, err := New(cfg, reg, testLogger())
	require.NoError(t, err)
	t.Cleanup(p.Terminate)
	return p
}

func echoHandler(ctx context.Context, payload any, progress func(int)) (any, error) {
	return payload, nil
}

func TestPool_ExecuteSuccess(t *testing.T) {
	reg := NewHandlerRegistry()
	require.NoError(t, reg.Register("echo", echoHandler))

	p := newTestPool(t, Config{MaxWorkers: 2, MinWorkers: 1}, reg)

	f, err := p.Execute(context.Background(), "echo", "hello", nil)
	require.NoError(t, err)

	value, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", value)

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.CompletedTasks)
	assert.Equal(t, int64(0), stats.FailedTasks)
}

func TestPool_TaskIDsAreMonotonic(t *testing.T) {
	reg := NewHandlerRegistry()
	require.NoError(t, reg.Register("echo", echoHandler))

	p := newTestPool(t, Config{MaxWorkers: 2, MinWorkers: 1}, reg)

	var last uint64
	for i := 0; i < 5; i++ {
		f, err := p.Execute(context.Background(), "echo", i, nil)
		require.NoError(t, err)
		assert.Greater(t, f.TaskID(), last)
		last = f.TaskID()
	}
}

func TestPool_UnknownTaskType(t *testing.T) {
	p := newTestPool(t, Config{MaxWorkers: 1, MinWorkers: 1}, NewHandlerRegistry())

	_, err := p.Execute(context.Background(), "nope", nil, nil)
	assert.ErrorIs(t, err, ErrUnknownTaskType)
}

func TestPool_PriorityDispatchOrder(t *testing.T) {
	reg := NewHandlerRegistry()

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, reg.Register("block", func(ctx context.Context, payload any, progress func(int)) (any, error) {
		close(started)
		<-release
		return nil, nil
	}))

	var mu sync.Mutex
	var order []string
	require.NoError(t, reg.Register("record", func(ctx context.Context, payload any, progress func(int)) (any, error) {
		mu.Lock()
		order = append(order, payload.(string))
		mu.Unlock()
		return nil, nil
	}))

	// A single worker: the blocker pins it while the others queue up.
	p := newTestPool(t, Config{MaxWorkers: 1, MinWorkers: 1}, reg)

	blocker, err := p.Execute(context.Background(), "block", nil, nil)
	require.NoError(t, err)
	<-started

	// Priorities 1, 5, 1, 9 submitted in that order.
	var futures []*Future
	for _, sub := range []struct {
		label    string
		priority int
	}{
		{"p1-first", 1},
		{"p5", 5},
		{"p1-second", 1},
		{"p9", 9},
	} {
		f, err := p.Execute(context.Background(), "record", sub.label, &TaskOptions{Priority: sub.priority})
		require.NoError(t, err)
		futures = append(futures, f)
	}

	close(release)
	_, err = blocker.Wait(context.Background())
	require.NoError(t, err)
	for _, f := range futures {
		_, err := f.Wait(context.Background())
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"p9", "p5", "p1-first", "p1-second"}, order)
}

func TestPool_RetriesExhaustedThenTerminalFailure(t *testing.T) {
	reg := NewHandlerRegistry()

	var attempts atomic.Int32
	handlerErr := errors.New("boom")
	require.NoError(t, reg.Register("fail", func(ctx context.Context, payload any, progress func(int)) (any, error) {
		attempts.Add(1)
		return nil, handlerErr
	}))

	p := newTestPool(t, Config{MaxWorkers: 1, MinWorkers: 1, MaxRetries: 2}, reg)

	f, err := p.Execute(context.Background(), "fail", nil, nil)
	require.NoError(t, err)

	_, err = f.Wait(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTaskFailed)
	assert.ErrorIs(t, err, handlerErr)

	// maxRetries = 2 means exactly three total attempts.
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, int64(1), p.Stats().FailedTasks)
}

func TestPool_TimeoutReplacesWorker(t *testing.T) {
	reg := NewHandlerRegistry()
	require.NoError(t, reg.Register("stuck", func(ctx context.Context, payload any, progress func(int)) (any, error) {
		// Ignores ctx on purpose: simulates a handler stuck in a loop.
		time.Sleep(2 * time.Second)
		return nil, nil
	}))

	p := newTestPool(t, Config{
		MaxWorkers:  1,
		MinWorkers:  1,
		TaskTimeout: 100 * time.Millisecond,
		MaxRetries:  0,
	}, reg)

	start := time.Now()
	f, err := p.Execute(context.Background(), "stuck", nil, nil)
	require.NoError(t, err)

	_, err = f.Wait(context.Background())
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTaskTimeout)
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 100*time.Millisecond, te.Timeout)
	assert.Less(t, elapsed, 600*time.Millisecond, "timeout must fire near the configured ceiling")

	// The stuck worker was replaced; the pool still serves new work.
	assert.Eventually(t, func() bool {
		s := p.Stats()
		return s.TotalWorkers == 1 && s.BusyWorkers == 0
	}, time.Second, 10*time.Millisecond)
}

func TestPool_PerTaskTimeoutOverride(t *testing.T) {
	reg := NewHandlerRegistry()
	require.NoError(t, reg.Register("sleep", func(ctx context.Context, payload any, progress func(int)) (any, error) {
		select {
		case <-time.After(50 * time.Millisecond):
			return "done", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}))

	// Pool default would time the task out; the override gives it room.
	p := newTestPool(t, Config{
		MaxWorkers:  1,
		MinWorkers:  1,
		TaskTimeout: 10 * time.Millisecond,
		MaxRetries:  0,
	}, reg)

	f, err := p.Execute(context.Background(), "sleep", nil, &TaskOptions{Timeout: time.Second})
	require.NoError(t, err)

	value, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", value)
}

func TestPool_CircuitBreaker(t *testing.T) {
	reg := NewHandlerRegistry()
	require.NoError(t, reg.Register("fail", func(ctx context.Context, payload any, progress func(int)) (any, error) {
		return nil, errors.New("boom")
	}))
	require.NoError(t, reg.Register("echo", echoHandler))

	p := newTestPool(t, Config{
		MaxWorkers:     1,
		MinWorkers:     1,
		MaxRetries:     0,
		ErrorThreshold: 3,
		CircuitReset:   200 * time.Millisecond,
	}, reg)

	for i := 0; i < 3; i++ {
		f, err := p.Execute(context.Background(), "fail", nil, nil)
		require.NoError(t, err)
		_, err = f.Wait(context.Background())
		require.Error(t, err)
	}

	// Breaker is open: new submissions are rejected before reaching the queue.
	_, err := p.Execute(context.Background(), "echo", "x", nil)
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, p.Stats().CircuitOpen)
	assert.Equal(t, int64(1), p.Stats().RejectedTasks)

	// After the cooldown the next call closes the breaker and proceeds.
	time.Sleep(250 * time.Millisecond)
	f, err := p.Execute(context.Background(), "echo", "x", nil)
	require.NoError(t, err)
	_, err = f.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, p.Stats().CircuitOpen)
}

func TestPool_WorkerFaultRetriedThenSurfaced(t *testing.T) {
	reg := NewHandlerRegistry()
	require.NoError(t, reg.Register("explode", func(ctx context.Context, payload any, progress func(int)) (any, error) {
		panic("kaboom")
	}))
	require.NoError(t, reg.Register("echo", echoHandler))

	p := newTestPool(t, Config{MaxWorkers: 2, MinWorkers: 1, MaxRetries: 1}, reg)

	f, err := p.Execute(context.Background(), "explode", nil, nil)
	require.NoError(t, err)

	_, err = f.Wait(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWorkerFault)

	// The crashed workers were replaced; the pool still works.
	g, err := p.Execute(context.Background(), "echo", "still alive", nil)
	require.NoError(t, err)
	value, err := g.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "still alive", value)
}

func TestPool_CancelQueuedTask(t *testing.T) {
	reg := NewHandlerRegistry()

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, reg.Register("block", func(ctx context.Context, payload any, progress func(int)) (any, error) {
		close(started)
		<-release
		return nil, nil
	}))
	require.NoError(t, reg.Register("echo", echoHandler))

	p := newTestPool(t, Config{MaxWorkers: 1, MinWorkers: 1}, reg)

	blocker, err := p.Execute(context.Background(), "block", nil, nil)
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	f, err := p.Execute(ctx, "echo", "never runs", nil)
	require.NoError(t, err)

	cancel()
	_, err = f.Wait(context.Background())
	assert.ErrorIs(t, err, ErrTaskCancelled)

	close(release)
	_, err = blocker.Wait(context.Background())
	require.NoError(t, err)
}

func TestPool_CancelInFlightTask(t *testing.T) {
	reg := NewHandlerRegistry()

	started := make(chan struct{})
	require.NoError(t, reg.Register("wait", func(ctx context.Context, payload any, progress func(int)) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	require.NoError(t, reg.Register("echo", echoHandler))

	p := newTestPool(t, Config{MaxWorkers: 1, MinWorkers: 1}, reg)

	ctx, cancel := context.WithCancel(context.Background())
	f, err := p.Execute(ctx, "wait", nil, nil)
	require.NoError(t, err)
	<-started

	cancel()
	_, err = f.Wait(context.Background())
	assert.ErrorIs(t, err, ErrTaskCancelled)

	// The worker is released once its discarded reply arrives.
	g, err := p.Execute(context.Background(), "echo", "next", nil)
	require.NoError(t, err)
	value, err := g.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "next", value)
}

func TestPool_ProgressReporting(t *testing.T) {
	reg := NewHandlerRegistry()
	require.NoError(t, reg.Register("steps", func(ctx context.Context, payload any, progress func(int)) (any, error) {
		progress(25)
		progress(50)
		progress(100)
		return nil, nil
	}))

	p := newTestPool(t, Config{MaxWorkers: 1, MinWorkers: 1}, reg)

	var mu sync.Mutex
	var reports []int
	f, err := p.Execute(context.Background(), "steps", nil, &TaskOptions{
		OnProgress: func(pct int) {
			mu.Lock()
			reports = append(reports, pct)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	_, err = f.Wait(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{25, 50, 100}, reports)
}

func TestPool_Terminate(t *testing.T) {
	reg := NewHandlerRegistry()

	var started sync.WaitGroup
	started.Add(2)
	release := make(chan struct{})
	require.NoError(t, reg.Register("block", func(ctx context.Context, payload any, progress func(int)) (any, error) {
		started.Done()
		<-release
		return nil, nil
	}))
	defer close(release)

	p := newTestPool(t, Config{MaxWorkers: 2, MinWorkers: 2}, reg)

	// Two in-flight, three queued.
	var futures []*Future
	for i := 0; i < 5; i++ {
		f, err := p.Execute(context.Background(), "block", i, nil)
		require.NoError(t, err)
		futures = append(futures, f)
	}
	started.Wait()

	p.Terminate()

	for _, f := range futures {
		_, err := f.Wait(context.Background())
		assert.ErrorIs(t, err, ErrPoolTerminated)
	}

	stats := p.Stats()
	assert.Equal(t, 0, stats.TotalWorkers)
	assert.Equal(t, 0, stats.BusyWorkers)
	assert.Equal(t, 0, stats.QueueLength)

	_, err := p.Execute(context.Background(), "block", nil, nil)
	assert.ErrorIs(t, err, ErrPoolTerminated)
}

func TestPool_TerminateIsIdempotent(t *testing.T) {
	p := newTestPool(t, Config{MaxWorkers: 1, MinWorkers: 1}, NewHandlerRegistry())

	p.Terminate()
	p.Terminate()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Terminate()
		}()
	}
	wg.Wait()
}

func TestPool_IdleWorkersReaped(t *testing.T) {
	reg := NewHandlerRegistry()

	var started sync.WaitGroup
	started.Add(3)
	release := make(chan struct{})
	require.NoError(t, reg.Register("block", func(ctx context.Context, payload any, progress func(int)) (any, error) {
		started.Done()
		<-release
		return nil, nil
	}))

	p := newTestPool(t, Config{
		MaxWorkers:   3,
		MinWorkers:   1,
		IdleTimeout:  60 * time.Millisecond,
		ReapInterval: 20 * time.Millisecond,
	}, reg)

	// Saturate so the pool scales to three workers.
	var futures []*Future
	for i := 0; i < 3; i++ {
		f, err := p.Execute(context.Background(), "block", i, nil)
		require.NoError(t, err)
		futures = append(futures, f)
	}
	started.Wait()
	assert.Equal(t, 3, p.Stats().TotalWorkers)

	close(release)
	for _, f := range futures {
		_, err := f.Wait(context.Background())
		require.NoError(t, err)
	}

	// Idle workers beyond MinWorkers are reclaimed; the floor is kept.
	assert.Eventually(t, func() bool {
		return p.Stats().TotalWorkers == 1
	}, 2*time.Second, 20*time.Millisecond)

	// The floor worker is never reaped, however long it idles.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, p.Stats().TotalWorkers)
}

func TestPool_ExecuteAll(t *testing.T) {
	reg := NewHandlerRegistry()
	require.NoError(t, reg.Register("double", func(ctx context.Context, payload any, progress func(int)) (any, error) {
		return payload.(int) * 2, nil
	}))

	p := newTestPool(t, Config{MaxWorkers: 4, MinWorkers: 2}, reg)

	specs := []TaskSpec{
		{Type: "double", Payload: 1},
		{Type: "double", Payload: 2},
		{Type: "double", Payload: 3},
	}

	results, err := p.ExecuteAll(context.Background(), specs, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{2, 4, 6}, results)
}

func TestPool_ExecuteAllReportsFirstFailure(t *testing.T) {
	reg := NewHandlerRegistry()
	require.NoError(t, reg.Register("echo", echoHandler))
	require.NoError(t, reg.Register("fail", func(ctx context.Context, payload any, progress func(int)) (any, error) {
		return nil, errors.New("boom")
	}))

	p := newTestPool(t, Config{MaxWorkers: 2, MinWorkers: 1, MaxRetries: 0}, reg)

	_, err := p.ExecuteAll(context.Background(), []TaskSpec{
		{Type: "echo", Payload: "ok"},
		{Type: "fail"},
		{Type: "echo", Payload: "ok"},
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTaskFailed)
}

func TestPool_ExecuteBatchHonorsConcurrencyCeiling(t *testing.T) {
	reg := NewHandlerRegistry()

	var inflight, peak atomic.Int32
	require.NoError(t, reg.Register("track", func(ctx context.Context, payload any, progress func(int)) (any, error) {
		n := inflight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inflight.Add(-1)
		return payload, nil
	}))

	// More workers than the batch ceiling: the semaphore, not the pool,
	// must bound concurrency.
	p := newTestPool(t, Config{MaxWorkers: 4, MinWorkers: 4}, reg)

	specs := make([]TaskSpec, 8)
	for i := range specs {
		specs[i] = TaskSpec{Type: "track", Payload: i}
	}

	results, err := p.ExecuteBatch(context.Background(), specs, 2, nil)
	require.NoError(t, err)
	assert.Len(t, results, 8)
	for i, r := range results {
		assert.Equal(t, i, r)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPool_StatsSnapshot(t *testing.T) {
	reg := NewHandlerRegistry()
	require.NoError(t, reg.Register("echo", echoHandler))

	p := newTestPool(t, Config{MaxWorkers: 2, MinWorkers: 2}, reg)

	for i := 0; i < 4; i++ {
		f, err := p.Execute(context.Background(), "echo", i, nil)
		require.NoError(t, err)
		_, err = f.Wait(context.Background())
		require.NoError(t, err)
	}

	stats := p.Stats()
	assert.Equal(t, 2, stats.TotalWorkers)
	assert.LessOrEqual(t, stats.BusyWorkers, stats.TotalWorkers)
	assert.Equal(t, int64(4), stats.CompletedTasks)
	assert.Greater(t, stats.Uptime, time.Duration(0))
	assert.False(t, stats.CircuitOpen)
}

func TestPool_InvalidConfigRejected(t *testing.T) {
	_, err := New(Config{MinWorkers: 5, MaxWorkers: 2}, NewHandlerRegistry(), testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min workers")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.GreaterOrEqual(t, cfg.MaxWorkers, 4)
	assert.Equal(t, 1, cfg.MinWorkers)
	assert.Equal(t, 30*time.Second, cfg.TaskTimeout)
	assert.Equal(t, 60*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, 5, cfg.ErrorThreshold)
	assert.Equal(t, 30*time.Second, cfg.CircuitReset)
}

func TestPool_EverySubmittedTaskSettles(t *testing.T) {
	reg := NewHandlerRegistry()
	require.NoError(t, reg.Register("mixed", func(ctx context.Context, payload any, progress func(int)) (any, error) {
		if payload.(int)%3 == 0 {
			return nil, fmt.Errorf("unlucky %d", payload)
		}
		return payload, nil
	}))

	p := newTestPool(t, Config{MaxWorkers: 4, MinWorkers: 2, MaxRetries: 1, ErrorThreshold: 1000}, reg)

	var futures []*Future
	for i := 1; i <= 30; i++ {
		f, err := p.Execute(context.Background(), "mixed", i, nil)
		require.NoError(t, err)
		futures = append(futures, f)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, f := range futures {
		_, err := f.Wait(ctx)
		require.NotErrorIs(t, err, context.DeadlineExceeded, "every task must settle")
	}
}
