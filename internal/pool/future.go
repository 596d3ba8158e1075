package pool

import "context"

// Future is the pending result of a submitted task. It settles exactly
// once: with a value on success, or with one of the error kinds defined in
// errors.go. Settlement is performed only by the pool's run loop.
type Future struct {
	taskID   uint64
	done     chan struct{}
	value    any
	err      error
	attempts int
}

func newFuture(taskID uint64) *Future {
	return &Future{
		taskID: taskID,
		done:   make(chan struct{}),
	}
}

// TaskID returns the identifier the pool assigned to the task.
func (f *Future) TaskID() uint64 { return f.taskID }

// Done returns a channel closed when the task has settled.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the task settles or ctx expires. A ctx expiry only
// abandons the wait; the task itself keeps running and the Future can be
// waited on again.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Attempts reports how many execution attempts the task consumed. It is
// only meaningful after the Future has settled; a task rejected or
// terminated before dispatch reports zero.
func (f *Future) Attempts() int {
	select {
	case <-f.done:
		return f.attempts
	default:
		return 0
	}
}

// settle records the outcome and releases waiters. Callers (the run loop)
// guarantee it is invoked at most once per future.
func (f *Future) settle(value any, err error, attempts int) {
	f.value = value
	f.err = err
	f.attempts = attempts
	close(f.done)
}
