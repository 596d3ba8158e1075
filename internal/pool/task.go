package pool

import (
	"context"
	"time"
)

// TaskSpec names one unit of work for the aggregate helpers ExecuteAll and
// ExecuteBatch.
type TaskSpec struct {
	Type    string
	Payload any
}

// TaskOptions carries the per-submission overrides accepted by Execute.
// The zero value means: default priority, pool-default timeout, no
// progress reporting.
type TaskOptions struct {
	// Priority orders dispatch; higher runs sooner. Ties are broken by
	// arrival order.
	Priority int

	// Timeout overrides the pool's TaskTimeout for this task.
	Timeout time.Duration

	// OnProgress, when set, receives 0-100 progress values reported by the
	// handler. It is invoked from the pool's run loop and must be cheap.
	OnProgress func(int)
}

type taskState int

const (
	taskQueued taskState = iota
	taskDispatched
	taskSettled
)

// task is the pool-internal record for one submission: the immutable
// description plus the mutable execution bookkeeping. It is owned by the
// queue until dispatched, then by the assigned worker until settled, and
// is only ever mutated by the run loop.
type task struct {
	id       uint64
	taskType string
	payload  any
	priority int
	timeout  time.Duration
	queuedAt time.Time

	retryCount int
	maxRetries int

	onProgress func(int)
	ctx        context.Context // caller's cancellation token
	future     *Future

	state   taskState
	attempt int // incremented per dispatch; stale worker messages carry old values

	// per-dispatch state, reset on retry
	workerID       string
	dispatchedAt   time.Time
	timer          *time.Timer
	cancelDispatch context.CancelFunc

	// heap bookkeeping
	seq   uint64 // insertion order, reassigned on re-enqueue
	index int
}

// settled reports whether the task's future has already been resolved.
func (t *task) settled() bool { return t.state == taskSettled }

// clearDispatch stops the timeout timer and cancels the per-attempt
// context, if any.
func (t *task) clearDispatch() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.cancelDispatch != nil {
		t.cancelDispatch()
		t.cancelDispatch = nil
	}
}
