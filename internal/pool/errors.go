package pool

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by pool admission and settlement. All task
// failures surface as (or wrap) one of these kinds; nothing is silently
// swallowed.
var (
	// ErrCircuitOpen rejects new submissions while the circuit breaker is open.
	ErrCircuitOpen = errors.New("pool: circuit breaker open")

	// ErrPoolTerminated rejects submissions after Terminate and settles
	// every task outstanding when Terminate is called.
	ErrPoolTerminated = errors.New("pool: terminated")

	// ErrTaskCancelled settles a task whose cancellation context fired
	// before it produced a result.
	ErrTaskCancelled = errors.New("pool: task cancelled")

	// ErrUnknownTaskType rejects submissions for task types with no
	// registered handler.
	ErrUnknownTaskType = errors.New("pool: no handler registered for task type")

	// ErrTaskTimeout is matched by errors.Is against TimeoutError values.
	ErrTaskTimeout = errors.New("pool: task timed out")

	// ErrTaskFailed is matched by errors.Is against ExecutionError values.
	ErrTaskFailed = errors.New("pool: task execution failed")

	// ErrWorkerFault is matched by errors.Is against FaultError values.
	ErrWorkerFault = errors.New("pool: worker fault")
)

// TimeoutError settles a task whose handler produced no terminal message
// within its timeout. The worker that held the task is forcibly replaced.
type TimeoutError struct {
	TaskID  uint64
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("pool: task %d timed out after %s", e.TaskID, e.Timeout)
}

// Is reports a match for ErrTaskTimeout so callers can classify timeouts
// without depending on the concrete type.
func (e *TimeoutError) Is(target error) bool { return target == ErrTaskTimeout }

// ExecutionError settles a task whose handler returned an error on its
// final attempt. The handler's error is preserved for unwrapping.
type ExecutionError struct {
	TaskID   uint64
	TaskType string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("pool: task %d (%s) failed: %v", e.TaskID, e.TaskType, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func (e *ExecutionError) Is(target error) bool { return target == ErrTaskFailed }

// FaultError settles a task whose worker panicked while executing it.
// The worker is terminated and removed from the registry.
type FaultError struct {
	TaskID uint64
	Value  any
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("pool: worker fault while running task %d: %v", e.TaskID, e.Value)
}

func (e *FaultError) Is(target error) bool { return target == ErrWorkerFault }
