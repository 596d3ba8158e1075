// Package journal records task settlements for after-the-fact inspection.
// The execution pool itself is persistence-free; journaling is an observer
// applied at the service layer, after a task's future settles.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/taskmill/taskmill/internal/pool"
)

// Outcome classifies how a task settled.
type Outcome string

const (
	OutcomeSucceeded  Outcome = "succeeded"
	OutcomeFailed     Outcome = "failed"
	OutcomeTimedOut   Outcome = "timed_out"
	OutcomeCancelled  Outcome = "cancelled"
	OutcomeTerminated Outcome = "terminated"
)

// Record is one settled task.
type Record struct {
	// TaskID is the identifier the pool assigned to the task.
	TaskID uint64

	// TaskType names the handler that ran the task.
	TaskType string

	// Priority is the submission priority.
	Priority int

	// Attempts is how many execution attempts the task consumed.
	Attempts int

	// Outcome classifies the settlement.
	Outcome Outcome

	// Error holds the settlement error text, empty on success.
	Error string

	// SubmittedAt and SettledAt bracket the task's lifetime.
	SubmittedAt time.Time
	SettledAt   time.Time
}

// Latency is the wall-clock time from submission to settlement.
func (r Record) Latency() time.Duration {
	return r.SettledAt.Sub(r.SubmittedAt)
}

// Journal persists settlement records.
type Journal interface {
	// Append writes one settlement record.
	Append(ctx context.Context, rec Record) error

	// Recent returns the most recent records, newest first, up to limit.
	Recent(ctx context.Context, limit int) ([]Record, error)

	// Close releases any underlying resources.
	Close() error
}

// OutcomeForError maps a settlement error to its outcome class.
func OutcomeForError(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSucceeded
	case errors.Is(err, pool.ErrTaskTimeout):
		return OutcomeTimedOut
	case errors.Is(err, pool.ErrTaskCancelled):
		return OutcomeCancelled
	case errors.Is(err, pool.ErrPoolTerminated):
		return OutcomeTerminated
	default:
		return OutcomeFailed
	}
}
