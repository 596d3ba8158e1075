package journal

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/taskmill/taskmill/internal/pool"
)

func TestOutcomeForError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Outcome
	}{
		{"success", nil, OutcomeSucceeded},
		{"timeout", fmt.Errorf("task 4: %w", pool.ErrTaskTimeout), OutcomeTimedOut},
		{"cancelled", pool.ErrTaskCancelled, OutcomeCancelled},
		{"terminated", pool.ErrPoolTerminated, OutcomeTerminated},
		{"handler error", fmt.Errorf("%w: boom", pool.ErrTaskFailed), OutcomeFailed},
		{"worker fault", pool.ErrWorkerFault, OutcomeFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, OutcomeForError(tc.err))
		})
	}
}

func TestRecordLatency(t *testing.T) {
	submitted := time.Now()
	rec := Record{SubmittedAt: submitted, SettledAt: submitted.Add(250 * time.Millisecond)}
	assert.Equal(t, 250*time.Millisecond, rec.Latency())
}

func TestNoopJournal(t *testing.T) {
	j := NewNoop()
	assert.NoError(t, j.Append(context.Background(), Record{TaskID: 1}))
	recs, err := j.Recent(context.Background(), 10)
	assert.NoError(t, err)
	assert.Empty(t, recs)
	assert.NoError(t, j.Close())
}
