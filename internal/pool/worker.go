package pool

import (
	"context"
	"log/slog"
	"time"
)

// taskMsg is the pool -> worker message: run this payload for this task.
// The attempt number is echoed back in every reply so the run loop can
// discard messages from dispatches it has since abandoned.
type taskMsg struct {
	taskID   uint64
	attempt  int
	taskType string
	payload  any
	ctx      context.Context
}

// Worker -> pool messages. Exactly one of resultMsg or errorMsg terminates
// a given attempt; a faultMsg terminates both the attempt and the worker.
type resultMsg struct {
	workerID string
	taskID   uint64
	attempt  int
	value    any
}

type errorMsg struct {
	workerID string
	taskID   uint64
	attempt  int
	err      error
}

type faultMsg struct {
	workerID string
	taskID   uint64
	attempt  int
	value    any // recovered panic value
}

type progressMsg struct {
	workerID string
	taskID   uint64
	attempt  int
	progress int
}

// workerState is the run loop's registry entry for one worker. Only the
// run loop reads or writes it.
type workerState struct {
	id          string
	in          chan taskMsg
	busy        bool
	currentTask uint64
	lastUsedAt  time.Time
	errorCount  int // consecutive failures, reset on success
	spawnedAt   time.Time
}

// worker is the execution side: a long-lived goroutine that receives one
// task at a time on its in channel and replies through the shared events
// channel. It holds no reference to pool state beyond those two channels.
type worker struct {
	id       string
	in       <-chan taskMsg
	events   chan<- event
	done     <-chan struct{}
	handlers *HandlerRegistry
	logger   *slog.Logger
}

// run executes tasks until the in channel is closed or a task panics. A
// panic is reported as a faultMsg and ends the goroutine; the run loop
// removes the worker and spawns a replacement as needed.
func (w *worker) run() {
	for msg := range w.in {
		if !w.execute(msg) {
			return
		}
	}
}

// execute runs one task and sends exactly one terminal message. It returns
// false when the worker must terminate because the handler panicked.
func (w *worker) execute(msg taskMsg) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("handler panicked",
				"worker_id", w.id,
				"task_id", msg.taskID,
				"task_type", msg.taskType,
				"panic", r)
			w.send(faultMsg{workerID: w.id, taskID: msg.taskID, attempt: msg.attempt, value: r})
			ok = false
		}
	}()

	handler, found := w.handlers.Get(msg.taskType)
	if !found {
		// Admission rejects unknown types; reaching this means the
		// registry lost a binding mid-flight.
		w.send(errorMsg{
			workerID: w.id,
			taskID:   msg.taskID,
			attempt:  msg.attempt,
			err:      ErrUnknownTaskType,
		})
		return true
	}

	progress := func(pct int) {
		if pct < 0 {
			pct = 0
		} else if pct > 100 {
			pct = 100
		}
		w.send(progressMsg{workerID: w.id, taskID: msg.taskID, attempt: msg.attempt, progress: pct})
	}

	value, err := handler(msg.ctx, msg.payload, progress)
	if err != nil {
		w.send(errorMsg{workerID: w.id, taskID: msg.taskID, attempt: msg.attempt, err: err})
	} else {
		w.send(resultMsg{workerID: w.id, taskID: msg.taskID, attempt: msg.attempt, value: value})
	}
	return true
}

// send delivers a message to the run loop unless the pool has shut down.
func (w *worker) send(ev event) {
	select {
	case w.events <- ev:
	case <-w.done:
	}
}
