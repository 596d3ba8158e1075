package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// maxWorkerConsecutiveErrors is the number of consecutive task failures
// after which a worker is proactively replaced to recover from a poisoned
// execution state.
const maxWorkerConsecutiveErrors = 3

// event is a message consumed by the run loop: worker replies, timer
// fires, and cancellation notices.
type event any

type timeoutEvent struct {
	taskID  uint64
	attempt int
}

type cancelEvent struct {
	taskID uint64
}

type submitRequest struct {
	taskType string
	payload  any
	opts     TaskOptions
	ctx      context.Context
	reply    chan submitResult
}

type submitResult struct {
	future *Future
	err    error
}

// Pool schedules tasks across a bounded set of workers. All bookkeeping
// (queue, registry, breaker, task records) is owned by a single run-loop
// goroutine; public methods communicate with it over channels, and workers
// share no memory with the pool beyond their message channels.
type Pool struct {
	cfg      Config
	handlers *HandlerRegistry
	logger   *slog.Logger

	submitCh chan *submitRequest
	events   chan event
	statsCh  chan chan Stats
	termCh   chan chan struct{}
	done     chan struct{}

	collector  *statsCollector
	terminated atomic.Bool
	termOnce   sync.Once
	finalStats Stats // written by the run loop before done is closed

	// run-loop-owned state; never touched outside the loop goroutine
	// (except during New, before the loop starts).
	queue      *taskQueue
	workers    map[string]*workerState
	tasks      map[uint64]*task // unsettled tasks, plus settled ones awaiting worker release
	breaker    *breaker
	nextTaskID uint64
}

// New constructs a pool, eagerly spawns MinWorkers workers, and starts the
// run loop. The handler registry may keep receiving registrations until
// the first submission of each type.
func New(cfg Config, handlers *HandlerRegistry, logger *slog.Logger) (*Pool, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if handlers == nil {
		handlers = NewHandlerRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{
		cfg:        cfg,
		handlers:   handlers,
		logger:     logger,
		submitCh:   make(chan *submitRequest),
		events:     make(chan event, 128),
		statsCh:    make(chan chan Stats),
		termCh:     make(chan chan struct{}),
		done:       make(chan struct{}),
		collector:  newStatsCollector(),
		queue:      newTaskQueue(),
		workers:    make(map[string]*workerState),
		tasks:      make(map[uint64]*task),
		breaker:    newBreaker(cfg.ErrorThreshold, cfg.CircuitReset),
		nextTaskID: 1,
	}

	for i := 0; i < cfg.MinWorkers; i++ {
		p.spawnWorker()
	}

	go p.run()

	p.logger.Info("pool started",
		"min_workers", cfg.MinWorkers,
		"max_workers", cfg.MaxWorkers,
		"task_timeout", cfg.TaskTimeout,
		"max_retries", cfg.MaxRetries)

	return p, nil
}

// Execute submits one task and returns a Future that settles when the
// task completes, fails terminally, or is cancelled. It rejects
// synchronously with ErrCircuitOpen, ErrPoolTerminated, or
// ErrUnknownTaskType. ctx is the task's cancellation token: cancelling it
// removes the task from the queue, or discards its in-flight result.
func (p *Pool) Execute(ctx context.Context, taskType string, payload any, opts *TaskOptions) (*Future, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if p.terminated.Load() {
		return nil, ErrPoolTerminated
	}
	if !p.handlers.Has(taskType) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTaskType, taskType)
	}

	var options TaskOptions
	if opts != nil {
		options = *opts
	}

	req := &submitRequest{
		taskType: taskType,
		payload:  payload,
		opts:     options,
		ctx:      ctx,
		reply:    make(chan submitResult, 1),
	}

	select {
	case p.submitCh <- req:
	case <-p.done:
		return nil, ErrPoolTerminated
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrTaskCancelled, ctx.Err())
	}

	res := <-req.reply
	if res.err != nil {
		return nil, res.err
	}

	// Watch the cancellation token for as long as the task is unsettled.
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				p.postEvent(cancelEvent{taskID: res.future.taskID})
			case <-res.future.done:
			}
		}()
	}

	return res.future, nil
}

// Stats returns a snapshot of the pool's current state. After Terminate it
// returns the final snapshot taken during teardown.
func (p *Pool) Stats() Stats {
	reply := make(chan Stats, 1)
	select {
	case p.statsCh <- reply:
		return <-reply
	case <-p.done:
		return p.finalStats
	}
}

// Terminate settles every outstanding task with ErrPoolTerminated,
// destroys all workers, and stops the run loop. It is idempotent and safe
// to call concurrently; the pool is unusable afterward.
func (p *Pool) Terminate() {
	p.termOnce.Do(func() {
		reply := make(chan struct{})
		select {
		case p.termCh <- reply:
			<-reply
		case <-p.done:
		}
	})
	<-p.done
}

// postEvent delivers an event to the run loop, dropping it if the pool has
// already shut down.
func (p *Pool) postEvent(ev event) {
	select {
	case p.events <- ev:
	case <-p.done:
	}
}

// run is the pool's single logical thread: every mutation of queue,
// registry, and breaker state happens here, one event at a time. After
// each event the dispatcher drains queued work onto idle workers.
func (p *Pool) run() {
	reaper := time.NewTicker(p.cfg.ReapInterval)
	defer reaper.Stop()

	for {
		select {
		case req := <-p.submitCh:
			p.handleSubmit(req)
		case ev := <-p.events:
			p.handleEvent(ev)
		case <-reaper.C:
			p.reap(time.Now())
		case reply := <-p.statsCh:
			reply <- p.collector.snapshot(len(p.workers), p.busyCount(), p.queue.len(), p.breaker.isOpen())
		case reply := <-p.termCh:
			p.shutdown(reply)
			return
		}
		p.dispatch(time.Now())
	}
}

func (p *Pool) handleEvent(ev event) {
	now := time.Now()
	switch msg := ev.(type) {
	case resultMsg:
		p.handleResult(msg, now)
	case errorMsg:
		p.handleError(msg, now)
	case faultMsg:
		p.handleFault(msg, now)
	case progressMsg:
		p.handleProgress(msg)
	case timeoutEvent:
		p.handleTimeout(msg, now)
	case cancelEvent:
		p.handleCancel(msg)
	}
}

// handleSubmit admits one task: breaker check, record construction, queue
// insertion at the position its priority dictates.
func (p *Pool) handleSubmit(req *submitRequest) {
	now := time.Now()

	if !p.breaker.allow(now) {
		p.collector.recordRejection()
		p.logger.Warn("submission rejected, circuit open", "task_type", req.taskType)
		req.reply <- submitResult{err: ErrCircuitOpen}
		return
	}

	timeout := req.opts.Timeout
	if timeout <= 0 {
		timeout = p.cfg.TaskTimeout
	}

	id := p.nextTaskID
	p.nextTaskID++

	t := &task{
		id:         id,
		taskType:   req.taskType,
		payload:    req.payload,
		priority:   req.opts.Priority,
		timeout:    timeout,
		queuedAt:   now,
		maxRetries: p.cfg.MaxRetries,
		onProgress: req.opts.OnProgress,
		ctx:        req.ctx,
		future:     newFuture(id),
		state:      taskQueued,
		index:      -1,
	}

	p.tasks[id] = t
	p.queue.push(t)

	p.logger.Debug("task queued",
		"task_id", id,
		"task_type", t.taskType,
		"priority", t.priority,
		"queue_len", p.queue.len())

	req.reply <- submitResult{future: t.future}
}

// dispatch matches queued tasks to idle workers, spawning new workers up
// to MaxWorkers when none are idle. It runs after every event so queued
// work drains without external polling.
func (p *Pool) dispatch(now time.Time) {
	for p.queue.len() > 0 {
		w := p.idleWorker()
		if w == nil {
			if len(p.workers) >= p.cfg.MaxWorkers {
				return
			}
			w = p.spawnWorker()
		}

		t := p.queue.pop()
		if t == nil {
			return
		}

		// Skip tasks whose cancellation token fired while queued.
		if t.ctx.Err() != nil {
			p.settle(t, nil, fmt.Errorf("%w: task %d", ErrTaskCancelled, t.id))
			delete(p.tasks, t.id)
			continue
		}

		p.assign(w, t, now)
	}
}

// assign marks the worker busy, arms the timeout timer, and sends the task
// message. The worker's channel has capacity one and the worker is idle,
// so the send never blocks the loop.
func (p *Pool) assign(w *workerState, t *task, now time.Time) {
	t.attempt++
	t.state = taskDispatched
	t.workerID = w.id
	t.dispatchedAt = now

	dctx, cancel := context.WithCancel(t.ctx)
	t.cancelDispatch = cancel

	id, attempt := t.id, t.attempt
	t.timer = time.AfterFunc(t.timeout, func() {
		p.postEvent(timeoutEvent{taskID: id, attempt: attempt})
	})

	w.busy = true
	w.currentTask = t.id
	w.lastUsedAt = now
	w.in <- taskMsg{taskID: t.id, attempt: attempt, taskType: t.taskType, payload: t.payload, ctx: dctx}

	p.logger.Debug("task dispatched",
		"task_id", t.id,
		"task_type", t.taskType,
		"worker_id", w.id,
		"attempt", attempt)
}

// handleResult settles a successful attempt and releases the worker.
func (p *Pool) handleResult(msg resultMsg, now time.Time) {
	t, ok := p.tasks[msg.taskID]
	if !ok || t.attempt != msg.attempt || t.workerID != msg.workerID {
		return // stale reply from an abandoned dispatch
	}

	if w, found := p.workers[msg.workerID]; found {
		w.busy = false
		w.currentTask = 0
		w.lastUsedAt = now
		w.errorCount = 0
	}

	t.clearDispatch()
	if !t.settled() {
		p.settle(t, msg.value, nil)
		p.collector.recordCompletion(now.Sub(t.dispatchedAt))
		p.logger.Debug("task completed",
			"task_id", t.id,
			"task_type", t.taskType,
			"latency", now.Sub(t.dispatchedAt))
	}
	delete(p.tasks, t.id)
}

// handleError releases the worker, counts the failure against it, and
// retries or terminally fails the task.
func (p *Pool) handleError(msg errorMsg, now time.Time) {
	t, ok := p.tasks[msg.taskID]
	if !ok || t.attempt != msg.attempt || t.workerID != msg.workerID {
		return
	}

	if w, found := p.workers[msg.workerID]; found {
		w.busy = false
		w.currentTask = 0
		w.lastUsedAt = now
		if !t.settled() {
			w.errorCount++
			if w.errorCount >= maxWorkerConsecutiveErrors {
				p.logger.Warn("replacing worker after consecutive errors",
					"worker_id", w.id,
					"error_count", w.errorCount)
				p.removeWorker(w)
				p.spawnWorker()
			}
		}
	}

	t.clearDispatch()
	if t.settled() {
		// Cancelled while in flight; the result is discarded by design.
		delete(p.tasks, t.id)
		return
	}

	p.retryOrFail(t, &ExecutionError{TaskID: t.id, TaskType: t.taskType, Err: msg.err}, now)
}

// handleFault removes the crashed worker (its goroutine has already
// exited), restores the MinWorkers floor, and retries or fails the task it
// held.
func (p *Pool) handleFault(msg faultMsg, now time.Time) {
	if w, found := p.workers[msg.workerID]; found {
		p.removeWorker(w)
	}
	p.ensureMinWorkers()

	t, ok := p.tasks[msg.taskID]
	if !ok || t.attempt != msg.attempt || t.workerID != msg.workerID {
		return
	}

	t.clearDispatch()
	if t.settled() {
		delete(p.tasks, t.id)
		return
	}

	p.retryOrFail(t, &FaultError{TaskID: t.id, Value: msg.value}, now)
}

// handleProgress forwards a progress report to the task's callback.
func (p *Pool) handleProgress(msg progressMsg) {
	t, ok := p.tasks[msg.taskID]
	if !ok || t.attempt != msg.attempt || t.settled() || t.onProgress == nil {
		return
	}
	t.onProgress(msg.progress)
}

// handleTimeout fires when no terminal message arrived within the task's
// timeout. The worker that held it may be stuck in an infinite loop, so it
// is forcibly replaced rather than waited on.
func (p *Pool) handleTimeout(ev timeoutEvent, now time.Time) {
	t, ok := p.tasks[ev.taskID]
	if !ok || t.attempt != ev.attempt || t.workerID == "" {
		return
	}

	if w, found := p.workers[t.workerID]; found && w.currentTask == t.id {
		p.logger.Warn("replacing worker holding timed-out task",
			"worker_id", w.id,
			"task_id", t.id,
			"timeout", t.timeout)
		p.removeWorker(w)
		p.spawnWorker()
	}

	t.clearDispatch()
	t.workerID = ""
	if t.settled() {
		delete(p.tasks, t.id)
		return
	}

	p.retryOrFail(t, &TimeoutError{TaskID: t.id, Timeout: t.timeout}, now)
}

// handleCancel processes a fired cancellation token: a queued task is
// removed and settled immediately; a dispatched task settles early while
// its worker runs on, with the eventual reply discarded.
func (p *Pool) handleCancel(ev cancelEvent) {
	t, ok := p.tasks[ev.taskID]
	if !ok || t.settled() {
		return
	}

	cancelErr := fmt.Errorf("%w: task %d", ErrTaskCancelled, t.id)

	switch t.state {
	case taskQueued:
		p.queue.remove(t)
		p.settle(t, nil, cancelErr)
		delete(p.tasks, t.id)
	case taskDispatched:
		p.settle(t, nil, cancelErr)
		if t.cancelDispatch != nil {
			// Signal the handler; the timeout timer keeps running so a
			// stuck worker is still replaced.
			t.cancelDispatch()
		}
	}
}

// retryOrFail re-enqueues the task at its original priority while retries
// remain, otherwise settles it terminally and records the failure against
// the circuit breaker. The caller has already released or removed the
// worker that held the task.
func (p *Pool) retryOrFail(t *task, failure error, now time.Time) {
	if t.retryCount < t.maxRetries {
		t.retryCount++
		t.state = taskQueued
		t.workerID = ""
		p.queue.push(t)
		p.logger.Debug("task requeued for retry",
			"task_id", t.id,
			"task_type", t.taskType,
			"retry", t.retryCount,
			"max_retries", t.maxRetries,
			"error", failure)
		return
	}

	p.settle(t, nil, failure)
	p.breaker.recordFailure(now)
	p.collector.recordFailure()
	delete(p.tasks, t.id)

	p.logger.Error("task failed terminally",
		"task_id", t.id,
		"task_type", t.taskType,
		"attempts", t.attempt,
		"error", failure)
	if p.breaker.isOpen() {
		p.logger.Warn("circuit breaker opened",
			"error_threshold", p.cfg.ErrorThreshold,
			"reset_after", p.cfg.CircuitReset)
	}
}

// settle resolves the task's future exactly once.
func (p *Pool) settle(t *task, value any, err error) {
	if t.settled() {
		return
	}
	t.state = taskSettled
	t.future.settle(value, err, t.attempt)
}

// reap terminates workers idle longer than IdleTimeout while the registry
// stays above the MinWorkers floor.
func (p *Pool) reap(now time.Time) {
	for _, w := range p.workers {
		if len(p.workers) <= p.cfg.MinWorkers {
			return
		}
		if !w.busy && now.Sub(w.lastUsedAt) >= p.cfg.IdleTimeout {
			p.logger.Debug("reaping idle worker",
				"worker_id", w.id,
				"idle_for", now.Sub(w.lastUsedAt))
			p.removeWorker(w)
		}
	}
}

// shutdown settles everything outstanding with ErrPoolTerminated, destroys
// all workers, and freezes the final stats snapshot.
func (p *Pool) shutdown(reply chan struct{}) {
	queued := p.queue.len()
	inflight := len(p.tasks) - queued

	for t := p.queue.pop(); t != nil; t = p.queue.pop() {
		p.settle(t, nil, fmt.Errorf("%w: task %d", ErrPoolTerminated, t.id))
		delete(p.tasks, t.id)
	}
	for id, t := range p.tasks {
		t.clearDispatch()
		p.settle(t, nil, fmt.Errorf("%w: task %d", ErrPoolTerminated, t.id))
		delete(p.tasks, id)
	}
	for _, w := range p.workers {
		p.removeWorker(w)
	}

	p.finalStats = p.collector.snapshot(0, 0, 0, p.breaker.isOpen())
	p.terminated.Store(true)

	p.logger.Info("pool terminated",
		"queued_settled", queued,
		"inflight_settled", inflight)

	close(reply)
	close(p.done)
}

// spawnWorker creates a worker, registers it, and starts its goroutine.
func (p *Pool) spawnWorker() *workerState {
	id := uuid.New().String()
	now := time.Now()
	w := &workerState{
		id:         id,
		in:         make(chan taskMsg, 1),
		lastUsedAt: now,
		spawnedAt:  now,
	}
	p.workers[id] = w

	exec := &worker{
		id:       id,
		in:       w.in,
		events:   p.events,
		done:     p.done,
		handlers: p.handlers,
		logger:   p.logger,
	}
	go exec.run()

	p.logger.Debug("worker spawned", "worker_id", id, "total_workers", len(p.workers))
	return w
}

// removeWorker closes the worker's channel and drops it from the registry.
// A stuck worker keeps running until its handler returns; its reply is
// then discarded as stale.
func (p *Pool) removeWorker(w *workerState) {
	close(w.in)
	delete(p.workers, w.id)
}

// ensureMinWorkers refills the registry up to the MinWorkers floor.
func (p *Pool) ensureMinWorkers() {
	for len(p.workers) < p.cfg.MinWorkers {
		p.spawnWorker()
	}
}

// idleWorker returns any non-busy worker, or nil.
func (p *Pool) idleWorker() *workerState {
	for _, w := range p.workers {
		if !w.busy {
			return w
		}
	}
	return nil
}

func (p *Pool) busyCount() int {
	n := 0
	for _, w := range p.workers {
		if w.busy {
			n++
		}
	}
	return n
}
