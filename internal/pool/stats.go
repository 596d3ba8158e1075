package pool

import (
	"sync/atomic"
	"time"
)

// Stats is a point-in-time snapshot of pool state and cumulative counters.
type Stats struct {
	TotalWorkers   int           // workers currently in the registry
	BusyWorkers    int           // workers executing a task right now
	QueueLength    int           // tasks waiting for a worker
	CircuitOpen    bool          // whether new submissions are being rejected
	CompletedTasks int64         // tasks settled successfully
	FailedTasks    int64         // tasks settled with a terminal failure
	RejectedTasks  int64         // submissions refused at admission
	AverageLatency time.Duration // mean handler execution time of completed tasks
	Uptime         time.Duration // time since the pool was constructed
}

// statsCollector accumulates the cumulative counters with atomics so that
// successful completions recorded by the run loop never contend with
// snapshot reads.
type statsCollector struct {
	completedTasks atomic.Int64
	failedTasks    atomic.Int64
	rejectedTasks  atomic.Int64
	totalLatency   atomic.Int64 // nanoseconds
	startTime      time.Time
}

func newStatsCollector() *statsCollector {
	return &statsCollector{startTime: time.Now()}
}

// snapshot merges the counters with the registry and queue numbers the run
// loop supplies.
func (s *statsCollector) snapshot(totalWorkers, busyWorkers, queueLen int, circuitOpen bool) Stats {
	completed := s.completedTasks.Load()
	var avgLatency time.Duration
	if completed > 0 {
		avgLatency = time.Duration(s.totalLatency.Load() / completed)
	}

	return Stats{
		TotalWorkers:   totalWorkers,
		BusyWorkers:    busyWorkers,
		QueueLength:    queueLen,
		CircuitOpen:    circuitOpen,
		CompletedTasks: completed,
		FailedTasks:    s.failedTasks.Load(),
		RejectedTasks:  s.rejectedTasks.Load(),
		AverageLatency: avgLatency,
		Uptime:         time.Since(s.startTime),
	}
}

func (s *statsCollector) recordCompletion(duration time.Duration) {
	s.completedTasks.Add(1)
	s.totalLatency.Add(int64(duration))
}

func (s *statsCollector) recordFailure() {
	s.failedTasks.Add(1)
}

func (s *statsCollector) recordRejection() {
	s.rejectedTasks.Add(1)
}
