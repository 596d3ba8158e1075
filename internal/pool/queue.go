package pool

import "container/heap"

// taskQueue holds tasks not yet assigned to a worker, ordered by priority
// (higher first) with FIFO ordering inside a priority tier. Insertion
// order is tracked with a monotonically increasing sequence number so that
// retried tasks re-enter at their original priority but behind same-priority
// peers that arrived while they were in flight.
type taskQueue struct {
	heap    taskHeap
	nextSeq uint64
}

func newTaskQueue() *taskQueue {
	q := &taskQueue{heap: make(taskHeap, 0, 64)}
	heap.Init(&q.heap)
	return q
}

// push inserts a task with a fresh arrival position.
func (q *taskQueue) push(t *task) {
	t.seq = q.nextSeq
	q.nextSeq++
	heap.Push(&q.heap, t)
}

// pop removes and returns the highest-priority task, or nil when empty.
func (q *taskQueue) pop() *task {
	if q.heap.Len() == 0 {
		return nil
	}
	return heap.Pop(&q.heap).(*task)
}

// remove deletes a specific task from the queue, used when its
// cancellation token fires while it is still pending.
func (q *taskQueue) remove(t *task) bool {
	if t.index < 0 || t.index >= q.heap.Len() || q.heap[t.index] != t {
		return false
	}
	heap.Remove(&q.heap, t.index)
	return true
}

func (q *taskQueue) len() int { return q.heap.Len() }

// taskHeap implements heap.Interface as a max-heap on (priority, -seq).
type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
