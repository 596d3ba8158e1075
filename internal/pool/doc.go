// Package pool implements the concurrent task-execution core: a bounded
// worker pool with priority scheduling, per-task timeout and retry, a
// pool-wide circuit breaker, and dynamic worker lifecycle management.
// Callers submit named task types with payloads and receive a Future that
// settles exactly once with the result, a typed failure, or a cancellation.
package pool
