package pool

import "time"

// breaker is the pool-wide failure sensor. It counts terminal (retry
// exhausted) task failures; when the count reaches the threshold the
// breaker opens and new submissions are rejected. The open state is left
// lazily: the first admission attempted after the cooldown has elapsed
// since the last recorded failure closes the breaker and resets the count.
//
// Closed -> (errorCount >= threshold) -> Open -> (elapsed >= reset, on
// next admission) -> Closed.
//
// The breaker is owned and mutated only by the run loop.
type breaker struct {
	threshold int
	reset     time.Duration

	errorCount  int
	lastErrorAt time.Time
	open        bool
}

func newBreaker(threshold int, reset time.Duration) *breaker {
	return &breaker{threshold: threshold, reset: reset}
}

// allow reports whether a new submission may proceed, transitioning
// Open -> Closed when the cooldown has elapsed.
func (b *breaker) allow(now time.Time) bool {
	if !b.open {
		return true
	}
	if now.Sub(b.lastErrorAt) >= b.reset {
		b.open = false
		b.errorCount = 0
		return true
	}
	return false
}

// recordFailure registers one terminal task failure, opening the breaker
// at the threshold.
func (b *breaker) recordFailure(now time.Time) {
	b.errorCount++
	b.lastErrorAt = now
	if b.errorCount >= b.threshold {
		b.open = true
	}
}

// isOpen reports the current state without side effects, for stats.
func (b *breaker) isOpen() bool { return b.open }
