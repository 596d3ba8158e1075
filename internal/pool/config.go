package pool

import (
	"fmt"
	"runtime"
	"time"
)

// Config holds the immutable knobs for a Pool. Zero values are replaced
// with defaults by New; see DefaultConfig for the defaults themselves.
type Config struct {
	// MaxWorkers bounds the number of concurrently running workers.
	MaxWorkers int

	// MinWorkers is the floor of always-warm workers. They are spawned
	// eagerly at construction and never reclaimed by the idle reaper.
	MinWorkers int

	// TaskTimeout is the default wall-clock ceiling per task attempt.
	// Individual submissions may override it via TaskOptions.
	TaskTimeout time.Duration

	// IdleTimeout is how long a worker may sit idle before the reaper
	// terminates it (while the registry is above MinWorkers).
	IdleTimeout time.Duration

	// MaxRetries is how many times a failed task is re-enqueued before
	// its failure becomes terminal. Zero disables retries; a negative
	// value selects the default.
	MaxRetries int

	// ErrorThreshold is the number of terminal failures that opens the
	// circuit breaker.
	ErrorThreshold int

	// CircuitReset is the cooldown after the last recorded failure before
	// the breaker closes again.
	CircuitReset time.Duration

	// ReapInterval is the cadence of the idle-worker sweep.
	ReapInterval time.Duration
}

// DefaultConfig returns the configuration used when fields are left zero:
// worker ceiling at the logical CPU count (floor 4), one warm worker, 30s
// task timeout, 60s idle timeout, 2 retries, breaker opening after 5
// failures with a 30s cooldown, and a 10s reap sweep.
func DefaultConfig() Config {
	maxWorkers := runtime.NumCPU()
	if maxWorkers < 4 {
		maxWorkers = 4
	}
	return Config{
		MaxWorkers:     maxWorkers,
		MinWorkers:     1,
		TaskTimeout:    30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxRetries:     2,
		ErrorThreshold: 5,
		CircuitReset:   30 * time.Second,
		ReapInterval:   10 * time.Second,
	}
}

// withDefaults fills zero-valued fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = def.MaxWorkers
	}
	if c.MinWorkers <= 0 {
		c.MinWorkers = def.MinWorkers
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = def.TaskTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = def.IdleTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.ErrorThreshold <= 0 {
		c.ErrorThreshold = def.ErrorThreshold
	}
	if c.CircuitReset <= 0 {
		c.CircuitReset = def.CircuitReset
	}
	if c.ReapInterval <= 0 {
		c.ReapInterval = def.ReapInterval
	}
	return c
}

// validate rejects configurations that cannot produce a working pool.
func (c Config) validate() error {
	if c.MinWorkers > c.MaxWorkers {
		return fmt.Errorf("pool: min workers (%d) exceeds max workers (%d)",
			c.MinWorkers, c.MaxWorkers)
	}
	return nil
}
