package pool

import (
	"context"
	"fmt"
	"sync"
)

// ExecuteAll submits every spec concurrently and waits for all of them to
// settle. Results are returned in submission order. If any task fails, the
// first failure (by position) is returned after all settlements have been
// observed, so no task is left with an unobserved future.
func (p *Pool) ExecuteAll(ctx context.Context, specs []TaskSpec, opts *TaskOptions) ([]any, error) {
	futures := make([]*Future, len(specs))
	for i, spec := range specs {
		f, err := p.Execute(ctx, spec.Type, spec.Payload, opts)
		if err != nil {
			return nil, fmt.Errorf("submitting task %d (%s): %w", i, spec.Type, err)
		}
		futures[i] = f
	}

	results := make([]any, len(futures))
	var firstErr error
	for i, f := range futures {
		value, err := f.Wait(ctx)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		results[i] = value
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// ExecuteBatch runs the specs with at most concurrency logical operations
// in flight at once, independent of how many workers the pool has. A
// non-positive concurrency falls back to the pool's MaxWorkers. The bound
// is enforced with a semaphore rather than by scanning pending futures.
func (p *Pool) ExecuteBatch(ctx context.Context, specs []TaskSpec, concurrency int, opts *TaskOptions) ([]any, error) {
	if concurrency <= 0 {
		concurrency = p.cfg.MaxWorkers
	}

	sem := make(chan struct{}, concurrency)
	results := make([]any, len(specs))
	errs := make([]error, len(specs))

	var wg sync.WaitGroup
	for i, spec := range specs {
		wg.Add(1)
		go func(i int, spec TaskSpec) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errs[i] = fmt.Errorf("%w: %v", ErrTaskCancelled, ctx.Err())
				return
			}
			defer func() { <-sem }()

			f, err := p.Execute(ctx, spec.Type, spec.Payload, opts)
			if err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = f.Wait(ctx)
		}(i, spec)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
