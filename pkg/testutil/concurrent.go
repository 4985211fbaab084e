package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	dErrors "mutualpool/pkg/domain-errors"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
type ConcurrentResult struct {
	Successes    int32
	Errors       int32
	Conflicts    int32
	NotFounds    int32
	Insufficient int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Errors + r.Conflicts + r.NotFounds + r.Insufficient
}

// RunConcurrent executes fn in parallel goroutines and buckets the outcomes by
// domain error code. Invalid-state and duplicate errors both count as conflicts.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var wg sync.WaitGroup
	var successes, errs, conflicts, notFounds, insufficient atomic.Int32

	for i := range goroutines {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			err := fn(idx)
			switch {
			case err == nil:
				successes.Add(1)
			case dErrors.HasCode(err, dErrors.CodeInvalidState), dErrors.HasCode(err, dErrors.CodeDuplicate):
				conflicts.Add(1)
			case dErrors.HasCode(err, dErrors.CodeNotFound):
				notFounds.Add(1)
			case dErrors.HasCode(err, dErrors.CodeInsufficientResource):
				insufficient.Add(1)
			default:
				errs.Add(1)
			}
		}(i)
	}

	wg.Wait()

	return &ConcurrentResult{
		Successes:    successes.Load(),
		Errors:       errs.Load(),
		Conflicts:    conflicts.Load(),
		NotFounds:    notFounds.Load(),
		Insufficient: insufficient.Load(),
	}
}

// RunConcurrentCtx executes fn in parallel goroutines with context support.
func RunConcurrentCtx(ctx context.Context, goroutines int, fn func(ctx context.Context, idx int) error) *ConcurrentResult {
	return RunConcurrent(goroutines, func(idx int) error {
		return fn(ctx, idx)
	})
}

// RunConcurrentCollect executes fn in parallel and collects all errors.
// Use this when you need to inspect individual error types beyond the standard categories.
func RunConcurrentCollect(goroutines int, fn func(idx int) error) (successes int32, errs []error) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var successCount atomic.Int32
	collectedErrs := make([]error, 0)

	for i := range goroutines {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if err := fn(idx); err != nil {
				mu.Lock()
				collectedErrs = append(collectedErrs, err)
				mu.Unlock()
			} else {
				successCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	return successCount.Load(), collectedErrs
}
