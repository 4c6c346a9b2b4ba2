package workflow

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ItemResult pairs one batch input with its outcome. Exactly one of Result
// and Err is set.
type ItemResult struct {
	Index  int
	Input  Input
	Result *Result
	Err    error
}

// RunBatch processes independent inputs concurrently, one worker per image up
// to the given bound, and returns results in input order regardless of
// completion order. A fatal error on one image is recorded on its item and
// does not abort sibling runs.
func (r *Runner) RunBatch(ctx context.Context, inputs []Input, workers int) []ItemResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	sem := semaphore.NewWeighted(int64(workers))
	results := make([]ItemResult, len(inputs))

	var wg sync.WaitGroup
	for i, in := range inputs {
		results[i] = ItemResult{Index: i, Input: in}

		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled: mark the remaining items without running them.
			results[i].Err = err
			continue
		}

		wg.Add(1)
		go func(i int, in Input) {
			defer wg.Done()
			defer sem.Release(1)
			res, err := r.Run(ctx, in)
			results[i].Result = res
			results[i].Err = err
		}(i, in)
	}
	wg.Wait()

	return results
}
