package pool

import (
	"context"
	"sync"
)

// WorkerFunc processes one item and returns its result.
type WorkerFunc[T, R any] func(ctx context.Context, item T) (R, error)

// Result pairs a worker's output with the index of the item it came from.
type Result[R any] struct {
	Index int
	Value R
	Err   error
}

// Run processes items with numWorkers goroutines and returns one Result per
// item, in input order. Items never handed to a worker because ctx was
// cancelled get ctx.Err() as their error.
func Run[T, R any](ctx context.Context, items []T, numWorkers int, workerFunc WorkerFunc[T, R]) []Result[R] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	results := make([]Result[R], len(items))
	for i := range results {
		results[i].Index = i
	}

	var wg sync.WaitGroup
	taskChan := make(chan int, numWorkers)

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range taskChan {
				// Each index is owned by exactly one worker.
				results[idx].Value, results[idx].Err = workerFunc(ctx, items[idx])
			}
		}()
	}

	next := 0
OUT:
	for ; next < len(items); next++ {
		if ctx.Err() != nil {
			break
		}
		select {
		case taskChan <- next:
		case <-ctx.Done():
			// Stop feeding tasks if the context is cancelled
			break OUT
		}
	}
	close(taskChan)
	wg.Wait()

	for ; next < len(items); next++ {
		results[next].Err = ctx.Err()
	}
	return results
}

// Errors returns the non-nil errors of results, in order.
func Errors[R any](results []Result[R]) []error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}
