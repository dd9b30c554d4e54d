package concurrent

import (
	"context"
	"errors"
	"sync"
)

/*
FetchAll - per-card catalog lookups. Each card is an independent network
call, so they run in parallel behind a semaphore of `workers` slots.

RunAll - independent aggregate queries (community statistics). All tasks run
at once and the first error wins.
*/

// Failure describes an item FetchAll dropped.
type Failure struct {
	ID  int
	Err error
}

// FetchAll calls fetch for every id with at most workers calls in flight.
// Results keep the order of ids; ids whose fetch failed are left out and
// reported in the second return value.
func FetchAll[T any](ctx context.Context, ids []int, workers int, fetch func(context.Context, int) (T, error)) ([]T, []Failure) {
	if workers <= 0 {
		workers = 10
	}

	type slot struct {
		value T
		err   error
	}
	slots := make([]slot, len(ids))

	// Semaphore limiting parallel calls
	semaphore := make(chan struct{}, workers)

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i, id int) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				slots[i].err = ctx.Err()
				return
			}
			defer func() { <-semaphore }()

			slots[i].value, slots[i].err = fetch(ctx, id)
		}(i, id)
	}
	wg.Wait()

	results := make([]T, 0, len(ids))
	var failures []Failure
	for i, s := range slots {
		if s.err != nil {
			failures = append(failures, Failure{ID: ids[i], Err: s.err})
			continue
		}
		results = append(results, s.value)
	}
	return results, failures
}

// RunAll runs every task concurrently and returns the first error. The
// context passed to tasks is cancelled once any task fails.
func RunAll(ctx context.Context, tasks ...func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errChan := make(chan error, len(tasks))

	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(task func(context.Context) error) {
			defer wg.Done()
			if err := task(ctx); err != nil {
				errChan <- err
				cancel()
			}
		}(task)
	}

	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	// a cancelled sibling is not the cause
	for _, err := range errs {
		if !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return errs[0]
}
