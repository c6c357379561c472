package concurrent

import (
	"context"
	"sync"
)

const defaultConcurrency = 4

// ParallelMap executes fn on each item in parallel and returns results in input order.
// The first error by input index is returned alongside the partial results.
func ParallelMap[T, R any](ctx context.Context, items []T, fn func(context.Context, T) (R, error), maxConcurrency int) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}

	if maxConcurrency <= 0 {
		maxConcurrency = defaultConcurrency
	}

	results := make([]R, len(items))
	errs := make([]error, len(items))

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrency)

	for i, item := range items {
		wg.Add(1)
		go func(idx int, val T) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				errs[idx] = ctx.Err()
				return
			case sem <- struct{}{}:
				defer func() { <-sem }()
				results[idx], errs[idx] = fn(ctx, val)
			}
		}(i, item)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}

	return results, nil
}

// Result is the settled outcome of one call made by Settle.
type Result[R any] struct {
	Value R
	Err   error
}

// OK reports whether the call succeeded.
func (r Result[R]) OK() bool { return r.Err == nil }

// Settle runs fn n times concurrently and waits for every call to finish.
// Results are indexed by submission order, not completion order. A failing call never
// cancels or blocks its siblings.
func Settle[R any](ctx context.Context, n int, fn func(ctx context.Context, i int) (R, error)) []Result[R] {
	if n <= 0 {
		return nil
	}

	results := make([]Result[R], n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(idx int) {
			defer wg.Done()
			v, err := fn(ctx, idx)
			results[idx] = Result[R]{Value: v, Err: err}
		}(i)
	}
	wg.Wait()

	return results
}
