package wrangle

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Workers returns the worker count used for concurrent batches.
func Workers() int {
	return runtime.GOMAXPROCS(0)
}

// Map applies fn to every item and returns the results in input order.
//
// With useConcurrency false, items run one at a time and the first error
// stops the batch. Otherwise up to Workers() items run at once; the first
// error cancels the context passed to the remaining calls, unstarted items
// are skipped, and that error is returned once in-flight calls finish.
// Requests already issued are not undone.
func Map[T, R any](ctx context.Context, items []T, useConcurrency bool, fn func(context.Context, T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}

	if !useConcurrency || len(items) == 1 {
		for i, item := range items {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			r, err := fn(ctx, item)
			if err != nil {
				return nil, err
			}
			results[i] = r
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Workers())
	for i, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := fn(gctx, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// ForEach is Map for operations without a result.
func ForEach[T any](ctx context.Context, items []T, useConcurrency bool, fn func(context.Context, T) error) error {
	_, err := Map(ctx, items, useConcurrency, func(ctx context.Context, item T) (struct{}, error) {
		return struct{}{}, fn(ctx, item)
	})
	return err
}
