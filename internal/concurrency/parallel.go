// Package concurrency holds the fan-out helpers used by the query layer.
package concurrency

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ParallelOptions configures parallel processing.
type ParallelOptions struct {
	// MaxWorkers caps the number of in-flight calls.
	MaxWorkers int
}

// DefaultOptions returns the default fan-out width.
func DefaultOptions() ParallelOptions {
	return ParallelOptions{
		MaxWorkers: 8,
	}
}

func (o ParallelOptions) workers(n int) int {
	w := o.MaxWorkers
	if w <= 0 {
		w = DefaultOptions().MaxWorkers
	}
	if w > n {
		w = n
	}
	return w
}

// Map calls itemFunc for every item with bounded parallelism and returns the results in
// input order, regardless of completion order. The first error cancels the remaining
// calls and is returned; no partial result is returned with it.
func Map[T any, R any](
	ctx context.Context,
	items []T,
	opts ParallelOptions,
	itemFunc func(ctx context.Context, index int, item T) (R, error),
) ([]R, error) {
	if len(items) == 0 {
		return []R{}, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers(len(items)))

	out := make([]R, len(items))
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := itemFunc(gctx, i, item)
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ForEach runs itemFunc for every item and collects every error instead of stopping at
// the first one. Useful for best-effort warming where one failure must not skip the rest.
func ForEach[T any](
	ctx context.Context,
	items []T,
	opts ParallelOptions,
	itemFunc func(ctx context.Context, index int, item T) error,
) []error {
	if len(items) == 0 {
		return nil
	}

	sem := make(chan struct{}, opts.workers(len(items)))
	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	for i, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := itemFunc(ctx, i, item); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errs
}

// Detach runs fn in the background with a context that keeps ctx's values but not its
// cancellation, so the work survives the request that started it. onErr receives a
// non-nil error from fn and must not block.
func Detach(ctx context.Context, fn func(ctx context.Context) error, onErr func(error)) {
	bg := context.WithoutCancel(ctx)
	go func() {
		if err := fn(bg); err != nil && onErr != nil {
			onErr(err)
		}
	}()
}
