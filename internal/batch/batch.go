// Package batch fans work out over fixed-size windows of goroutines.
package batch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultWindow is the number of items processed concurrently per window.
const DefaultWindow = 5

// Run calls fn for every item and returns the results in input order.
// Items are processed in consecutive windows of at most window items; a
// window starts only after the previous one has finished. Once ctx is done
// no further windows start and the remaining results keep their zero value.
func Run[T, R any](ctx context.Context, items []T, window int, fn func(context.Context, T) R) []R {
	if window <= 0 {
		window = DefaultWindow
	}
	out := make([]R, len(items))

	for start := 0; start < len(items); start += window {
		if ctx.Err() != nil {
			break
		}
		end := min(start+window, len(items))

		eg, egCtx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			eg.Go(func() error {
				out[i] = fn(egCtx, items[i])
				return nil
			})
		}
		_ = eg.Wait()
	}
	return out
}

// Map is Run keyed by item. Duplicate items are looked up once per
// occurrence; the last result wins.
func Map[K comparable, R any](ctx context.Context, keys []K, window int, fn func(context.Context, K) R) map[K]R {
	results := Run(ctx, keys, window, fn)
	out := make(map[K]R, len(keys))
	for i, k := range keys {
		out[k] = results[i]
	}
	return out
}
