// Package schedule provides chunked, concurrency-bounded fan-out over a
// list of processing units, with pacing between chunks so provider
// request-rate quotas are respected.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Result captures one unit's outcome. Outcomes are returned in the same
// order as the input units regardless of completion order.
type Result[R any] struct {
	Index int
	Value R
	Err   error
}

// Batcher runs per-unit operations with at most Limit units in flight.
// Units are grouped into fixed-size chunks of Limit; a chunk fully
// completes (successes and failures both) and the pacer runs before the
// next chunk starts. A failing unit never cancels its siblings.
type Batcher struct {
	Limit  int
	Pacer  Pacer
	Logger *slog.Logger
}

// Run executes fn for every unit and returns one Result per unit, input
// order preserved. The only error Run itself returns is context
// cancellation; per-unit failures live in the results.
func Run[U, R any](ctx context.Context, b Batcher, units []U, fn func(context.Context, U) (R, error)) ([]Result[R], error) {
	limit := b.Limit
	if limit <= 0 {
		limit = 1
	}
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}

	results := make([]Result[R], len(units))
	sem := semaphore.NewWeighted(int64(limit))

	for start := 0; start < len(units); start += limit {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		end := min(start+limit, len(units))
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			if err := sem.Acquire(ctx, 1); err != nil {
				wg.Wait()
				return results, err
			}
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				defer sem.Release(1)
				defer func() {
					if r := recover(); r != nil {
						results[idx].Err = fmt.Errorf("unit %d panicked: %v", idx, r)
					}
				}()
				results[idx].Index = idx
				results[idx].Value, results[idx].Err = fn(ctx, units[idx])
			}(i)
		}
		wg.Wait()

		// No pacing after the final chunk.
		if end < len(units) && b.Pacer != nil {
			logger.Debug("chunk complete, pacing before next",
				"done", end, "total", len(units))
			if err := b.Pacer.Wait(ctx); err != nil {
				return results, err
			}
		}
	}

	return results, nil
}
