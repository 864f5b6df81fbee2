// Package parallel provides the bounded worker pool that runs
// fold×candidate tasks, plus row-chunking helpers used by backends.
package parallel

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Pool runs tasks with at most Size of them in flight. A Pool holds no
// goroutines between calls to Run and may be shared by several searches.
type Pool struct {
	size int
}

// NewPool returns a pool of the given size. size <= 0 means runtime.NumCPU().
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{size: size}
}

// Size returns the maximum number of concurrent tasks.
func (p *Pool) Size() int {
	if p == nil {
		return 1
	}
	return p.size
}

// Run calls fn(i) for i in [0, n) and blocks until every started call has
// returned. If ctx is cancelled, no further calls are started; calls
// already running finish and ctx.Err() is returned.
func (p *Pool) Run(ctx context.Context, n int, fn func(i int)) error {
	g := new(errgroup.Group)
	g.SetLimit(p.Size())
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			_ = g.Wait()
			return err
		}
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Parallelize splits [0, items) into one contiguous chunk per CPU and calls
// fn(start, end) for each chunk concurrently.
func Parallelize(items int, fn func(start, end int)) {
	if items <= 0 {
		return
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for start := 0; start < items; start += chunkSize {
		end := min(start+chunkSize, items)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn sequentially over [0, items) when items
// is at most threshold and falls back to Parallelize otherwise.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}
