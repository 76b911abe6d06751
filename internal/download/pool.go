package download

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pool bounds cross-chunk-file parallelism for the small-object download
// path, per spec.md §4.4/§5: "Cross-blob and cross-chunk-file parallelism
// is bounded by a worker pool." Built on golang.org/x/sync's errgroup and
// semaphore, grounded on the golang.org/x/sync dependency present in the
// reference pack's beenet module (the teacher itself does not show a
// worker-pool pattern directly).
type Pool struct {
	sem *semaphore.Weighted
	max int64
}

// NewPool returns a Pool bounded to maxWorkers concurrent tasks. A
// non-positive maxWorkers defaults to runtime.NumCPU().
func NewPool(maxWorkers int) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}
	n := int64(maxWorkers)
	return &Pool{sem: semaphore.NewWeighted(n), max: n}
}

// Run executes one task per item in tasks, bounded to p's concurrency
// limit, and returns the first error encountered (if any); all other
// in-flight tasks are allowed to finish, matching errgroup.Group's
// "cancel context, wait for the rest" semantics.
func (p *Pool) Run(ctx context.Context, tasks []func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, task := range tasks {
		task := task
		if err := p.sem.Acquire(gctx, 1); err != nil {
			return err
		}

		g.Go(func() error {
			defer p.sem.Release(1)
			return task(gctx)
		})
	}

	return g.Wait()
}
