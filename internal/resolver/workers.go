package resolver

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/jylhava/coverd/internal/observability"
)

// Pool runs background resolutions with a bounded number of workers. A job's
// only externally observable effect is a cache write, so shutdown may abandon
// queued work without corrupting state.
type Pool struct {
	sem     *semaphore.Weighted
	metrics *observability.ResolverMetrics
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewPool creates a pool running at most workers jobs concurrently.
// metrics may be nil.
func NewPool(workers int, metrics *observability.ResolverMetrics) *Pool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		sem:     semaphore.NewWeighted(int64(workers)),
		metrics: metrics,
		logger:  serviceLogger(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit queues a background job. It never blocks the caller; the job waits
// for a worker slot in its own goroutine. Returns false when the pool has
// been shut down and the job was not accepted.
func (p *Pool) Submit(job func(ctx context.Context)) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.wg.Add(1)
	p.mu.Unlock()

	p.metrics.AddQueueDepth(1)
	go func() {
		defer p.wg.Done()
		defer p.metrics.AddQueueDepth(-1)

		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			// Shutdown raced the queued job; abandoning it is safe.
			return
		}
		defer p.sem.Release(1)

		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("background resolution panicked", "panic", r)
			}
		}()
		job(p.ctx)
	}()
	return true
}

// Shutdown stops accepting jobs, cancels queued and running work, and waits
// for all goroutines to finish or for ctx to expire.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
