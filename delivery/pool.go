package delivery

import (
	"context"
	"log/slog"
	"sync"
)

// Pool runs initial delivery attempts in the background so webhook creation
// returns without waiting on the merchant's endpoint. Jobs detach from the
// caller's cancellation but keep its values for tracing.
type Pool struct {
	sem    chan struct{}
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewPool creates a pool with the given concurrency.
func NewPool(size int, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = 16
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		sem:    make(chan struct{}, size),
		logger: logger,
	}
}

// Submit schedules fn on the pool, blocking while the pool is saturated.
func (p *Pool) Submit(ctx context.Context, fn func(ctx context.Context) error) {
	bg := context.WithoutCancel(ctx)

	p.sem <- struct{}{}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()

		if err := fn(bg); err != nil {
			p.logger.ErrorContext(bg, "background delivery failed", "error", err)
		}
	}()
}

// Wait blocks until all submitted jobs finish.
func (p *Pool) Wait() {
	p.wg.Wait()
}
