package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// PollerConfig holds poller tuning.
type PollerConfig struct {
	Concurrency  int
	PollInterval time.Duration
	BatchSize    int
}

func (c *PollerConfig) defaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 64
	}
}

// Poller drives due retry tasks through an Executor. It is the store-backed
// fallback when no external job queue is wired; both paths tolerate seeing
// the same task because finished tasks are skipped.
type Poller struct {
	store    TaskStore
	executor Executor
	config   PollerConfig
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller creates a poller.
func NewPoller(store TaskStore, executor Executor, cfg PollerConfig, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.defaults()
	return &Poller{
		store:    store,
		executor: executor,
		config:   cfg,
		logger:   logger,
	}
}

// Start begins the poll loop.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.pollLoop(ctx)
	}()
}

// Stop cancels the poll loop and waits for in-flight retries to complete.
func (p *Poller) Stop(_ context.Context) {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// release returns a claimed task to the due queue after a failed
// execution. DueTasks removes a task from the queue until the next
// UpdateTask, so a transient executor fault (profile store briefly down,
// shutdown mid-attempt) would otherwise strand the task unfinished with
// no terminal status. The schedule is nudged one poll interval out so a
// persistent fault cannot hot-loop; a task another path finalized in the
// meantime stays finalized.
func (p *Poller) release(ctx context.Context, task *RetryTask) {
	// The claim must be settled even when the failure was the poll
	// context's own cancellation.
	ctx = context.WithoutCancel(ctx)

	cur, err := p.store.GetTask(ctx, task.ID)
	if err != nil {
		p.logger.ErrorContext(ctx, "release of claimed task failed",
			"task_id", task.ID, "error", err)
		return
	}
	if cur.Finished {
		return
	}

	cur.ScheduleTime = time.Now().UTC().Add(p.config.PollInterval)
	if err := p.store.UpdateTask(ctx, cur); err != nil {
		p.logger.ErrorContext(ctx, "release of claimed task failed",
			"task_id", task.ID, "error", err)
	}
}

func (p *Poller) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, p.config.Concurrency)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch, err := p.store.DueTasks(ctx, time.Now().UTC(), p.config.BatchSize)
			if err != nil {
				p.logger.ErrorContext(ctx, "due tasks query failed", "error", err)
				continue
			}

			for _, t := range batch {
				if t.Finished {
					continue
				}

				select {
				case <-ctx.Done():
					return
				case sem <- struct{}{}:
				}

				p.wg.Add(1)
				go func(task *RetryTask) {
					defer p.wg.Done()
					defer func() { <-sem }()

					if err := p.executor.ExecuteRetry(ctx, task); err != nil {
						p.logger.ErrorContext(ctx, "retry execution failed",
							"task_id", task.ID, "object_id", task.ObjectID, "error", err)
						p.release(ctx, task)
					}
				}(t)
			}
		}
	}
}
