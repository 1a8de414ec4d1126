// Package riverqueue runs retry tasks on a River job queue backed by
// Postgres. It replaces the in-process poller in multi-node deployments:
// the scheduler notifies a job per (task, attempt) with the task's
// ScheduleTime, and the worker re-reads the task before executing so a
// finalized task is a no-op.
package riverqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/fluxpay/webhooks/id"
	"github.com/fluxpay/webhooks/scheduler"
)

// QueueName is the River queue retry jobs run on.
const QueueName = "webhook_retries"

// RetryArgs is the job payload: just the task id. All state lives in the
// task store, so a stale job body can never override a cancellation.
type RetryArgs struct {
	TaskID string `json:"task_id"`
}

// Kind implements river.JobArgs.
func (RetryArgs) Kind() string { return "webhook_retry" }

// Worker executes retry jobs.
type Worker struct {
	river.WorkerDefaults[RetryArgs]

	store    scheduler.TaskStore
	executor scheduler.Executor
}

// NewWorker creates a retry worker.
func NewWorker(store scheduler.TaskStore, executor scheduler.Executor) *Worker {
	return &Worker{store: store, executor: executor}
}

// Work runs one retry attempt. Finished tasks are skipped silently; this is
// how a success after the job was scheduled cancels it.
func (w *Worker) Work(ctx context.Context, job *river.Job[RetryArgs]) error {
	taskID, err := id.ParseTaskID(job.Args.TaskID)
	if err != nil {
		// Malformed job body; retrying cannot help.
		return nil
	}

	t, err := w.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, scheduler.ErrTaskNotFound) {
			return nil
		}
		return fmt.Errorf("load retry task %s: %w", job.Args.TaskID, err)
	}

	if t.Finished {
		return nil
	}

	return w.executor.ExecuteRetry(ctx, t)
}

// Queue wraps a River client as a scheduler.Notifier and job runner.
type Queue struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
}

// New creates the queue: one worker kind, one queue, jobs run exactly once
// because the task store, not River, owns retry accounting.
func New(pool *pgxpool.Pool, store scheduler.TaskStore, executor scheduler.Executor, maxWorkers int) (*Queue, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewWorker(store, executor))

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			QueueName: {MaxWorkers: maxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("riverqueue: create client: %w", err)
	}

	return &Queue{client: client, pool: pool}, nil
}

// Notify implements scheduler.Notifier: one job per scheduled attempt,
// delayed until the task's ScheduleTime.
func (q *Queue) Notify(ctx context.Context, t *scheduler.RetryTask) error {
	_, err := q.client.Insert(ctx, RetryArgs{TaskID: t.ID.String()}, &river.InsertOpts{
		Queue:       QueueName,
		ScheduledAt: t.ScheduleTime,
		MaxAttempts: 1,
	})
	if err != nil {
		return fmt.Errorf("riverqueue: insert retry job: %w", err)
	}
	return nil
}

// Start begins job processing.
func (q *Queue) Start(ctx context.Context) error {
	if err := q.client.Start(ctx); err != nil {
		return fmt.Errorf("riverqueue: start: %w", err)
	}
	return nil
}

// Stop drains in-flight jobs, bounded by the given timeout.
func (q *Queue) Stop(ctx context.Context, timeout time.Duration) error {
	stopCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return q.client.Stop(stopCtx)
}
