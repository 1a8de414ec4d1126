// Package scheduler owns the outbound retry state machine. A retry task is
// created optimistically alongside every initial delivery attempt; success
// later cancels it by finalizing the task rather than deleting the row, so
// the task record doubles as the delivery audit trail.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fluxpay/webhooks/event"
	"github.com/fluxpay/webhooks/id"
	"github.com/fluxpay/webhooks/internal/entity"
	"github.com/fluxpay/webhooks/merchant"
)

// Scheduler errors.
var (
	// ErrBudgetExhausted means the profile's automatic retry budget has
	// been spent.
	ErrBudgetExhausted = errors.New("scheduler: retry budget exhausted")

	// ErrTaskNotFound is returned by TaskStore lookups for unknown tasks.
	ErrTaskNotFound = errors.New("scheduler: task not found")
)

// BusinessStatus records why a retry task stopped. It is the cancellation
// mechanism: a finished task is skipped by every executor that picks it up.
type BusinessStatus string

// Terminal task statuses.
const (
	// StatusInitialSuccess cancels the pre-scheduled retry because the
	// initial delivery attempt got a 2xx.
	StatusInitialSuccess BusinessStatus = "INITIAL_DELIVERY_ATTEMPT_SUCCESSFUL"

	// StatusCompleted means an automatic retry got a 2xx.
	StatusCompleted BusinessStatus = "COMPLETED_BY_PT"

	// StatusFailure means a non-retryable condition ended the cycle, such
	// as the merchant removing the webhook URL mid-cycle.
	StatusFailure BusinessStatus = "FAILURE"

	// StatusRetriesExhausted means the automatic retry budget ran out
	// without a successful delivery.
	StatusRetriesExhausted BusinessStatus = "RETRIES_EXHAUSTED"
)

// RetryTask is the persistent record driving automatic redelivery of one
// outbound event. AttemptIndex counts automatic retries; index 0 is the
// pre-scheduled first retry created with the initial attempt.
type RetryTask struct {
	entity.Entity

	ID         id.ID
	MerchantID string
	ProfileID  string

	EventType  event.Type
	Class      event.Class
	ObjectID   string
	ObjectType event.ObjectType

	// InitialAttemptID groups every attempt of one delivery cycle.
	InitialAttemptID id.ID

	AttemptIndex int
	ScheduleTime time.Time

	Finished       bool
	BusinessStatus BusinessStatus
}

// TaskStore persists retry tasks.
type TaskStore interface {
	CreateTask(ctx context.Context, t *RetryTask) error
	UpdateTask(ctx context.Context, t *RetryTask) error
	GetTask(ctx context.Context, taskID id.ID) (*RetryTask, error)

	// DueTasks claims up to limit unfinished tasks whose ScheduleTime has
	// passed. Claimed tasks are not returned to concurrent callers.
	DueTasks(ctx context.Context, now time.Time, limit int) ([]*RetryTask, error)
}

// Executor runs one automatic retry for a due task.
type Executor interface {
	ExecuteRetry(ctx context.Context, t *RetryTask) error
}

// Notifier mirrors task scheduling into an external job queue. Optional;
// the Poller drives tasks without one.
type Notifier interface {
	Notify(ctx context.Context, t *RetryTask) error
}

// Scheduler creates, advances and finalizes retry tasks.
type Scheduler struct {
	store    TaskStore
	policy   Policy
	notifier Notifier
	logger   *slog.Logger
}

// New creates a scheduler. A nil policy selects DefaultPolicy.
func New(store TaskStore, policy Policy, logger *slog.Logger) *Scheduler {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:  store,
		policy: policy,
		logger: logger,
	}
}

// SetNotifier attaches an external queue notifier.
func (s *Scheduler) SetNotifier(n Notifier) { s.notifier = n }

// Enqueue persists a new retry task with its first schedule time computed
// from the profile's policy. Called alongside the initial delivery attempt,
// before its outcome is known.
func (s *Scheduler) Enqueue(ctx context.Context, t *RetryTask, p *merchant.Profile) error {
	when, ok := s.policy(p, t.AttemptIndex)
	if !ok {
		return ErrBudgetExhausted
	}

	t.Entity = entity.New()
	if t.ID.IsNil() {
		t.ID = id.NewTaskID()
	}
	t.ScheduleTime = when

	if err := s.store.CreateTask(ctx, t); err != nil {
		return fmt.Errorf("create retry task: %w", err)
	}

	s.notify(ctx, t)

	s.logger.DebugContext(ctx, "retry task enqueued",
		"task_id", t.ID, "object_id", t.ObjectID, "schedule_time", t.ScheduleTime)
	return nil
}

// NextSchedule advances a task to its next automatic retry. Returns
// ErrBudgetExhausted when the profile's budget is spent; the caller then
// finalizes with StatusRetriesExhausted.
func (s *Scheduler) NextSchedule(ctx context.Context, t *RetryTask, p *merchant.Profile) error {
	next := t.AttemptIndex + 1
	when, ok := s.policy(p, next)
	if !ok {
		return ErrBudgetExhausted
	}

	t.AttemptIndex = next
	t.ScheduleTime = when
	t.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateTask(ctx, t); err != nil {
		return fmt.Errorf("reschedule retry task: %w", err)
	}

	s.notify(ctx, t)

	s.logger.DebugContext(ctx, "retry task rescheduled",
		"task_id", t.ID, "attempt", t.AttemptIndex, "schedule_time", t.ScheduleTime)
	return nil
}

// Finalize marks a task finished with its terminal business status. Every
// delivery cycle ends here exactly once, whatever the outcome.
func (s *Scheduler) Finalize(ctx context.Context, t *RetryTask, status BusinessStatus) error {
	t.Finished = true
	t.BusinessStatus = status
	t.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateTask(ctx, t); err != nil {
		return fmt.Errorf("finalize retry task: %w", err)
	}

	s.logger.DebugContext(ctx, "retry task finalized",
		"task_id", t.ID, "business_status", status)
	return nil
}

// Get returns a task by id.
func (s *Scheduler) Get(ctx context.Context, taskID id.ID) (*RetryTask, error) {
	return s.store.GetTask(ctx, taskID)
}

func (s *Scheduler) notify(ctx context.Context, t *RetryTask) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, t); err != nil {
		// The poller still picks the task up from the store.
		s.logger.WarnContext(ctx, "queue notify failed",
			"task_id", t.ID, "error", err)
	}
}
