// Package delivery sends outbound events to merchant endpoints and drives
// each delivery cycle's retry task to a terminal business status.
package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/fluxpay/webhooks/crypt"
	"github.com/fluxpay/webhooks/event"
	"github.com/fluxpay/webhooks/id"
	"github.com/fluxpay/webhooks/merchant"
	"github.com/fluxpay/webhooks/observability"
	"github.com/fluxpay/webhooks/scheduler"
)

// ErrManualRetryNotSupported is returned for manual retry requests.
// Operators replay through the dead letter queue instead; a separate manual
// path raced the automatic state machine and is gone.
var ErrManualRetryNotSupported = errors.New("delivery: manual retry not supported")

// EngineStore is the interface the engine needs for delivery operations.
type EngineStore interface {
	GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error)
	RecordAttempt(ctx context.Context, evtID id.ID, response []byte, notified bool) error
	GetProfile(ctx context.Context, merchantID, profileID string) (*merchant.Profile, error)
}

// DLQPusher records delivery cycles whose retry budget ran out.
type DLQPusher interface {
	PushExhausted(ctx context.Context, t *scheduler.RetryTask, evt *event.Event, url, lastError string, lastStatusCode int) error
}

// RateLimiter throttles deliveries per profile.
type RateLimiter interface {
	Wait(ctx context.Context, key string, limit int) error
}

// EngineConfig holds engine configuration.
type EngineConfig struct {
	RequestTimeout time.Duration
	Metrics        *observability.Metrics
	Tracer         *observability.Tracer
	Analytics      observability.Emitter
}

// Engine performs delivery attempts. It implements scheduler.Executor for
// automatic retries and is called directly for initial attempts.
type Engine struct {
	store     EngineStore
	scheduler *scheduler.Scheduler
	sender    *Sender
	dlq       DLQPusher
	limiter   RateLimiter
	encryptor crypt.Encryptor
	config    EngineConfig
	logger    *slog.Logger
}

// NewEngine creates a delivery engine.
func NewEngine(store EngineStore, sched *scheduler.Scheduler, dlq DLQPusher, limiter RateLimiter, encryptor crypt.Encryptor, cfg EngineConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if encryptor == nil {
		encryptor = crypt.Plain{}
	}
	return &Engine{
		store:     store,
		scheduler: sched,
		sender:    NewSender(cfg.RequestTimeout),
		dlq:       dlq,
		limiter:   limiter,
		encryptor: encryptor,
		config:    cfg,
		logger:    logger,
	}
}

// Deliver runs one delivery attempt for an event and settles the retry
// task accordingly. The profile is re-read on every attempt so mid-cycle
// configuration changes take effect.
func (e *Engine) Deliver(ctx context.Context, evt *event.Event, snap *event.RequestSnapshot, attempt event.DeliveryAttempt, task *scheduler.RetryTask) error {
	if attempt == event.AttemptManualRetry {
		return ErrManualRetryNotSupported
	}

	p, err := e.store.GetProfile(ctx, evt.MerchantID, evt.ProfileID)
	if err != nil {
		if errors.Is(err, merchant.ErrProfileNotFound) {
			return e.abortCycle(ctx, evt, task, "profile not found")
		}
		return fmt.Errorf("load profile: %w", err)
	}
	if !p.DeliveryConfigured() {
		return e.abortCycle(ctx, evt, task, "webhook url removed")
	}

	profileKey := evt.MerchantID + "/" + evt.ProfileID
	if err := e.limiter.Wait(ctx, profileKey, p.RateLimit); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	var span trace.Span
	if e.config.Tracer != nil {
		ctx, span = e.config.Tracer.StartDeliverySpan(ctx, evt.ID.String(), string(attempt))
	}

	result := e.sender.Send(ctx, p.WebhookURL, evt, snap, p)

	if span != nil {
		e.config.Tracer.EndDeliverySpan(span, result.StatusCode, result.LatencyMs, result.Error)
	}

	e.recordAttempt(ctx, evt, attempt, result)
	e.observe(ctx, evt, attempt, result)

	switch attempt {
	case event.AttemptInitial:
		if result.Success() {
			return e.scheduler.Finalize(ctx, task, scheduler.StatusInitialSuccess)
		}
		// The pre-scheduled retry task is already pending; nothing to do.
		e.logger.DebugContext(ctx, "initial delivery failed, retry pending",
			"event_id", evt.ID, "task_id", task.ID, "status", result.StatusCode, "error", result.Error)
		return nil

	case event.AttemptAutomaticRetry:
		if result.Success() {
			return e.scheduler.Finalize(ctx, task, scheduler.StatusCompleted)
		}

		if err := e.scheduler.NextSchedule(ctx, task, p); err != nil {
			if !errors.Is(err, scheduler.ErrBudgetExhausted) {
				return err
			}
			if e.dlq != nil {
				if dlqErr := e.dlq.PushExhausted(ctx, task, evt, p.WebhookURL, result.Error, result.StatusCode); dlqErr != nil {
					e.logger.ErrorContext(ctx, "push to DLQ failed",
						"event_id", evt.ID, "error", dlqErr)
				}
			}
			if e.config.Metrics != nil {
				e.config.Metrics.DLQSize.Inc()
			}
			return e.scheduler.Finalize(ctx, task, scheduler.StatusRetriesExhausted)
		}
		return nil

	default:
		return fmt.Errorf("delivery: unknown attempt kind %q", attempt)
	}
}

// ExecuteRetry implements scheduler.Executor: it rebuilds the frozen
// request snapshot for the task's cycle and runs an automatic retry.
func (e *Engine) ExecuteRetry(ctx context.Context, task *scheduler.RetryTask) error {
	if task.Finished {
		return nil
	}

	evt, err := e.store.GetEvent(ctx, task.InitialAttemptID)
	if err != nil {
		return fmt.Errorf("load event %s: %w", task.InitialAttemptID, err)
	}

	raw, err := e.encryptor.Decrypt(ctx, evt.MerchantID, evt.Request)
	if err != nil {
		return fmt.Errorf("decrypt request snapshot: %w", err)
	}

	var snap event.RequestSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("decode request snapshot: %w", err)
	}

	return e.Deliver(ctx, evt, &snap, event.AttemptAutomaticRetry, task)
}

// abortCycle ends a delivery cycle whose destination is gone. The event
// stays un-notified; the task records the failure.
func (e *Engine) abortCycle(ctx context.Context, evt *event.Event, task *scheduler.RetryTask, reason string) error {
	e.logger.WarnContext(ctx, "delivery cycle aborted",
		"event_id", evt.ID, "task_id", task.ID, "reason", reason)
	return e.scheduler.Finalize(ctx, task, scheduler.StatusFailure)
}

func (e *Engine) recordAttempt(ctx context.Context, evt *event.Event, attempt event.DeliveryAttempt, result Result) {
	snap := event.ResponseSnapshot{
		StatusCode:  result.StatusCode,
		Headers:     result.Headers,
		Body:        []byte(result.Response),
		Error:       result.Error,
		Attempt:     attempt,
		AttemptedAt: time.Now().UTC(),
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		e.logger.ErrorContext(ctx, "encode response snapshot failed", "event_id", evt.ID, "error", err)
		return
	}

	sealed, err := e.encryptor.Encrypt(ctx, evt.MerchantID, raw)
	if err != nil {
		e.logger.ErrorContext(ctx, "encrypt response snapshot failed", "event_id", evt.ID, "error", err)
		return
	}

	if err := e.store.RecordAttempt(ctx, evt.ID, sealed, result.Success()); err != nil {
		e.logger.ErrorContext(ctx, "record attempt failed", "event_id", evt.ID, "error", err)
	}
}

func (e *Engine) observe(ctx context.Context, evt *event.Event, attempt event.DeliveryAttempt, result Result) {
	status := "failed"
	if result.Success() {
		status = "delivered"
	}

	if e.config.Metrics != nil {
		e.config.Metrics.RecordDelivery(string(attempt), status, float64(result.LatencyMs)/1000.0)
	}

	if e.config.Analytics != nil {
		e.config.Analytics.EmitDelivery(ctx, observability.DeliveryOutcome{
			MerchantID:  evt.MerchantID,
			ProfileID:   evt.ProfileID,
			EventID:     evt.ID.String(),
			EventType:   string(evt.Type),
			ObjectID:    evt.ObjectID,
			Attempt:     string(attempt),
			StatusCode:  result.StatusCode,
			Success:     result.Success(),
			Error:       result.Error,
			AttemptedAt: time.Now().UTC(),
		})
	}
}
