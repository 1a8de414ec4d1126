package webhooks

import (
	"context"
	"fmt"

	"github.com/fluxpay/webhooks/connector"
	"github.com/fluxpay/webhooks/delivery"
	"github.com/fluxpay/webhooks/dlq"
	"github.com/fluxpay/webhooks/inbound"
	"github.com/fluxpay/webhooks/merchant"
	"github.com/fluxpay/webhooks/outbound"
	"github.com/fluxpay/webhooks/ratelimit"
	"github.com/fluxpay/webhooks/scheduler"
	"github.com/fluxpay/webhooks/store"
)

// wireServices initializes the internal services after options have been
// applied.
func (p *Pipeline) wireServices() {
	p.merchantSvc = merchant.NewService(p.store, p.logger)

	policy := scheduler.DefaultPolicy()
	if len(p.config.RetrySchedule) > 0 || p.config.RetryBudget > 0 {
		schedule := p.config.RetrySchedule
		if len(schedule) == 0 {
			schedule = scheduler.DefaultSchedule
		}
		budget := p.config.RetryBudget
		if budget <= 0 {
			budget = scheduler.DefaultBudget
		}
		policy = scheduler.SchedulePolicy(schedule, budget)
	}
	p.scheduler = scheduler.New(p.store, policy, p.logger)

	p.dlqSvc = dlq.NewService(p.store, p.logger)

	p.engine = delivery.NewEngine(p.store, p.scheduler, p.dlqSvc, ratelimit.New(), p.encryptor, delivery.EngineConfig{
		RequestTimeout: p.config.RequestTimeout,
		Metrics:        p.metrics,
		Tracer:         p.tracer,
		Analytics:      p.analytics,
	}, p.logger)

	p.pool = delivery.NewPool(p.config.DeliveryPoolSize, p.logger)

	p.poller = scheduler.NewPoller(p.store, p.engine, scheduler.PollerConfig{
		Concurrency:  p.config.Concurrency,
		PollInterval: p.config.PollInterval,
		BatchSize:    p.config.BatchSize,
	}, p.logger)

	p.notifier = outbound.NewNotifier(p.store, p.scheduler, p.engine, p.pool, p.encryptor, p.logger)

	p.dlqSvc.SetReplayer(&dlqReplayer{pipeline: p})

	p.dispatcher = inbound.NewDispatcher(inbound.Deps{
		Registry:  p.registry,
		Merchants: p.merchantSvc,
		Payments:  p.payments,
		Refunds:   p.refunds,
		Disputes:  p.disputes,
		Mandates:  p.mandates,
		Notifier:  p.notifier,
		Locker:    p.locker,
		Metrics:   p.metrics,
		Tracer:    p.tracer,
	}, p.logger)
}

// Start begins the retry poller.
func (p *Pipeline) Start(ctx context.Context) {
	p.poller.Start(ctx)
}

// Stop shuts the poller down and waits for in-flight deliveries.
func (p *Pipeline) Stop(ctx context.Context) {
	stopCtx, cancel := context.WithTimeout(ctx, p.config.ShutdownTimeout)
	defer cancel()

	p.poller.Stop(stopCtx)
	p.pool.Wait()
}

// Dispatcher returns the inbound webhook dispatcher.
func (p *Pipeline) Dispatcher() *inbound.Dispatcher {
	return p.dispatcher
}

// Notifier returns the outbound notifier, for triggering merchant
// notifications from business flows directly.
func (p *Pipeline) Notifier() *outbound.Notifier {
	return p.notifier
}

// Scheduler returns the retry scheduler, for wiring an external job queue
// through SetNotifier.
func (p *Pipeline) Scheduler() *scheduler.Scheduler {
	return p.scheduler
}

// Engine returns the delivery engine; it implements scheduler.Executor for
// external job queues.
func (p *Pipeline) Engine() *delivery.Engine {
	return p.engine
}

// Merchants returns the merchant configuration service.
func (p *Pipeline) Merchants() *merchant.Service {
	return p.merchantSvc
}

// DLQ returns the dead letter queue service.
func (p *Pipeline) DLQ() *dlq.Service {
	return p.dlqSvc
}

// Store returns the underlying store.
func (p *Pipeline) Store() store.Store {
	return p.store
}

// Connectors returns the connector adapter registry.
func (p *Pipeline) Connectors() *connector.Registry {
	return p.registry
}

// dlqReplayer re-drives a dead-lettered cycle: it re-enqueues a fresh retry
// task at attempt zero against the event's frozen request snapshot.
type dlqReplayer struct {
	pipeline *Pipeline
}

func (r *dlqReplayer) ReplayEntry(ctx context.Context, e *dlq.Entry) error {
	p := r.pipeline

	evt, err := p.store.GetEvent(ctx, e.EventID)
	if err != nil {
		return fmt.Errorf("webhooks: load dead-lettered event: %w", err)
	}

	profile, err := p.store.GetProfile(ctx, e.MerchantID, e.ProfileID)
	if err != nil {
		return fmt.Errorf("webhooks: load profile for replay: %w", err)
	}

	task := &scheduler.RetryTask{
		MerchantID:       evt.MerchantID,
		ProfileID:        evt.ProfileID,
		EventType:        evt.Type,
		Class:            evt.Class,
		ObjectID:         evt.ObjectID,
		ObjectType:       evt.ObjectType,
		InitialAttemptID: evt.InitialAttemptID,
	}
	if err := p.scheduler.Enqueue(ctx, task, profile); err != nil {
		return fmt.Errorf("webhooks: enqueue replay task: %w", err)
	}

	p.logger.InfoContext(ctx, "dead-lettered event re-enqueued",
		"dlq_id", e.ID, "event_id", evt.ID, "task_id", task.ID)
	return nil
}

// ensure interface conformance for the pieces external callers swap in
var (
	_ scheduler.Executor = (*delivery.Engine)(nil)
	_ dlq.Replayer       = (*dlqReplayer)(nil)
)
