package webhooks

import (
	"log/slog"
	"time"

	"github.com/fluxpay/webhooks/connector"
	"github.com/fluxpay/webhooks/core"
	"github.com/fluxpay/webhooks/crypt"
	"github.com/fluxpay/webhooks/delivery"
	"github.com/fluxpay/webhooks/dlq"
	"github.com/fluxpay/webhooks/inbound"
	"github.com/fluxpay/webhooks/lock"
	"github.com/fluxpay/webhooks/merchant"
	"github.com/fluxpay/webhooks/observability"
	"github.com/fluxpay/webhooks/outbound"
	"github.com/fluxpay/webhooks/scheduler"
	"github.com/fluxpay/webhooks/store"
)

// Pipeline is the root webhook subsystem: the inbound dispatcher and the
// outbound notifier, wired over one store.
type Pipeline struct {
	config    Config
	store     store.Store
	registry  *connector.Registry
	payments  core.PaymentCore
	refunds   core.RefundCore
	disputes  core.DisputeCore
	mandates  core.MandateCore
	locker    lock.Locker
	encryptor crypt.Encryptor
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	analytics observability.Emitter
	logger    *slog.Logger

	merchantSvc *merchant.Service
	scheduler   *scheduler.Scheduler
	engine      *delivery.Engine
	pool        *delivery.Pool
	poller      *scheduler.Poller
	notifier    *outbound.Notifier
	dispatcher  *inbound.Dispatcher
	dlqSvc      *dlq.Service
}

// Option configures a Pipeline instance.
type Option func(*Pipeline) error

// New creates a new Pipeline with the given options. A store is required;
// everything else has working defaults.
func New(opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		config:   DefaultConfig(),
		registry: connector.NewRegistry(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if p.store == nil {
		return nil, ErrNoStore
	}
	p.wireServices()
	return p, nil
}

// WithStore sets the persistence backend.
func WithStore(s store.Store) Option {
	return func(p *Pipeline) error {
		p.store = s
		return nil
	}
}

// WithConnector registers a connector adapter.
func WithConnector(a connector.Adapter) Option {
	return func(p *Pipeline) error {
		p.registry.Register(a)
		return nil
	}
}

// WithPaymentCore wires the payment state owner.
func WithPaymentCore(c core.PaymentCore) Option {
	return func(p *Pipeline) error {
		p.payments = c
		return nil
	}
}

// WithRefundCore wires the refund state owner.
func WithRefundCore(c core.RefundCore) Option {
	return func(p *Pipeline) error {
		p.refunds = c
		return nil
	}
}

// WithDisputeCore wires the dispute state owner.
func WithDisputeCore(c core.DisputeCore) Option {
	return func(p *Pipeline) error {
		p.disputes = c
		return nil
	}
}

// WithMandateCore wires the mandate state owner.
func WithMandateCore(c core.MandateCore) Option {
	return func(p *Pipeline) error {
		p.mandates = c
		return nil
	}
}

// WithLocker sets the payment-scoped locker. Defaults to the in-process
// locker; multi-node deployments should use lock/redislock.
func WithLocker(l lock.Locker) Option {
	return func(p *Pipeline) error {
		p.locker = l
		return nil
	}
}

// WithEncryptor sets the payload encryptor. Defaults to plaintext storage,
// which is only acceptable outside production.
func WithEncryptor(e crypt.Encryptor) Option {
	return func(p *Pipeline) error {
		p.encryptor = e
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		p.logger = logger
		return nil
	}
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) error {
		p.metrics = m
		return nil
	}
}

// WithTracer sets the tracer.
func WithTracer(t *observability.Tracer) Option {
	return func(p *Pipeline) error {
		p.tracer = t
		return nil
	}
}

// WithAnalytics sets the delivery analytics sink.
func WithAnalytics(e observability.Emitter) Option {
	return func(p *Pipeline) error {
		p.analytics = e
		return nil
	}
}

// WithConcurrency sets the number of retry worker goroutines.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) error {
		p.config.Concurrency = n
		return nil
	}
}

// WithPollInterval sets how often the retry poller checks for due tasks.
func WithPollInterval(d time.Duration) Option {
	return func(p *Pipeline) error {
		p.config.PollInterval = d
		return nil
	}
}

// WithBatchSize sets the maximum number of tasks claimed per poll cycle.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) error {
		p.config.BatchSize = n
		return nil
	}
}

// WithRequestTimeout sets the HTTP timeout per delivery attempt.
func WithRequestTimeout(d time.Duration) Option {
	return func(p *Pipeline) error {
		p.config.RequestTimeout = d
		return nil
	}
}

// WithRetryBudget sets the default cap on automatic retries per cycle.
func WithRetryBudget(n int) Option {
	return func(p *Pipeline) error {
		p.config.RetryBudget = n
		return nil
	}
}

// WithRetrySchedule sets the backoff intervals between automatic retries.
func WithRetrySchedule(schedule []time.Duration) Option {
	return func(p *Pipeline) error {
		p.config.RetrySchedule = schedule
		return nil
	}
}

// WithShutdownTimeout sets the maximum wait for in-flight deliveries on
// shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(p *Pipeline) error {
		p.config.ShutdownTimeout = d
		return nil
	}
}
