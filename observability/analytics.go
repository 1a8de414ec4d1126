package observability

import (
	"context"
	"log/slog"
	"time"
)

// DeliveryOutcome is the analytics record for one outbound delivery
// attempt. It carries identifiers and statuses only; payload bodies never
// leave the encrypted store.
type DeliveryOutcome struct {
	MerchantID  string
	ProfileID   string
	EventID     string
	EventType   string
	ObjectID    string
	Attempt     string
	StatusCode  int
	Success     bool
	Error       string
	AttemptedAt time.Time
}

// Emitter publishes delivery outcomes to an analytics sink.
type Emitter interface {
	EmitDelivery(ctx context.Context, o DeliveryOutcome)
}

// LogEmitter writes outcomes to structured logs, the default sink.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter creates a log-backed emitter.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

func (e *LogEmitter) EmitDelivery(ctx context.Context, o DeliveryOutcome) {
	e.logger.InfoContext(ctx, "delivery outcome",
		"merchant_id", o.MerchantID,
		"profile_id", o.ProfileID,
		"event_id", o.EventID,
		"event_type", o.EventType,
		"object_id", o.ObjectID,
		"attempt", o.Attempt,
		"status_code", o.StatusCode,
		"success", o.Success,
		"error", o.Error,
	)
}

// NopEmitter discards outcomes.
type NopEmitter struct{}

func (NopEmitter) EmitDelivery(context.Context, DeliveryOutcome) {}
