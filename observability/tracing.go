package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/fluxpay/webhooks"

// Tracer provides OpenTelemetry tracing for webhook processing.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer against the global provider.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartDispatchSpan starts a span for inbound webhook processing.
func (t *Tracer) StartDispatchSpan(ctx context.Context, connector, merchantID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "webhooks.dispatch",
		trace.WithAttributes(
			attribute.String("webhooks.connector", connector),
			attribute.String("webhooks.merchant_id", merchantID),
		),
	)
}

// StartDeliverySpan starts a span for an outbound delivery attempt.
func (t *Tracer) StartDeliverySpan(ctx context.Context, eventID, attempt string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "webhooks.delivery",
		trace.WithAttributes(
			attribute.String("webhooks.event_id", eventID),
			attribute.String("webhooks.attempt", attempt),
		),
	)
}

// EndDeliverySpan ends a delivery span with result attributes.
func (t *Tracer) EndDeliverySpan(span trace.Span, statusCode, latencyMs int, err string) {
	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.Int("webhooks.latency_ms", latencyMs),
	)
	if err != "" {
		span.SetAttributes(attribute.String("webhooks.error", err))
	}
	span.End()
}
