// Package observability bundles the metric instruments, tracing spans and
// analytics events the webhook subsystem emits.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the webhook subsystem's metric instruments.
type Metrics struct {
	IncomingTotal   *prometheus.CounterVec
	OutgoingTotal   *prometheus.CounterVec
	DeliveryLatency prometheus.Histogram
	DLQSize         prometheus.Gauge
	PendingRetries  prometheus.Gauge
}

// NewMetrics creates and registers the instruments on the given registerer.
// Pass prometheus.DefaultRegisterer for standalone usage.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IncomingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhooks_incoming_total",
			Help: "Inbound connector webhooks by connector and outcome.",
		}, []string{"connector", "outcome"}),
		OutgoingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhooks_outgoing_total",
			Help: "Outbound delivery attempts by attempt kind and status.",
		}, []string{"attempt", "status"}),
		DeliveryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "webhooks_delivery_latency_seconds",
			Help:    "Outbound delivery request latency.",
			Buckets: prometheus.DefBuckets,
		}),
		DLQSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "webhooks_dlq_size",
			Help: "Entries currently in the dead letter queue.",
		}),
		PendingRetries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "webhooks_pending_retries",
			Help: "Unfinished retry tasks.",
		}),
	}
	reg.MustRegister(m.IncomingTotal, m.OutgoingTotal, m.DeliveryLatency, m.DLQSize, m.PendingRetries)
	return m
}

// RecordIncoming records an inbound webhook outcome.
func (m *Metrics) RecordIncoming(connector, outcome string) {
	m.IncomingTotal.WithLabelValues(connector, outcome).Inc()
}

// RecordDelivery records an outbound delivery attempt.
func (m *Metrics) RecordDelivery(attempt, status string, latencySeconds float64) {
	m.OutgoingTotal.WithLabelValues(attempt, status).Inc()
	m.DeliveryLatency.Observe(latencySeconds)
}
