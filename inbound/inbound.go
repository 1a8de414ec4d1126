// Package inbound receives connector webhooks, authenticates them, and
// routes them to the owning resource flow. Every webhook is acknowledged
// with the connector's generic response whether or not it had an effect;
// connectors only see failures that are worth a redelivery.
package inbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/fluxpay/webhooks/connector"
	"github.com/fluxpay/webhooks/core"
	"github.com/fluxpay/webhooks/lock"
	"github.com/fluxpay/webhooks/merchant"
	"github.com/fluxpay/webhooks/observability"
	"github.com/fluxpay/webhooks/outbound"
)

// ErrVerificationFailed means a connector with mandatory verification sent
// a webhook that could not be authenticated. The webhook must be rejected,
// not processed at reduced trust.
var ErrVerificationFailed = errors.New("inbound: source verification failed")

// Route identifies the destination of an inbound webhook, extracted from
// the URL path by the HTTP layer.
type Route struct {
	MerchantID    string
	ConnectorName string

	// AccountID is optional; when empty the merchant's sole account with
	// the connector is used.
	AccountID string
}

// Outcome summarizes what processing a webhook did.
type Outcome string

// Outcomes.
const (
	// OutcomeProcessed means a resource flow ran.
	OutcomeProcessed Outcome = "processed"

	// OutcomeNoEffect means the webhook was acknowledged without
	// processing: unsupported, muted, or a harmless stale redelivery.
	OutcomeNoEffect Outcome = "no_effect"

	// OutcomeRejected means mandatory verification failed.
	OutcomeRejected Outcome = "rejected"
)

// Deps are the collaborators a Dispatcher needs.
type Deps struct {
	Registry  *connector.Registry
	Merchants *merchant.Service
	Payments  core.PaymentCore
	Refunds   core.RefundCore
	Disputes  core.DisputeCore
	Mandates  core.MandateCore
	Notifier  *outbound.Notifier
	Locker    lock.Locker
	Metrics   *observability.Metrics
	Tracer    *observability.Tracer
}

// Dispatcher drives inbound webhook processing end to end.
type Dispatcher struct {
	deps   Deps
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(deps Deps, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewMemory()
	}
	return &Dispatcher{deps: deps, logger: logger}
}

// Process handles one inbound webhook: decode, classify, authenticate,
// route to the resource flow, and build the connector acknowledgement.
//
// The returned AckResponse is non-nil whenever the webhook reached
// classification, including the no-effect paths; the connector must not
// redeliver webhooks the platform chose to ignore.
func (d *Dispatcher) Process(ctx context.Context, req *connector.IncomingRequest, route Route) (*connector.AckResponse, Outcome, error) {
	var span trace.Span
	if d.deps.Tracer != nil {
		ctx, span = d.deps.Tracer.StartDispatchSpan(ctx, route.ConnectorName, route.MerchantID)
		defer span.End()
	}

	adapter, err := d.deps.Registry.Get(route.ConnectorName)
	if err != nil {
		return nil, OutcomeNoEffect, err
	}

	account, err := d.deps.Merchants.ResolveAccount(ctx, route.MerchantID, route.ConnectorName, route.AccountID)
	if err != nil {
		return nil, OutcomeNoEffect, err
	}

	decoded, err := adapter.DecodeBody(req)
	if err != nil {
		return nil, OutcomeNoEffect, fmt.Errorf("decode body: %w", err)
	}
	req.ReplaceBody(decoded)

	eventType, err := adapter.ClassifyEvent(req)
	if err != nil {
		if errors.Is(err, connector.ErrEventNotRecognized) {
			return d.ack(req, adapter, route, OutcomeNoEffect, "event not recognized")
		}
		return nil, OutcomeNoEffect, fmt.Errorf("classify event: %w", err)
	}

	if !eventType.Supported() {
		return d.ack(req, adapter, route, OutcomeNoEffect, "event not supported")
	}
	if account.EventDisabled(string(eventType)) {
		return d.ack(req, adapter, route, OutcomeNoEffect, "event muted for account")
	}

	// Verification failures collapse to unverified unless the connector
	// demands authenticity; unverified webhooks are processed as hints
	// through the force-sync path.
	verified, err := adapter.VerifySource(ctx, req, account)
	if err != nil {
		d.logger.WarnContext(ctx, "source verification errored",
			"connector", route.ConnectorName, "merchant_id", route.MerchantID, "error", err)
		verified = false
	}
	if !verified && adapter.VerificationMandatory() {
		d.count(route.ConnectorName, string(OutcomeRejected))
		return nil, OutcomeRejected, ErrVerificationFailed
	}

	ref, err := adapter.ObjectReference(req)
	if err != nil {
		return nil, OutcomeNoEffect, fmt.Errorf("object reference: %w", err)
	}

	res, err := adapter.DecodeResource(req)
	if err != nil {
		return nil, OutcomeNoEffect, fmt.Errorf("decode resource: %w", err)
	}

	outcome, err := d.route(ctx, eventType, ref, res, account, verified)
	if err != nil {
		d.count(route.ConnectorName, "error")
		return nil, outcome, err
	}

	return d.ack(req, adapter, route, outcome, "")
}

func (d *Dispatcher) route(ctx context.Context, eventType connector.EventType, ref connector.ObjectReference, res *connector.Resource, account *merchant.ConnectorAccount, verified bool) (Outcome, error) {
	switch eventType.Flow() {
	case connector.FlowPayment:
		return d.paymentFlow(ctx, ref, res, account, verified)
	case connector.FlowBankTransfer:
		return d.bankTransferFlow(ctx, ref, account)
	case connector.FlowRefund:
		return d.refundFlow(ctx, ref, res, account, verified)
	case connector.FlowDispute:
		return d.disputeFlow(ctx, ref, res, account)
	case connector.FlowMandate:
		return d.mandateFlow(ctx, ref, res, account, verified)
	default:
		return OutcomeNoEffect, nil
	}
}

func (d *Dispatcher) ack(req *connector.IncomingRequest, adapter connector.Adapter, route Route, outcome Outcome, reason string) (*connector.AckResponse, Outcome, error) {
	if reason != "" {
		d.logger.Debug("webhook acknowledged without processing",
			"connector", route.ConnectorName, "merchant_id", route.MerchantID, "reason", reason)
	}
	d.count(route.ConnectorName, string(outcome))

	ack, err := adapter.AckResponse(req)
	if err != nil {
		return nil, outcome, fmt.Errorf("build ack: %w", err)
	}
	return ack, outcome, nil
}

func (d *Dispatcher) count(connectorName, outcome string) {
	if d.deps.Metrics != nil {
		d.deps.Metrics.RecordIncoming(connectorName, outcome)
	}
}
