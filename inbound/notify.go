package inbound

import (
	"context"
	"time"

	"github.com/fluxpay/webhooks/core"
	"github.com/fluxpay/webhooks/event"
	"github.com/fluxpay/webhooks/outbound"
)

// PaymentEventType maps an internal payment status to the outward event
// type it announces. Pending is internal-only.
func PaymentEventType(status core.PaymentStatus) (event.Type, bool) {
	switch status {
	case core.PaymentCharged:
		return event.TypePaymentSucceeded, true
	case core.PaymentFailed:
		return event.TypePaymentFailed, true
	case core.PaymentProcessing:
		return event.TypePaymentProcessing, true
	case core.PaymentCancelled:
		return event.TypePaymentCancelled, true
	case core.PaymentAuthorized:
		return event.TypePaymentAuthorized, true
	case core.PaymentActionRequired:
		return event.TypeActionRequired, true
	default:
		return "", false
	}
}

// RefundEventType maps an internal refund status to the outward event type.
func RefundEventType(status core.RefundStatus) (event.Type, bool) {
	switch status {
	case core.RefundSuccess:
		return event.TypeRefundSucceeded, true
	case core.RefundFailure:
		return event.TypeRefundFailed, true
	default:
		return "", false
	}
}

// DisputeEventType maps an internal dispute status to the outward event
// type.
func DisputeEventType(status core.DisputeStatus) (event.Type, bool) {
	switch status {
	case core.DisputeOpened:
		return event.TypeDisputeOpened, true
	case core.DisputeExpired:
		return event.TypeDisputeExpired, true
	case core.DisputeAccepted:
		return event.TypeDisputeAccepted, true
	case core.DisputeCancelled:
		return event.TypeDisputeCancelled, true
	case core.DisputeChallenged:
		return event.TypeDisputeChallenged, true
	case core.DisputeWon:
		return event.TypeDisputeWon, true
	case core.DisputeLost:
		return event.TypeDisputeLost, true
	default:
		return "", false
	}
}

// MandateEventType maps an internal mandate status to the outward event
// type. Only terminal activations and revocations are announced.
func MandateEventType(status core.MandateStatus) (event.Type, bool) {
	switch status {
	case core.MandateActive:
		return event.TypeMandateActive, true
	case core.MandateRevoked:
		return event.TypeMandateRevoked, true
	default:
		return "", false
	}
}

func (d *Dispatcher) notifyPayment(ctx context.Context, p *core.Payment) {
	t, ok := PaymentEventType(p.Status)
	if !ok {
		return
	}
	d.trigger(ctx, outbound.CreateInput{
		MerchantID:      p.MerchantID,
		ProfileID:       p.ProfileID,
		EventType:       t,
		ObjectID:        p.ID,
		ObjectType:      event.ObjectPayment,
		Content:         p.Public,
		ObjectCreatedAt: objectTime(p.CreatedAt),
	})
}

func (d *Dispatcher) notifyRefund(ctx context.Context, r *core.Refund) {
	t, ok := RefundEventType(r.Status)
	if !ok {
		return
	}
	d.trigger(ctx, outbound.CreateInput{
		MerchantID:      r.MerchantID,
		ProfileID:       r.ProfileID,
		EventType:       t,
		ObjectID:        r.ID,
		ObjectType:      event.ObjectRefund,
		Content:         r.Public,
		ObjectCreatedAt: objectTime(r.CreatedAt),
	})
}

func (d *Dispatcher) notifyDispute(ctx context.Context, dp *core.Dispute) {
	t, ok := DisputeEventType(dp.Status)
	if !ok {
		return
	}
	d.trigger(ctx, outbound.CreateInput{
		MerchantID:      dp.MerchantID,
		ProfileID:       dp.ProfileID,
		EventType:       t,
		ObjectID:        dp.ID,
		ObjectType:      event.ObjectDispute,
		Content:         dp.Public,
		ObjectCreatedAt: objectTime(dp.CreatedAt),
	})
}

func (d *Dispatcher) notifyMandate(ctx context.Context, m *core.Mandate) {
	t, ok := MandateEventType(m.Status)
	if !ok {
		return
	}
	d.trigger(ctx, outbound.CreateInput{
		MerchantID:      m.MerchantID,
		ProfileID:       m.ProfileID,
		EventType:       t,
		ObjectID:        m.ID,
		ObjectType:      event.ObjectMandate,
		Content:         m.Public,
		ObjectCreatedAt: objectTime(m.CreatedAt),
	})
}

// trigger fires the outbound notification. The internal state change is
// already committed; a notification failure is logged and absorbed so the
// connector is not asked to redeliver a webhook that was fully applied.
func (d *Dispatcher) trigger(ctx context.Context, in outbound.CreateInput) {
	if d.deps.Notifier == nil {
		return
	}
	if _, err := d.deps.Notifier.CreateAndTrigger(ctx, in); err != nil {
		d.logger.ErrorContext(ctx, "outbound notification failed",
			"event_type", in.EventType, "object_id", in.ObjectID, "error", err)
	}
}

func objectTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
