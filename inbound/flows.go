package inbound

import (
	"context"
	"errors"
	"fmt"

	"github.com/fluxpay/webhooks/connector"
	"github.com/fluxpay/webhooks/core"
	"github.com/fluxpay/webhooks/merchant"
)

// paymentFlow applies a payment lifecycle webhook. Processing runs under a
// per-payment lock: connectors redeliver and race, and two concurrent
// updates to one payment must serialize.
func (d *Dispatcher) paymentFlow(ctx context.Context, ref connector.ObjectReference, res *connector.Resource, account *merchant.ConnectorAccount, verified bool) (Outcome, error) {
	p, err := d.resolvePayment(ctx, ref)
	if err != nil {
		// Not-found is fatal too: the webhook may have raced the payment's
		// creation, and failing the request makes the connector redeliver.
		return OutcomeNoEffect, fmt.Errorf("resolve payment %s: %w", ref.PrimaryID(), err)
	}

	unlock, err := d.deps.Locker.Lock(ctx, "payment:"+p.ID)
	if err != nil {
		return OutcomeNoEffect, fmt.Errorf("acquire payment lock: %w", err)
	}
	defer unlock()

	var updated *core.Payment
	if verified && res.Payment != nil {
		updated, err = d.deps.Payments.ApplyStatus(ctx, p, res.Payment.Status)
	} else {
		// Unverified webhooks are hints only: re-read the truth from the
		// connector instead of trusting the payload.
		updated, err = d.deps.Payments.Sync(ctx, p)
	}
	if err != nil {
		return OutcomeNoEffect, fmt.Errorf("update payment %s: %w", p.ID, err)
	}

	d.notifyPayment(ctx, updated)
	return OutcomeProcessed, nil
}

// bankTransferFlow handles source events for bank transfer payments. The
// payload never carries a final state, so the payment is always re-synced
// from the connector.
func (d *Dispatcher) bankTransferFlow(ctx context.Context, ref connector.ObjectReference, account *merchant.ConnectorAccount) (Outcome, error) {
	p, err := d.resolvePayment(ctx, ref)
	if err != nil {
		return OutcomeNoEffect, fmt.Errorf("resolve payment %s: %w", ref.PrimaryID(), err)
	}

	unlock, err := d.deps.Locker.Lock(ctx, "payment:"+p.ID)
	if err != nil {
		return OutcomeNoEffect, fmt.Errorf("acquire payment lock: %w", err)
	}
	defer unlock()

	updated, err := d.deps.Payments.Sync(ctx, p)
	if err != nil {
		return OutcomeNoEffect, fmt.Errorf("sync payment %s: %w", p.ID, err)
	}

	d.notifyPayment(ctx, updated)
	return OutcomeProcessed, nil
}

func (d *Dispatcher) refundFlow(ctx context.Context, ref connector.ObjectReference, res *connector.Resource, account *merchant.ConnectorAccount, verified bool) (Outcome, error) {
	r, err := d.resolveRefund(ctx, ref)
	if err != nil {
		return OutcomeNoEffect, fmt.Errorf("resolve refund %s: %w", ref.PrimaryID(), err)
	}

	var updated *core.Refund
	if verified && res.Refund != nil {
		updated, err = d.deps.Refunds.ApplyStatus(ctx, r, res.Refund.Status)
	} else {
		updated, err = d.deps.Refunds.Sync(ctx, r)
	}
	if err != nil {
		return OutcomeNoEffect, fmt.Errorf("update refund %s: %w", r.ID, err)
	}

	d.notifyRefund(ctx, updated)
	return OutcomeProcessed, nil
}

// disputeFlow creates or advances a dispute. Disputes originate at the
// connector, so an unknown dispute id seeds a new record; known disputes
// only move forward, and a backwards transition is acknowledged without
// effect so redeliveries of stale webhooks stay harmless.
func (d *Dispatcher) disputeFlow(ctx context.Context, ref connector.ObjectReference, res *connector.Resource, account *merchant.ConnectorAccount) (Outcome, error) {
	if res.Dispute == nil {
		return OutcomeNoEffect, errors.New("inbound: dispute payload missing")
	}

	p, err := d.resolvePayment(ctx, ref)
	if err != nil {
		return OutcomeNoEffect, fmt.Errorf("resolve disputed payment %s: %w", ref.PrimaryID(), err)
	}

	existing, err := d.deps.Disputes.FindByConnectorDisputeID(ctx, p.ID, res.Dispute.ConnectorDisputeID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return OutcomeNoEffect, fmt.Errorf("find dispute: %w", err)
	}

	var dp *core.Dispute
	if existing == nil {
		dp, err = d.deps.Disputes.Create(ctx, &core.Dispute{
			PaymentID:          p.ID,
			MerchantID:         p.MerchantID,
			ProfileID:          p.ProfileID,
			ConnectorDisputeID: res.Dispute.ConnectorDisputeID,
			Stage:              res.Dispute.Stage,
			Status:             res.Dispute.Status,
			Amount:             res.Dispute.Amount,
			Currency:           res.Dispute.Currency,
			Public:             res.Dispute.Object,
		})
		if err != nil {
			return OutcomeNoEffect, fmt.Errorf("create dispute: %w", err)
		}
	} else {
		if err := d.deps.Disputes.ValidateTransition(existing, res.Dispute.Stage, res.Dispute.Status); err != nil {
			if errors.Is(err, core.ErrInvalidTransition) {
				d.logger.WarnContext(ctx, "dispute transition rejected",
					"dispute_id", existing.ID,
					"from_stage", existing.Stage, "from_status", existing.Status,
					"to_stage", res.Dispute.Stage, "to_status", res.Dispute.Status)
				return OutcomeNoEffect, nil
			}
			return OutcomeNoEffect, err
		}

		dp, err = d.deps.Disputes.Update(ctx, existing, res.Dispute.Stage, res.Dispute.Status)
		if err != nil {
			return OutcomeNoEffect, fmt.Errorf("update dispute %s: %w", existing.ID, err)
		}
	}

	d.notifyDispute(ctx, dp)
	return OutcomeProcessed, nil
}

func (d *Dispatcher) mandateFlow(ctx context.Context, ref connector.ObjectReference, res *connector.Resource, account *merchant.ConnectorAccount, verified bool) (Outcome, error) {
	m, err := d.resolveMandate(ctx, ref)
	if err != nil {
		return OutcomeNoEffect, fmt.Errorf("resolve mandate %s: %w", ref.PrimaryID(), err)
	}

	var updated *core.Mandate
	if verified && res.Mandate != nil {
		updated, err = d.deps.Mandates.ApplyStatus(ctx, m, res.Mandate.Status)
	} else {
		updated, err = d.deps.Mandates.Sync(ctx, m)
	}
	if err != nil {
		return OutcomeNoEffect, fmt.Errorf("update mandate %s: %w", m.ID, err)
	}

	d.notifyMandate(ctx, updated)
	return OutcomeProcessed, nil
}

// resolvePayment tries each populated reference variant in trust order:
// connector transaction id first, intent id last.
func (d *Dispatcher) resolvePayment(ctx context.Context, ref connector.ObjectReference) (*core.Payment, error) {
	pr := ref.Payment
	if pr == nil {
		return nil, core.ErrNotFound
	}

	if pr.ConnectorTransactionID != "" {
		return d.deps.Payments.FindByConnectorTransactionID(ctx, pr.ConnectorTransactionID)
	}
	if pr.AttemptID != "" {
		return d.deps.Payments.FindByAttemptID(ctx, pr.AttemptID)
	}
	if pr.PreprocessingID != "" {
		return d.deps.Payments.FindByPreprocessingID(ctx, pr.PreprocessingID)
	}
	if pr.IntentID != "" {
		return d.deps.Payments.FindByIntentID(ctx, pr.IntentID)
	}
	return nil, core.ErrNotFound
}

func (d *Dispatcher) resolveRefund(ctx context.Context, ref connector.ObjectReference) (*core.Refund, error) {
	rr := ref.Refund
	if rr == nil {
		return nil, core.ErrNotFound
	}

	if rr.RefundID != "" {
		return d.deps.Refunds.FindByRefundID(ctx, rr.RefundID)
	}
	if rr.ConnectorRefundID != "" {
		return d.deps.Refunds.FindByConnectorRefundID(ctx, rr.ConnectorRefundID)
	}
	return nil, core.ErrNotFound
}

func (d *Dispatcher) resolveMandate(ctx context.Context, ref connector.ObjectReference) (*core.Mandate, error) {
	mr := ref.Mandate
	if mr == nil {
		return nil, core.ErrNotFound
	}

	if mr.MandateID != "" {
		return d.deps.Mandates.FindByMandateID(ctx, mr.MandateID)
	}
	if mr.ConnectorMandateID != "" {
		return d.deps.Mandates.FindByConnectorMandateID(ctx, mr.ConnectorMandateID)
	}
	return nil, core.ErrNotFound
}
