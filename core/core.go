// Package core declares the contracts the webhook pipeline has with the
// platform's business cores: payment, refund, dispute and mandate state
// owners. The pipeline resolves, updates and re-syncs business objects
// exclusively through these interfaces; the state machines themselves live
// outside this subsystem.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Errors surfaced by business-core implementations.
var (
	// ErrNotFound is returned when no business object matches a reference id.
	ErrNotFound = errors.New("core: resource not found")

	// ErrInvalidTransition is returned by the dispute transition validator
	// when a webhook would move a dispute backwards.
	ErrInvalidTransition = errors.New("core: invalid dispute transition")
)

// PaymentStatus is the internal payment state as owned by the payment core.
type PaymentStatus string

// Payment statuses.
const (
	PaymentPending        PaymentStatus = "pending"
	PaymentProcessing     PaymentStatus = "processing"
	PaymentAuthorized     PaymentStatus = "authorized"
	PaymentCharged        PaymentStatus = "charged"
	PaymentFailed         PaymentStatus = "failed"
	PaymentCancelled      PaymentStatus = "cancelled"
	PaymentActionRequired PaymentStatus = "action_required"
)

// RefundStatus is the internal refund state.
type RefundStatus string

// Refund statuses.
const (
	RefundPending RefundStatus = "pending"
	RefundSuccess RefundStatus = "success"
	RefundFailure RefundStatus = "failure"
)

// DisputeStage orders the dispute lifecycle coarsely; a dispute never moves
// to an earlier stage.
type DisputeStage string

// Dispute stages.
const (
	StagePreDispute     DisputeStage = "pre_dispute"
	StageDispute        DisputeStage = "dispute"
	StagePreArbitration DisputeStage = "pre_arbitration"
)

// DisputeStatus is the internal dispute state within a stage.
type DisputeStatus string

// Dispute statuses.
const (
	DisputeOpened     DisputeStatus = "opened"
	DisputeExpired    DisputeStatus = "expired"
	DisputeAccepted   DisputeStatus = "accepted"
	DisputeCancelled  DisputeStatus = "cancelled"
	DisputeChallenged DisputeStatus = "challenged"
	DisputeWon        DisputeStatus = "won"
	DisputeLost       DisputeStatus = "lost"
)

// MandateStatus is the internal mandate state.
type MandateStatus string

// Mandate statuses.
const (
	MandatePending  MandateStatus = "pending"
	MandateActive   MandateStatus = "active"
	MandateInactive MandateStatus = "inactive"
	MandateRevoked  MandateStatus = "revoked"
)

// Payment is the pipeline's view of a payment: identity, state, and the
// public representation used as outbound notification content.
type Payment struct {
	ID         string
	MerchantID string
	ProfileID  string
	Status     PaymentStatus
	CreatedAt  time.Time
	Public     json.RawMessage
}

// Refund is the pipeline's view of a refund.
type Refund struct {
	ID         string
	PaymentID  string
	MerchantID string
	ProfileID  string
	Status     RefundStatus
	CreatedAt  time.Time
	Public     json.RawMessage
}

// Dispute is the pipeline's view of a dispute.
type Dispute struct {
	ID                 string
	PaymentID          string
	MerchantID         string
	ProfileID          string
	ConnectorDisputeID string
	Stage              DisputeStage
	Status             DisputeStatus
	Amount             string
	Currency           string
	CreatedAt          time.Time
	Public             json.RawMessage
}

// Mandate is the pipeline's view of a mandate.
type Mandate struct {
	ID                 string
	MerchantID         string
	ProfileID          string
	ConnectorMandateID string
	Status             MandateStatus
	CreatedAt          time.Time
	Public             json.RawMessage
}

// PaymentCore resolves and mutates payments.
type PaymentCore interface {
	// Lookups, one per reference-id variant. Each returns ErrNotFound when
	// no payment matches.
	FindByConnectorTransactionID(ctx context.Context, txnID string) (*Payment, error)
	FindByAttemptID(ctx context.Context, attemptID string) (*Payment, error)
	FindByPreprocessingID(ctx context.Context, preprocessingID string) (*Payment, error)
	FindByIntentID(ctx context.Context, intentID string) (*Payment, error)

	// ApplyStatus transitions the payment to the status decoded from a
	// verified webhook payload.
	ApplyStatus(ctx context.Context, p *Payment, status PaymentStatus) (*Payment, error)

	// Sync re-fetches the payment state from the connector. Used when the
	// webhook source could not be verified and for bank-transfer signals
	// whose payloads carry no final state.
	Sync(ctx context.Context, p *Payment) (*Payment, error)
}

// RefundCore resolves and mutates refunds.
type RefundCore interface {
	FindByRefundID(ctx context.Context, refundID string) (*Refund, error)
	FindByConnectorRefundID(ctx context.Context, connectorRefundID string) (*Refund, error)

	ApplyStatus(ctx context.Context, r *Refund, status RefundStatus) (*Refund, error)
	Sync(ctx context.Context, r *Refund) (*Refund, error)
}

// DisputeCore resolves and mutates disputes.
type DisputeCore interface {
	// FindByConnectorDisputeID returns ErrNotFound when the platform has no
	// record of the dispute yet; the dispute flow then creates one.
	FindByConnectorDisputeID(ctx context.Context, paymentID, connectorDisputeID string) (*Dispute, error)

	// Create seeds a new dispute record from a connector webhook.
	Create(ctx context.Context, d *Dispute) (*Dispute, error)

	// ValidateTransition reports whether (from stage/status) -> (to
	// stage/status) is an allowed forward move. Returns ErrInvalidTransition
	// otherwise; the stored dispute must remain untouched in that case.
	ValidateTransition(d *Dispute, toStage DisputeStage, toStatus DisputeStatus) error

	// Update applies a validated stage/status change.
	Update(ctx context.Context, d *Dispute, toStage DisputeStage, toStatus DisputeStatus) (*Dispute, error)
}

// MandateCore resolves and mutates mandates.
type MandateCore interface {
	FindByMandateID(ctx context.Context, mandateID string) (*Mandate, error)
	FindByConnectorMandateID(ctx context.Context, connectorMandateID string) (*Mandate, error)

	ApplyStatus(ctx context.Context, m *Mandate, status MandateStatus) (*Mandate, error)
	Sync(ctx context.Context, m *Mandate) (*Mandate, error)
}
