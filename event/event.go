// Package event defines the outgoing webhook event record: the persisted,
// idempotent unit of merchant notification.
package event

import (
	"time"

	"github.com/fluxpay/webhooks/id"
	"github.com/fluxpay/webhooks/internal/entity"
)

// Type is an outward-facing event type delivered to merchants.
type Type string

// Outward event types, one per notify-worthy lifecycle transition.
const (
	TypePaymentSucceeded  Type = "payment_succeeded"
	TypePaymentFailed     Type = "payment_failed"
	TypePaymentProcessing Type = "payment_processing"
	TypePaymentCancelled  Type = "payment_cancelled"
	TypePaymentAuthorized Type = "payment_authorized"
	TypePaymentCaptured   Type = "payment_captured"
	TypeActionRequired    Type = "action_required"

	TypeRefundSucceeded Type = "refund_succeeded"
	TypeRefundFailed    Type = "refund_failed"

	TypeDisputeOpened     Type = "dispute_opened"
	TypeDisputeExpired    Type = "dispute_expired"
	TypeDisputeAccepted   Type = "dispute_accepted"
	TypeDisputeCancelled  Type = "dispute_cancelled"
	TypeDisputeChallenged Type = "dispute_challenged"
	TypeDisputeWon        Type = "dispute_won"
	TypeDisputeLost       Type = "dispute_lost"

	TypeMandateActive  Type = "mandate_active"
	TypeMandateRevoked Type = "mandate_revoked"
)

// Class groups outward event types by the business object they concern.
type Class string

// Event classes.
const (
	ClassPayments Class = "payments"
	ClassRefunds  Class = "refunds"
	ClassDisputes Class = "disputes"
	ClassMandates Class = "mandates"
)

// ObjectType names the kind of business object an event is about.
type ObjectType string

// Object types.
const (
	ObjectPayment ObjectType = "payment"
	ObjectRefund  ObjectType = "refund"
	ObjectDispute ObjectType = "dispute"
	ObjectMandate ObjectType = "mandate"
)

// DeliveryAttempt identifies which branch of the retry state machine a
// delivery runs under.
type DeliveryAttempt string

// Delivery attempt kinds.
const (
	AttemptInitial        DeliveryAttempt = "initial_attempt"
	AttemptAutomaticRetry DeliveryAttempt = "automatic_retry"
	AttemptManualRetry    DeliveryAttempt = "manual_retry"
)

// Class returns the event class for an outward event type.
func (t Type) Class() Class {
	switch t {
	case TypeRefundSucceeded, TypeRefundFailed:
		return ClassRefunds
	case TypeDisputeOpened, TypeDisputeExpired, TypeDisputeAccepted,
		TypeDisputeCancelled, TypeDisputeChallenged, TypeDisputeWon, TypeDisputeLost:
		return ClassDisputes
	case TypeMandateActive, TypeMandateRevoked:
		return ClassMandates
	default:
		return ClassPayments
	}
}

// Event is a persisted outgoing webhook notification.
//
// Request holds the encrypted signed request snapshot; Response holds the
// encrypted outcome of the most recent delivery attempt and stays nil until
// the first attempt completes. Per-attempt response history is kept by the
// store (AppendAttempt), the event record only mirrors the latest.
type Event struct {
	entity.Entity

	// ID is the unique TypeID for this event.
	ID id.ID `json:"id"`

	// MerchantID identifies the merchant being notified.
	MerchantID string `json:"merchant_id"`

	// ProfileID identifies the business profile the event was raised under.
	ProfileID string `json:"business_profile_id"`

	// Type is the outward event type.
	Type Type `json:"event_type"`

	// Class is the event class derived from the type.
	Class Class `json:"event_class"`

	// ObjectID is the primary business object id (payment id, refund id, ...).
	ObjectID string `json:"primary_object_id"`

	// ObjectType is the kind of business object.
	ObjectType ObjectType `json:"primary_object_type"`

	// ObjectCreatedAt is when the primary object was created, if known.
	ObjectCreatedAt *time.Time `json:"primary_object_created_at,omitempty"`

	// IdempotentEventID is the deterministic key that deduplicates initial
	// notifications for the same (object, type) pair. Unique per merchant.
	IdempotentEventID string `json:"idempotent_event_id"`

	// InitialAttemptID is the event id of the first attempt in the retry
	// chain. Equal to ID for initial attempts.
	InitialAttemptID id.ID `json:"initial_attempt_id"`

	// Attempt is the delivery attempt kind this record was created under.
	Attempt DeliveryAttempt `json:"delivery_attempt"`

	// IsNotified reports whether any delivery attempt has received a 2xx.
	IsNotified bool `json:"is_webhook_notified"`

	// Request is the encrypted serialized request snapshot.
	Request []byte `json:"request,omitempty"`

	// Response is the encrypted serialized outcome of the latest attempt.
	Response []byte `json:"response,omitempty"`
}

// RequestSnapshot is the plaintext form of the stored request: everything
// needed to replay the signed delivery, except the URL which is re-resolved
// on every attempt.
type RequestSnapshot struct {
	Headers map[string]string `json:"headers"`
	Body    []byte            `json:"body"`
}

// ResponseSnapshot is the plaintext form of a stored delivery outcome.
type ResponseSnapshot struct {
	StatusCode  int               `json:"status_code"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        []byte            `json:"body,omitempty"`
	Error       string            `json:"error,omitempty"`
	Attempt     DeliveryAttempt   `json:"attempt"`
	AttemptedAt time.Time         `json:"attempted_at"`
}
