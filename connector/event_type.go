package connector

// EventType is the closed set of inbound lifecycle signals a connector
// webhook can carry. EventNotSupported is the sentinel for signals the
// platform understands structurally but does not process.
type EventType string

// Inbound event types.
const (
	EventPaymentSuccess              EventType = "payment_intent_success"
	EventPaymentFailure              EventType = "payment_intent_failure"
	EventPaymentProcessing           EventType = "payment_intent_processing"
	EventPaymentCancelled            EventType = "payment_intent_cancelled"
	EventPaymentAuthorizationSuccess EventType = "payment_intent_authorization_success"
	EventPaymentAuthorizationFailure EventType = "payment_intent_authorization_failure"
	EventPaymentCaptureSuccess       EventType = "payment_intent_capture_success"
	EventPaymentCaptureFailure       EventType = "payment_intent_capture_failure"
	EventPaymentActionRequired       EventType = "payment_action_required"

	EventSourceChargeable         EventType = "source_chargeable"
	EventSourceTransactionCreated EventType = "source_transaction_created"

	EventRefundSuccess EventType = "refund_success"
	EventRefundFailure EventType = "refund_failure"

	EventDisputeOpened     EventType = "dispute_opened"
	EventDisputeExpired    EventType = "dispute_expired"
	EventDisputeAccepted   EventType = "dispute_accepted"
	EventDisputeCancelled  EventType = "dispute_cancelled"
	EventDisputeChallenged EventType = "dispute_challenged"
	EventDisputeWon        EventType = "dispute_won"
	EventDisputeLost       EventType = "dispute_lost"

	EventMandateActive  EventType = "mandate_active"
	EventMandateRevoked EventType = "mandate_revoked"

	EventNotSupported EventType = "event_not_supported"
)

// Flow selects which resource flow handles an event type.
type Flow int

// Resource flows.
const (
	FlowNone Flow = iota
	FlowPayment
	FlowRefund
	FlowDispute
	FlowMandate
	FlowBankTransfer
)

// Supported reports whether the platform processes this event type at all.
func (e EventType) Supported() bool {
	return e.Flow() != FlowNone
}

// Flow returns the resource flow responsible for this event type.
func (e EventType) Flow() Flow {
	switch e {
	case EventPaymentSuccess, EventPaymentFailure, EventPaymentProcessing,
		EventPaymentCancelled, EventPaymentAuthorizationSuccess,
		EventPaymentAuthorizationFailure, EventPaymentCaptureSuccess,
		EventPaymentCaptureFailure, EventPaymentActionRequired:
		return FlowPayment
	case EventSourceChargeable, EventSourceTransactionCreated:
		return FlowBankTransfer
	case EventRefundSuccess, EventRefundFailure:
		return FlowRefund
	case EventDisputeOpened, EventDisputeExpired, EventDisputeAccepted,
		EventDisputeCancelled, EventDisputeChallenged, EventDisputeWon,
		EventDisputeLost:
		return FlowDispute
	case EventMandateActive, EventMandateRevoked:
		return FlowMandate
	default:
		return FlowNone
	}
}
