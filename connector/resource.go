package connector

import (
	"encoding/json"

	"github.com/fluxpay/webhooks/core"
)

// Resource is the decoded webhook payload, expressed in internal statuses.
// Exactly one field is populated, matching the event type's flow.
type Resource struct {
	Payment *PaymentResource
	Refund  *RefundResource
	Dispute *DisputeResource
	Mandate *MandateResource
}

// PaymentResource is the decoded payment portion of a webhook.
type PaymentResource struct {
	Status core.PaymentStatus
	Object json.RawMessage
}

// RefundResource is the decoded refund portion of a webhook.
type RefundResource struct {
	Status core.RefundStatus
	Object json.RawMessage
}

// DisputeResource is the decoded dispute portion of a webhook.
type DisputeResource struct {
	ConnectorDisputeID string
	Stage              core.DisputeStage
	Status             core.DisputeStatus
	Amount             string
	Currency           string
	Object             json.RawMessage
}

// MandateResource is the decoded mandate portion of a webhook.
type MandateResource struct {
	ConnectorMandateID string
	Status             core.MandateStatus
	Object             json.RawMessage
}
