package connector

// ObjectReference identifies the business object an inbound webhook
// concerns. Exactly one of the variant pointers is populated, and within
// that variant exactly one field is set.
type ObjectReference struct {
	Payment *PaymentReference
	Refund  *RefundReference
	Mandate *MandateReference
}

// PaymentReference carries one of the id variants a connector may use to
// reference a payment.
type PaymentReference struct {
	ConnectorTransactionID string
	AttemptID              string
	PreprocessingID        string
	IntentID               string
}

// RefundReference carries one of the id variants for a refund.
type RefundReference struct {
	RefundID          string
	ConnectorRefundID string
}

// MandateReference carries one of the id variants for a mandate.
type MandateReference struct {
	MandateID          string
	ConnectorMandateID string
}

// PrimaryID returns the populated id value, whichever variant holds it.
// Used for logging and lock keys, never for resolution.
func (r ObjectReference) PrimaryID() string {
	switch {
	case r.Payment != nil:
		return first(r.Payment.ConnectorTransactionID, r.Payment.AttemptID,
			r.Payment.PreprocessingID, r.Payment.IntentID)
	case r.Refund != nil:
		return first(r.Refund.RefundID, r.Refund.ConnectorRefundID)
	case r.Mandate != nil:
		return first(r.Mandate.MandateID, r.Mandate.ConnectorMandateID)
	default:
		return ""
	}
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
