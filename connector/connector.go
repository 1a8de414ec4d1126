// Package connector defines the capability surface a payment connector
// adapter exposes to the inbound webhook dispatcher: body decoding, event
// classification, object-reference extraction, source verification, resource
// decoding and the connector's generic acknowledgement.
//
// Adapters are selected by connector name at dispatch time through the
// Registry; this package contains no per-connector wire formats.
package connector

import (
	"context"
	"errors"
	"net/http"

	"github.com/fluxpay/webhooks/merchant"
)

// Errors surfaced by connector adapters.
var (
	// ErrEventNotRecognized is returned by ClassifyEvent when the payload
	// carries an event type the adapter does not know. The dispatcher
	// acknowledges such webhooks without processing them.
	ErrEventNotRecognized = errors.New("connector: event type not recognized")

	// ErrNotRegistered is returned by the Registry for unknown connectors.
	ErrNotRegistered = errors.New("connector: not registered")
)

// IncomingRequest is the raw inbound webhook as received at the HTTP
// boundary. The body may be replaced exactly once by the adapter-decoded
// form before further processing.
type IncomingRequest struct {
	Method  string
	URI     string
	Headers http.Header
	Query   string
	Body    []byte
}

// ReplaceBody swaps the raw body for the connector-decoded form.
func (r *IncomingRequest) ReplaceBody(decoded []byte) {
	r.Body = decoded
}

// VerificationMode selects the source-verification strategy a connector
// uses. The two modes are mutually exclusive per connector.
type VerificationMode int

// Verification modes.
const (
	// VerifyInline checks a signature embedded in the webhook itself.
	VerifyInline VerificationMode = iota

	// VerifyOutOfBand confirms authenticity through a separate call to the
	// connector's API.
	VerifyOutOfBand
)

// AckResponse is the connector's generic acknowledgement, returned to the
// connector regardless of how (or whether) the webhook was processed.
type AckResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Adapter is the per-connector webhook capability consumed by the
// dispatcher. Implementations live with the connector integrations, outside
// this subsystem.
type Adapter interface {
	// Name is the connector identifier used for registry lookup.
	Name() string

	// DecodeBody transforms the raw body into the connector's canonical
	// decoded form (e.g. form-encoded to JSON). Returning the input
	// unchanged is valid.
	DecodeBody(req *IncomingRequest) ([]byte, error)

	// ClassifyEvent maps the payload to an event type. Returns
	// ErrEventNotRecognized for types the adapter does not understand.
	ClassifyEvent(req *IncomingRequest) (EventType, error)

	// ObjectReference extracts the business-object reference the webhook
	// concerns. Exactly one variant of the returned union is populated.
	ObjectReference(req *IncomingRequest) (ObjectReference, error)

	// VerificationMode reports the connector's verification strategy.
	VerificationMode() VerificationMode

	// VerificationMandatory reports whether an unverified webhook must be
	// rejected rather than processed at lower trust.
	VerificationMandatory() bool

	// VerifySource proves the webhook originated from the connector, either
	// inline or out-of-band per VerificationMode. Non-retryable failures
	// are reported as (false, nil); an error means the check itself could
	// not be performed.
	VerifySource(ctx context.Context, req *IncomingRequest, account *merchant.ConnectorAccount) (bool, error)

	// DecodeResource decodes the payload into the referenced resource's
	// status and public object.
	DecodeResource(req *IncomingRequest) (*Resource, error)

	// AckResponse builds the connector's generic acknowledgement.
	AckResponse(req *IncomingRequest) (*AckResponse, error)
}
