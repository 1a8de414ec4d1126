package outbound

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Envelope is the platform-native outbound payload shape. It is built
// once at event creation and frozen; retries replay the same bytes.
type Envelope struct {
	MerchantID string          `json:"merchant_id"`
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	Content    json.RawMessage `json:"content"`
	Timestamp  int64           `json:"timestamp"`
}

const envelopeSchemaURL = "fluxpay://schema/webhook-envelope"

const envelopeSchema = `{
	"type": "object",
	"required": ["merchant_id", "event_id", "event_type", "content", "timestamp"],
	"properties": {
		"merchant_id": {"type": "string", "minLength": 1},
		"event_id": {"type": "string", "minLength": 1},
		"event_type": {"type": "string", "minLength": 1},
		"content": {"type": "object"},
		"timestamp": {"type": "integer"}
	}
}`

// Validator checks outbound payloads against the envelope schema before
// they are frozen into an event.
type Validator struct {
	once   sync.Once
	schema *jsonschema.Schema
	err    error
}

// NewValidator creates an envelope validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks the serialized envelope. A schema violation means the
// caller produced a malformed payload; the event must not be created.
func (v *Validator) Validate(payload []byte) error {
	v.once.Do(func() {
		var doc any
		if err := json.Unmarshal([]byte(envelopeSchema), &doc); err != nil {
			v.err = fmt.Errorf("outbound: unmarshal envelope schema: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		if err := c.AddResource(envelopeSchemaURL, doc); err != nil {
			v.err = fmt.Errorf("outbound: add envelope schema: %w", err)
			return
		}
		v.schema, v.err = c.Compile(envelopeSchemaURL)
	})
	if v.err != nil {
		return v.err
	}

	var data any
	if err := json.Unmarshal(payload, &data); err != nil {
		return fmt.Errorf("outbound: payload is not valid JSON: %w", err)
	}
	if err := v.schema.Validate(data); err != nil {
		return fmt.Errorf("outbound: envelope schema violation: %w", err)
	}
	return nil
}
