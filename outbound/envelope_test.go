package outbound_test

import (
	"encoding/json"
	"testing"

	"github.com/fluxpay/webhooks/outbound"
)

func TestValidatorAcceptsEnvelope(t *testing.T) {
	payload, _ := json.Marshal(outbound.Envelope{
		MerchantID: "mrc_1",
		EventID:    "evt_01h2x",
		EventType:  "payment_succeeded",
		Content:    json.RawMessage(`{"payment_id":"pay_1"}`),
		Timestamp:  1700000000,
	})

	if err := outbound.NewValidator().Validate(payload); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidatorRejectsMissingFields(t *testing.T) {
	v := outbound.NewValidator()

	tests := []string{
		`{}`,
		`{"merchant_id":"mrc_1"}`,
		`{"merchant_id":"mrc_1","event_id":"evt_1","event_type":"payment_succeeded","timestamp":1}`,
	}
	for _, payload := range tests {
		if err := v.Validate([]byte(payload)); err == nil {
			t.Errorf("Validate(%s) should fail", payload)
		}
	}
}

func TestValidatorRejectsNonObjectContent(t *testing.T) {
	payload := []byte(`{"merchant_id":"mrc_1","event_id":"evt_1","event_type":"t","content":[1,2],"timestamp":1}`)
	if err := outbound.NewValidator().Validate(payload); err == nil {
		t.Error("array content should fail validation")
	}
}

func TestValidatorRejectsInvalidJSON(t *testing.T) {
	if err := outbound.NewValidator().Validate([]byte(`{not json`)); err == nil {
		t.Error("invalid JSON should fail validation")
	}
}
