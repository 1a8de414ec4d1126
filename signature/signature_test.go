package signature_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/fluxpay/webhooks/signature"
)

func TestSignKnownVector(t *testing.T) {
	payload := []byte(`{"event":"test"}`)
	secret := "whsec_testsecret123"
	timestamp := int64(1700000000)

	got := signature.Sign(payload, secret, timestamp)

	// Compute expected HMAC-SHA256 independently.
	content := fmt.Sprintf("%d.%s", timestamp, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(content))
	expected := "v1=" + hex.EncodeToString(mac.Sum(nil))

	if got != expected {
		t.Errorf("Sign() = %q, want %q", got, expected)
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	payload := []byte(`{"payment_id":"pay_01h2x","amount":9900}`)
	secret := "whsec_roundtripsecret"
	timestamp := int64(1700000001)

	sig := signature.Sign(payload, secret, timestamp)
	if !signature.Verify(payload, secret, timestamp, sig) {
		t.Error("Verify() returned false for valid signature")
	}
}

func TestVerifyTamperedPayload(t *testing.T) {
	payload := []byte(`{"original":true}`)
	secret := "whsec_tampersecret"
	timestamp := int64(1700000002)

	sig := signature.Sign(payload, secret, timestamp)

	tampered := []byte(`{"original":false}`)
	if signature.Verify(tampered, secret, timestamp, sig) {
		t.Error("Verify() returned true for tampered payload")
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	payload := []byte(`{"data":"value"}`)
	secret := "whsec_correct"
	timestamp := int64(1700000003)

	sig := signature.Sign(payload, secret, timestamp)

	if signature.Verify(payload, "whsec_wrong", timestamp, sig) {
		t.Error("Verify() returned true for wrong secret")
	}
}

func TestSignatureFormat(t *testing.T) {
	sig := signature.Sign([]byte("test"), "secret", 123)

	if len(sig) < 3 || sig[:3] != "v1=" {
		t.Errorf("signature should start with 'v1=', got %q", sig)
	}

	// v1= prefix (3) + 64 hex chars (SHA256 = 32 bytes = 64 hex)
	if len(sig) != 67 {
		t.Errorf("expected signature length 67, got %d", len(sig))
	}
}

func TestHeadersWithSecret(t *testing.T) {
	payload := []byte(`{"x":1}`)
	h := signature.Headers(payload, "whsec_abc", 1700000004)

	if h[signature.HeaderContentType] != "application/json" {
		t.Errorf("content type = %q", h[signature.HeaderContentType])
	}
	if h[signature.HeaderSignature] == "" {
		t.Error("expected signature header")
	}
	if h[signature.HeaderTimestamp] != "1700000004" {
		t.Errorf("timestamp header = %q", h[signature.HeaderTimestamp])
	}
}

func TestHeadersSecretless(t *testing.T) {
	h := signature.Headers([]byte(`{}`), "", 1700000005)

	if h[signature.HeaderContentType] != "application/json" {
		t.Error("content type header must always be present")
	}
	if _, ok := h[signature.HeaderSignature]; ok {
		t.Error("secret-less mode must not produce a signature header")
	}
	if _, ok := h[signature.HeaderTimestamp]; ok {
		t.Error("secret-less mode must not produce a timestamp header")
	}
}

func TestGenerateSecret(t *testing.T) {
	s := signature.GenerateSecret()
	if len(s) != 70 {
		t.Errorf("expected secret length 70, got %d", len(s))
	}
	if s[:6] != "whsec_" {
		t.Errorf("expected whsec_ prefix, got %q", s[:6])
	}
	if s == signature.GenerateSecret() {
		t.Error("two generated secrets should differ")
	}
}
