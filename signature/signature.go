// Package signature provides HMAC-SHA256 signing for outbound merchant
// notifications and verification of the same scheme.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Header names attached to signed merchant deliveries.
const (
	HeaderContentType = "Content-Type"
	HeaderSignature   = "X-Fluxpay-Signature"
	HeaderTimestamp   = "X-Fluxpay-Timestamp"
	HeaderEventID     = "X-Fluxpay-Event-ID"
	HeaderEventType   = "X-Fluxpay-Event-Type"
)

// Sign generates the HMAC-SHA256 signature for the given payload.
// The content to sign is "{timestamp}.{payload}".
// Returns a versioned signature in the format "v1=<hex>".
func Sign(payload []byte, secret string, timestamp int64) string {
	content := fmt.Sprintf("%d.%s", timestamp, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(content))
	return "v1=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks whether the given signature matches the expected HMAC-SHA256
// signature for the payload, secret, and timestamp.
func Verify(payload []byte, secret string, timestamp int64, sig string) bool {
	expected := Sign(payload, secret, timestamp)
	return hmac.Equal([]byte(expected), []byte(sig))
}

// Headers builds the header set for an outbound merchant delivery.
//
// Content-Type is always present. The signature and timestamp headers are
// added only when the merchant has a signing secret configured; merchants in
// secret-less mode receive unsigned deliveries.
func Headers(payload []byte, secret string, timestamp int64) map[string]string {
	h := map[string]string{
		HeaderContentType: "application/json",
	}
	if secret != "" {
		h[HeaderSignature] = Sign(payload, secret, timestamp)
		h[HeaderTimestamp] = strconv.FormatInt(timestamp, 10)
	}
	return h
}
