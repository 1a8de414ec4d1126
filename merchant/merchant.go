// Package merchant holds the merchant-facing configuration the webhook
// subsystem reads: business profiles with outbound delivery settings and
// connector accounts with inbound verification material.
package merchant

import (
	"github.com/fluxpay/webhooks/internal/entity"
)

// Profile is a merchant business profile as seen by the webhook subsystem.
// A merchant may run several profiles; outbound delivery settings are
// scoped per profile.
type Profile struct {
	entity.Entity

	MerchantID string
	ProfileID  string

	// WebhookURL is the merchant's delivery endpoint. Empty means outbound
	// notifications are not configured for this profile.
	WebhookURL string

	// Secret signs outbound payloads. Empty means deliveries go unsigned.
	Secret string

	// CustomHeaders are added verbatim to every delivery request.
	CustomHeaders map[string]string

	// DisabledEventTypes mutes outbound event types; patterns follow the
	// Match syntax.
	DisabledEventTypes []string

	// RetryBudget caps automatic retries per initial delivery. Zero means
	// the scheduler default applies.
	RetryBudget int

	// RateLimit caps deliveries per second to this profile's endpoint.
	// Zero means unlimited.
	RateLimit int

	// PayloadFormat selects the outbound payload shape. Empty selects the
	// platform-native envelope.
	PayloadFormat string
}

// DeliveryConfigured reports whether outbound notifications can be sent.
func (p *Profile) DeliveryConfigured() bool {
	return p.WebhookURL != ""
}

// EventDisabled reports whether the profile muted the given outbound event
// type.
func (p *Profile) EventDisabled(eventType string) bool {
	for _, pattern := range p.DisabledEventTypes {
		if Match(pattern, eventType) {
			return true
		}
	}
	return false
}

// ConnectorAccount is a merchant's account with a payment connector,
// carrying the material needed to authenticate inbound webhooks from that
// connector.
type ConnectorAccount struct {
	entity.Entity

	AccountID     string
	MerchantID    string
	ProfileID     string
	ConnectorName string

	// WebhookSecret is the connector-issued secret used for inline source
	// verification.
	WebhookSecret string

	// AuthCredentials holds the connector API credentials used for
	// out-of-band verification.
	AuthCredentials map[string]string

	// DisabledEventTypes mutes inbound event types for this account.
	DisabledEventTypes []string
}

// EventDisabled reports whether the account muted the given inbound event
// type.
func (a *ConnectorAccount) EventDisabled(eventType string) bool {
	for _, pattern := range a.DisabledEventTypes {
		if Match(pattern, eventType) {
			return true
		}
	}
	return false
}
