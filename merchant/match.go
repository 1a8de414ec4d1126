package merchant

import "strings"

// Match checks if an event type name matches a mute pattern.
//
// Supported patterns:
//
//	"payment_succeeded"  → exact match
//	"dispute_*"          → matches dispute_opened, dispute_won, etc.
//	"*"                  → matches everything
func Match(pattern, eventType string) bool {
	if pattern == "*" {
		return true
	}

	if pattern == eventType {
		return true
	}

	patternParts := strings.Split(pattern, "_")
	eventParts := strings.Split(eventType, "_")

	if len(patternParts) != len(eventParts) {
		return false
	}

	for i, pp := range patternParts {
		if pp == "*" {
			continue
		}
		if pp != eventParts[i] {
			return false
		}
	}

	return true
}
