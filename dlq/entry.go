// Package dlq holds outbound events whose automatic retry budget ran out,
// for inspection and operator-driven replay.
package dlq

import (
	"time"

	"github.com/fluxpay/webhooks/id"
	"github.com/fluxpay/webhooks/internal/entity"
)

// Entry represents an exhausted delivery cycle in the dead letter queue.
type Entry struct {
	entity.Entity

	// ID is the unique TypeID for this DLQ entry.
	ID id.ID `json:"id"`

	// EventID references the initial-attempt event of the cycle.
	EventID id.ID `json:"event_id"`

	// TaskID references the finalized retry task.
	TaskID id.ID `json:"task_id"`

	// MerchantID and ProfileID identify the destination profile.
	MerchantID string `json:"merchant_id"`
	ProfileID  string `json:"profile_id"`

	// EventType is the outbound event type name for filtering.
	EventType string `json:"event_type"`

	// ObjectID is the business object the event concerns.
	ObjectID string `json:"object_id"`

	// URL is the profile's webhook URL at the time of exhaustion.
	URL string `json:"url"`

	// Error is the error message from the final attempt.
	Error string `json:"error"`

	// AttemptCount is the total number of attempts made, initial included.
	AttemptCount int `json:"attempt_count"`

	// LastStatusCode is the HTTP status code from the final attempt.
	LastStatusCode int `json:"last_status_code,omitempty"`

	// ReplayedAt is set when the entry has been replayed.
	ReplayedAt *time.Time `json:"replayed_at,omitempty"`

	// FailedAt is when the retry budget ran out.
	FailedAt time.Time `json:"failed_at"`
}

// ListOpts configures filtering and pagination for DLQ listing.
type ListOpts struct {
	Offset     int
	Limit      int
	MerchantID string
	From       *time.Time
	To         *time.Time
}
