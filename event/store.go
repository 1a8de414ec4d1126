package event

import (
	"context"
	"errors"

	"github.com/fluxpay/webhooks/id"
)

// Store errors.
var (
	// ErrDuplicateIdempotentEvent is returned by CreateEvent when an event
	// with the same idempotent event id already exists for the merchant.
	// Callers treat it as already-queued, not as a failure.
	ErrDuplicateIdempotentEvent = errors.New("event: duplicate idempotent event id")

	// ErrEventNotFound is returned when an event cannot be found.
	ErrEventNotFound = errors.New("event: not found")
)

// Store is the persistence interface for outgoing webhook events.
type Store interface {
	// CreateEvent persists a new event. Returns ErrDuplicateIdempotentEvent
	// when the (merchant_id, idempotent_event_id) pair already exists.
	CreateEvent(ctx context.Context, evt *Event) error

	// GetEvent returns an event by id.
	GetEvent(ctx context.Context, evtID id.ID) (*Event, error)

	// RecordAttempt appends an encrypted response snapshot for one delivery
	// attempt, mirrors it as the event's latest response, and marks the
	// event notified when the attempt succeeded. Each attempt writes its
	// snapshot exactly once.
	RecordAttempt(ctx context.Context, evtID id.ID, response []byte, notified bool) error

	// ListAttemptResponses returns the encrypted response snapshots recorded
	// for an event, oldest first.
	ListAttemptResponses(ctx context.Context, evtID id.ID) ([][]byte, error)
}
