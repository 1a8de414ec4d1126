package dlq

import (
	"context"
	"errors"
	"time"

	"github.com/fluxpay/webhooks/id"
)

// ErrEntryNotFound is returned for unknown DLQ entries.
var ErrEntryNotFound = errors.New("dlq: entry not found")

// Store persists dead letter queue entries.
type Store interface {
	// Push adds an entry to the queue.
	Push(ctx context.Context, e *Entry) error

	// GetDLQ returns an entry by ID.
	GetDLQ(ctx context.Context, dlqID id.ID) (*Entry, error)

	// ListDLQ returns entries matching the options, newest first.
	ListDLQ(ctx context.Context, opts ListOpts) ([]*Entry, error)

	// MarkReplayed stamps an entry as replayed.
	MarkReplayed(ctx context.Context, dlqID id.ID, at time.Time) error

	// Purge removes entries that failed before the cutoff and returns the
	// number removed.
	Purge(ctx context.Context, before time.Time) (int64, error)

	// CountDLQ returns the total number of entries.
	CountDLQ(ctx context.Context) (int64, error)
}
