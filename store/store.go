// Package store defines the composite Store interface for all webhook
// subsystem persistence.
//
// Each subsystem defines its own store interface next to its types; the
// aggregate Store composes them all, so one backend satisfies the whole
// pipeline.
package store

import (
	"context"

	"github.com/fluxpay/webhooks/dlq"
	"github.com/fluxpay/webhooks/event"
	"github.com/fluxpay/webhooks/merchant"
	"github.com/fluxpay/webhooks/scheduler"
)

// Store is the aggregate persistence interface.
type Store interface {
	event.Store
	scheduler.TaskStore
	merchant.Store
	dlq.Store

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
