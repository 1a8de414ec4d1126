package webhooks

import "errors"

// ErrNoStore is returned when a Pipeline is created without a store.
// Unknown-connector and unknown-account conditions surface through the
// inbound packages' own sentinels.
var ErrNoStore = errors.New("webhooks: store is required")
