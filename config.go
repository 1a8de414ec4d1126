package webhooks

import "time"

// Config holds the configuration for a Pipeline instance.
type Config struct {
	// Concurrency is the number of retry poller worker goroutines.
	Concurrency int

	// PollInterval is how often the retry poller checks for due tasks.
	PollInterval time.Duration

	// BatchSize is the maximum number of tasks claimed per poll cycle.
	BatchSize int

	// RequestTimeout is the HTTP timeout per delivery attempt.
	RequestTimeout time.Duration

	// RetryBudget is the default cap on automatic retries per delivery
	// cycle; profiles can override it.
	RetryBudget int

	// RetrySchedule defines the backoff intervals between automatic
	// retries.
	RetrySchedule []time.Duration

	// DeliveryPoolSize bounds concurrent initial delivery attempts.
	DeliveryPoolSize int

	// ShutdownTimeout is the maximum time to wait for in-flight deliveries
	// on shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:      10,
		PollInterval:     1 * time.Second,
		BatchSize:        50,
		RequestTimeout:   5 * time.Second,
		RetryBudget:      0, // scheduler default applies
		RetrySchedule:    nil,
		DeliveryPoolSize: 16,
		ShutdownTimeout:  30 * time.Second,
	}
}
