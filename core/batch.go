package core

import "time"

// RetryPolicy specifies how failed operations should be retried. It is the
// shared backoff shape consumed by resilience.RetryPolicy (which embeds it
// and adds the retriable-error classification resilience.Retry needs).
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts (including the first).
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff duration.
	MaxBackoff time.Duration

	// BackoffFactor multiplies the backoff after each retry.
	BackoffFactor float64

	// Jitter adds randomness to the backoff to avoid thundering herds.
	Jitter bool
}
