// Package resilience provides the retry executor and per-client rate
// limiter shared across stage operators, the talking-head client, and the
// submission gate.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/lookatitude/videogen/core"
)

// RetryPolicy configures Retry. It embeds core.RetryPolicy for the shared
// backoff shape and adds the retriable-error override this package needs.
type RetryPolicy struct {
	core.RetryPolicy

	// RetryableErrors overrides which core.ErrorCode values are treated as
	// retriable. When nil, core.IsRetryable's default classification is used.
	RetryableErrors []core.ErrorCode
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 500 * time.Millisecond
	}
	if p.BackoffFactor <= 0 {
		p.BackoffFactor = 2.0
	}
	return p
}

func (p RetryPolicy) isRetryable(err error) bool {
	if len(p.RetryableErrors) == 0 {
		return core.IsRetryable(err)
	}
	code := core.Code(err)
	for _, c := range p.RetryableErrors {
		if c == code {
			return true
		}
	}
	return false
}

// backoff computes the delay before attempt (1-indexed: the retry following
// attempt 1 is attempt 2), applying exponential growth, an optional cap, and
// optional ±20% jitter.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	exp := math.Pow(p.BackoffFactor, float64(attempt-1))
	d := time.Duration(float64(p.InitialBackoff) * exp)
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	if p.Jitter {
		spread := float64(d) * 0.2
		delta := (rand.Float64()*2 - 1) * spread
		d = time.Duration(float64(d) + delta)
		if d < 0 {
			d = 0
		}
	}
	return d
}

// Retry executes fn, retrying while the returned error is retriable per
// policy, up to MaxAttempts total attempts, with exponential backoff between
// attempts. It returns immediately on a non-retriable error, on success, or
// when ctx is cancelled while waiting out a backoff.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	policy = policy.normalized()

	var zero T
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == policy.MaxAttempts || !policy.isRetryable(err) {
			return zero, lastErr
		}

		delay := policy.backoff(attempt)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	return zero, lastErr
}