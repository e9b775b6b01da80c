// Package operator defines the Stage Operator contract (C3) shared by the
// pipeline's concrete stages (person detection, background removal, TTS
// synthesis, BGM mixing) and the admission-aware execution helper that
// wraps a GPU-bound operator's acquire/execute/release lifecycle.
package operator

import (
	"context"
	"errors"
	"time"

	"github.com/lookatitude/videogen/admission"
	"github.com/lookatitude/videogen/artifact"
	"github.com/lookatitude/videogen/core"
	"github.com/lookatitude/videogen/internal/httpclient"
	"github.com/lookatitude/videogen/o11y"
	"github.com/lookatitude/videogen/resilience"
)

// Operator is the capability set every stage implements, per spec §4.3:
// fingerprint(inputs, params) -> key, execute(inputs, params, ticket?) ->
// artifact, vram_cost, ttl.
type Operator interface {
	// ID identifies the operator for admission model lookup and logging,
	// e.g. "persondetector".
	ID() string

	// Fingerprint computes the content-address of one invocation from the
	// ordered input artifact refs and the already-rounded parameter list.
	// Callers build params via artifact.SortedParams.
	Fingerprint(inputRefs []string, params []string) string

	// Execute runs the operator. inputs are resolved artifacts in the
	// operator's documented order; a missing required input is a
	// programming error, not a typed error return.
	Execute(ctx context.Context, inputs []*artifact.Artifact, params map[string]any) (*artifact.Artifact, error)

	// VRAMCost is the operator's fixed admission cost in megabytes.
	VRAMCost() int

	// TTL is how long Execute's result may be cached.
	TTL() time.Duration
}

// oomBackoffBase and oomMaxRetries implement spec §4.2's OOM fallback: if
// Acquire succeeds but the underlying device OOMs anyway (a concurrent
// external allocator), the ticket is released and the operator is re-queued
// up to oomMaxRetries times with 2x backoff between attempts.
const (
	oomBackoffBase = 2 * time.Second
	oomMaxRetries  = 2
)

// RunWithAdmission acquires a ticket for op from ctrl, executes op, and
// releases the ticket on every exit path. An ErrResourceExhausted from
// Execute (device-level OOM surfacing after admission) is treated as the
// admission fallback case: the ticket is released and the whole
// acquire-execute cycle is retried up to oomMaxRetries times with 2x
// backoff before the error is returned as-is.
func RunWithAdmission(ctx context.Context, ctrl *admission.Controller, op Operator, inputs []*artifact.Artifact, params map[string]any, deadline time.Time) (*artifact.Artifact, error) {
	backoff := oomBackoffBase
	var lastErr error

	for attempt := 0; attempt <= oomMaxRetries; attempt++ {
		ticket, err := ctrl.Acquire(ctx, op.ID(), deadline)
		if err != nil {
			return nil, err
		}

		art, execErr := op.Execute(ctx, inputs, params)
		ctrl.Release(ctx, ticket)

		if execErr == nil {
			return art, nil
		}
		lastErr = execErr

		if core.Code(execErr) != core.ErrResourceExhausted || attempt == oomMaxRetries {
			return nil, execErr
		}

		o11y.FromContext(ctx).Warn(ctx, "operator: OOM after admission, re-queueing", "operator", op.ID(), "attempt", attempt+1)
		select {
		case <-ctx.Done():
			return nil, core.NewError("operator.RunWithAdmission", core.ErrCancelled, "context cancelled during OOM backoff", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, lastErr
}

// ClassifyHTTPError maps a raw httpclient error into a core.Error so
// resilience.Retry's code-based policy can decide retriability: 429 and 5xx
// responses (and any non-API transport error, e.g. a dropped connection)
// are ErrTransient; other HTTP error statuses are ErrUpstreamFailed and not
// retried. Every provider's Execute wraps its httpclient calls with this
// before handing the error to resilience.Retry.
func ClassifyHTTPError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *httpclient.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 || apiErr.StatusCode >= 500 {
			return core.NewError("operator", core.ErrTransient, apiErr.Error(), err)
		}
		return core.NewError("operator", core.ErrUpstreamFailed, apiErr.Error(), err)
	}
	return core.NewError("operator", core.ErrTransient, "request transport failure", err)
}

// DefaultRetryPolicy is the operator-level retry policy from spec §4.3:
// transient errors (GPU OOM, network timeout, 5xx) retried with exponential
// backoff, base 500ms, factor 2, jitter ±20%, cap 3 attempts.
func DefaultRetryPolicy() resilience.RetryPolicy {
	return resilience.RetryPolicy{
		RetryPolicy: core.RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: 500 * time.Millisecond,
			BackoffFactor:  2,
			Jitter:         true,
		},
		RetryableErrors: []core.ErrorCode{core.ErrTransient, core.ErrTimeout},
	}
}

// Registry is a named collection of constructed Operators, used by the
// pipeline to look up the operator for a stage by name.
type Registry struct {
	ops map[string]Operator
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]Operator)}
}

// Register adds op under its own ID. Registering a duplicate ID overwrites
// the previous operator.
func (r *Registry) Register(op Operator) {
	r.ops[op.ID()] = op
}

// Get looks up a registered operator by ID.
func (r *Registry) Get(id string) (Operator, bool) {
	op, ok := r.ops[id]
	return op, ok
}
