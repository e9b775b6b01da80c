package core

import "context"

// contextKey is an unexported type used for context keys in this package to
// prevent collisions with keys defined in other packages.
type contextKey int

const (
	jobIDKey contextKey = iota
	requestIDKey
)

// WithJobID returns a copy of ctx carrying the given job id. The orchestrator
// attaches this before dispatching branch goroutines and activities so that
// every log line and span emitted during a job's execution can be
// correlated back to it.
func WithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, jobIDKey, id)
}

// GetJobID extracts the job id from ctx. It returns an empty string if no
// job id is present.
func GetJobID(ctx context.Context) string {
	id, _ := ctx.Value(jobIDKey).(string)
	return id
}

// WithRequestID returns a copy of ctx carrying the given HTTP request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID extracts the request id from ctx. It returns an empty string
// if no request id is present.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}