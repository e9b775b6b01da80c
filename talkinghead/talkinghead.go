// Package talkinghead drives the external talking-head video provider as a
// logically synchronous stage while using its asynchronous submit/poll/
// webhook API efficiently (spec §4.5). A submitted job completes via the
// earliest of a webhook callback or a polling loop; whichever resolves
// first wins and the other is abandoned.
package talkinghead

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/lookatitude/videogen/core"
	"github.com/lookatitude/videogen/internal/httpclient"
	"github.com/lookatitude/videogen/o11y"
	"github.com/lookatitude/videogen/resilience"
)

const (
	defaultPollInterval     = 2 * time.Second
	defaultInitialPollDelay = 2 * time.Second
	defaultOverallDeadline  = 120 * time.Second
)

// SubmitRequest names the image and audio artifacts to compose into a
// talking-head video.
type SubmitRequest struct {
	ImageRef string
	AudioRef string
}

// Result is the provider's completed output: video bytes and container
// metadata.
type Result struct {
	VideoBytes      []byte
	ContainerFormat string
	DurationMS      int64
}

// Status is the lifecycle state reported by a poll or webhook callback.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusPending   Status = "pending"
)

// Callback is the payload of a provider webhook notification or poll
// response, unified into one shape since both carry the same fields.
type Callback struct {
	ProviderTaskID  string
	Status          Status
	VideoBase64     string
	ContainerFormat string
	DurationMS      int64
	ErrorMessage    string
}

type submitResponse struct {
	ProviderTaskID string `json:"provider_task_id"`
}

// Config configures a Client.
type Config struct {
	Client *httpclient.Client

	// PollInterval is the steady-state delay between polls. Zero uses 2s.
	PollInterval time.Duration

	// InitialPollDelay is the delay before the first poll. Zero uses 2s.
	InitialPollDelay time.Duration

	// OverallDeadline bounds Submit's total wait for completion. Zero uses 120s.
	OverallDeadline time.Duration
}

// Client submits talking-head generation jobs and reconciles their
// completion via webhook or polling, whichever arrives first.
type Client struct {
	http             *httpclient.Client
	pollInterval     time.Duration
	initialPollDelay time.Duration
	overallDeadline  time.Duration

	mu      sync.Mutex
	pending map[string]chan Callback
}

// New creates a Client.
func New(cfg Config) *Client {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	initialDelay := cfg.InitialPollDelay
	if initialDelay <= 0 {
		initialDelay = defaultInitialPollDelay
	}
	deadline := cfg.OverallDeadline
	if deadline <= 0 {
		deadline = defaultOverallDeadline
	}
	return &Client{
		http:             cfg.Client,
		pollInterval:     pollInterval,
		initialPollDelay: initialDelay,
		overallDeadline:  deadline,
		pending:          make(map[string]chan Callback),
	}
}

// retryPolicy implements spec §4.5's retry policy: network errors and 5xx
// retried with exponential backoff (base 1s, factor 2, cap 3 attempts); 4xx
// except 429 are fatal; 429 honors Retry-After via the shared http client.
func retryPolicy() resilience.RetryPolicy {
	return resilience.RetryPolicy{
		RetryPolicy: core.RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: 1 * time.Second,
			BackoffFactor:  2,
		},
		RetryableErrors: []core.ErrorCode{core.ErrTransient},
	}
}

func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if apiErr, ok := err.(*httpclient.APIError); ok {
		if apiErr.StatusCode == 429 || apiErr.StatusCode >= 500 {
			return core.NewError("talkinghead", core.ErrTransient, apiErr.Error(), err)
		}
		return core.NewError("talkinghead", core.ErrUpstreamFailed, apiErr.Error(), err)
	}
	return core.NewError("talkinghead", core.ErrTransient, "request transport failure", err)
}

// Submit posts req to the provider, registers a waiter keyed by the returned
// provider_task_id, starts a polling loop, and blocks until the earliest of
// a webhook callback, a polling success/failure, or the overall deadline.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*Result, error) {
	submitFn := func(ctx context.Context) (submitResponse, error) {
		resp, err := httpclient.DoJSON[submitResponse](ctx, c.http, "POST", "/tasks", map[string]string{
			"image_ref": req.ImageRef,
			"audio_ref": req.AudioRef,
		})
		if err != nil {
			return submitResponse{}, classifyError(err)
		}
		return resp, nil
	}

	submitResp, err := resilience.Retry(ctx, retryPolicy(), submitFn)
	if err != nil {
		return nil, core.NewError("talkinghead.Submit", core.ErrUpstreamFailed, "submit failed", err)
	}
	taskID := submitResp.ProviderTaskID

	resultCh := make(chan Callback, 1)
	c.mu.Lock()
	c.pending[taskID] = resultCh
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, taskID)
		c.mu.Unlock()
	}()

	deadlineCtx, cancel := context.WithTimeout(ctx, c.overallDeadline)
	defer cancel()

	pollCtx, stopPoll := context.WithCancel(deadlineCtx)
	defer stopPoll()
	go c.pollLoop(pollCtx, taskID, resultCh)

	select {
	case cb := <-resultCh:
		return c.resultFromCallback(cb)

	case <-deadlineCtx.Done():
		if ctx.Err() != nil {
			return nil, core.NewError("talkinghead.Submit", core.ErrCancelled, "submission cancelled", ctx.Err())
		}
		return nil, core.NewError("talkinghead.Submit", core.ErrTimeout, fmt.Sprintf("talking-head job exceeded %s deadline", c.overallDeadline), deadlineCtx.Err())
	}
}

// pollLoop polls the provider for taskID's status every pollInterval after
// an initial delay, feeding a terminal result into resultCh. It exits
// silently once ctx is done (Submit has already returned via webhook or
// deadline) or a terminal status is delivered.
func (c *Client) pollLoop(ctx context.Context, taskID string, resultCh chan<- Callback) {
	timer := time.NewTimer(c.initialPollDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		cb, err := c.pollOnce(ctx, taskID)
		if err == nil && cb.Status != StatusPending {
			select {
			case resultCh <- cb:
			default:
			}
			return
		}

		timer.Reset(c.pollInterval)
	}
}

func (c *Client) pollOnce(ctx context.Context, taskID string) (Callback, error) {
	type pollResponse struct {
		Status          Status `json:"status"`
		VideoBase64     string `json:"video_base64"`
		ContainerFormat string `json:"container_format"`
		DurationMS      int64  `json:"duration_ms"`
		ErrorMessage    string `json:"error_message"`
	}
	resp, err := httpclient.DoJSON[pollResponse](ctx, c.http, "GET", fmt.Sprintf("/tasks/%s", taskID), nil)
	if err != nil {
		return Callback{}, classifyError(err)
	}
	return Callback{
		ProviderTaskID:  taskID,
		Status:          resp.Status,
		VideoBase64:     resp.VideoBase64,
		ContainerFormat: resp.ContainerFormat,
		DurationMS:      resp.DurationMS,
		ErrorMessage:    resp.ErrorMessage,
	}, nil
}

// HandleWebhook reconciles a provider callback against a pending Submit
// call. An unknown provider_task_id (no matching waiter — already resolved,
// duplicate, or never submitted by this process) is logged and accepted as
// a no-op rather than treated as an error, per spec §4.5's idempotence
// requirement. Duplicate callbacks for an already-resolved task are
// similarly dropped.
func (c *Client) HandleWebhook(ctx context.Context, cb Callback) error {
	c.mu.Lock()
	ch, ok := c.pending[cb.ProviderTaskID]
	c.mu.Unlock()

	if !ok {
		o11y.FromContext(ctx).Warn(ctx, "talkinghead: webhook for unknown or already-resolved task", "provider_task_id", cb.ProviderTaskID)
		return nil
	}

	select {
	case ch <- cb:
	default:
		// A result is already buffered (poll won the race, or a prior
		// webhook already delivered); this callback is a duplicate no-op.
	}
	return nil
}

func (c *Client) resultFromCallback(cb Callback) (*Result, error) {
	if cb.Status != StatusSucceeded {
		msg := cb.ErrorMessage
		if msg == "" {
			msg = "talking-head provider reported failure"
		}
		return nil, core.NewError("talkinghead.Submit", core.ErrUpstreamFailed, msg, nil)
	}
	video, err := base64.StdEncoding.DecodeString(cb.VideoBase64)
	if err != nil {
		return nil, core.NewError("talkinghead.Submit", core.ErrUpstreamFailed, "provider returned undecodable video payload", err)
	}
	return &Result{
		VideoBytes:      video,
		ContainerFormat: cb.ContainerFormat,
		DurationMS:      cb.DurationMS,
	}, nil
}
