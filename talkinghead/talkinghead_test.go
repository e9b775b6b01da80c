package talkinghead

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lookatitude/videogen/core"
	"github.com/lookatitude/videogen/internal/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTaskID = "task-abc"

func newTestClient(t *testing.T, handler http.HandlerFunc, cfg Config) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg.Client = httpclient.New(httpclient.WithBaseURL(server.URL))
	return New(cfg)
}

func TestSubmit_ResolvesViaPoll(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(submitResponse{ProviderTaskID: testTaskID})
		default:
			json.NewEncoder(w).Encode(map[string]any{
				"status":           "succeeded",
				"video_base64":     base64.StdEncoding.EncodeToString([]byte("video-bytes")),
				"container_format": "mp4",
				"duration_ms":      4200,
			})
		}
	}
	client := newTestClient(t, handler, Config{
		InitialPollDelay: 5 * time.Millisecond,
		PollInterval:     5 * time.Millisecond,
		OverallDeadline:  1 * time.Second,
	})

	result, err := client.Submit(context.Background(), SubmitRequest{ImageRef: "img-1", AudioRef: "audio-1"})
	require.NoError(t, err)
	assert.Equal(t, []byte("video-bytes"), result.VideoBytes)
	assert.Equal(t, "mp4", result.ContainerFormat)
	assert.Equal(t, int64(4200), result.DurationMS)
}

func TestSubmit_ResolvesViaWebhook(t *testing.T) {
	var polls atomic.Int32
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(submitResponse{ProviderTaskID: testTaskID})
			return
		}
		polls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"status": "pending"})
	}
	client := newTestClient(t, handler, Config{
		InitialPollDelay: 1 * time.Hour, // never fires before the webhook
		PollInterval:     1 * time.Hour,
		OverallDeadline:  2 * time.Second,
	})

	resultCh := make(chan *Result, 1)
	errCh := make(chan error, 1)
	go func() {
		result, err := client.Submit(context.Background(), SubmitRequest{ImageRef: "img-1", AudioRef: "audio-1"})
		resultCh <- result
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	err := client.HandleWebhook(context.Background(), Callback{
		ProviderTaskID:  testTaskID,
		Status:          StatusSucceeded,
		VideoBase64:     base64.StdEncoding.EncodeToString([]byte("webhook-video")),
		ContainerFormat: "mp4",
		DurationMS:      9000,
	})
	require.NoError(t, err)

	select {
	case result := <-resultCh:
		require.NoError(t, <-errCh)
		assert.Equal(t, []byte("webhook-video"), result.VideoBytes)
	case <-time.After(1 * time.Second):
		t.Fatal("Submit did not resolve via webhook in time")
	}
	assert.Equal(t, int32(0), polls.Load())
}

func TestSubmit_DeadlineExceeded(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(submitResponse{ProviderTaskID: testTaskID})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "pending"})
	}
	client := newTestClient(t, handler, Config{
		InitialPollDelay: 1 * time.Millisecond,
		PollInterval:     1 * time.Millisecond,
		OverallDeadline:  20 * time.Millisecond,
	})

	_, err := client.Submit(context.Background(), SubmitRequest{ImageRef: "img-1", AudioRef: "audio-1"})
	require.Error(t, err)
	assert.Equal(t, core.ErrTimeout, core.Code(err))
}

func TestSubmit_ProviderFailure(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(submitResponse{ProviderTaskID: testTaskID})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":        "failed",
			"error_message": "provider ran out of compute",
		})
	}
	client := newTestClient(t, handler, Config{
		InitialPollDelay: 5 * time.Millisecond,
		PollInterval:     5 * time.Millisecond,
		OverallDeadline:  1 * time.Second,
	})

	_, err := client.Submit(context.Background(), SubmitRequest{ImageRef: "img-1", AudioRef: "audio-1"})
	require.Error(t, err)
	assert.Equal(t, core.ErrUpstreamFailed, core.Code(err))
}

func TestHandleWebhook_UnknownTaskID_IsNoOp(t *testing.T) {
	client := New(Config{Client: httpclient.New()})
	err := client.HandleWebhook(context.Background(), Callback{ProviderTaskID: "never-submitted", Status: StatusSucceeded})
	require.NoError(t, err)
}

func TestHandleWebhook_DuplicateCallback_IsIdempotent(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(submitResponse{ProviderTaskID: testTaskID})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "pending"})
	}
	client := newTestClient(t, handler, Config{
		InitialPollDelay: 1 * time.Hour,
		PollInterval:     1 * time.Hour,
		OverallDeadline:  2 * time.Second,
	})

	resultCh := make(chan *Result, 1)
	go func() {
		result, _ := client.Submit(context.Background(), SubmitRequest{ImageRef: "img-1", AudioRef: "audio-1"})
		resultCh <- result
	}()
	time.Sleep(20 * time.Millisecond)

	cb := Callback{ProviderTaskID: testTaskID, Status: StatusSucceeded, VideoBase64: base64.StdEncoding.EncodeToString([]byte("v"))}
	require.NoError(t, client.HandleWebhook(context.Background(), cb))
	require.NoError(t, client.HandleWebhook(context.Background(), cb)) // duplicate: dropped, not an error

	select {
	case <-resultCh:
	case <-time.After(1 * time.Second):
		t.Fatal("Submit did not resolve")
	}
}
