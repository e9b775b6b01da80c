package talkingheadsubmitter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lookatitude/videogen/artifact"
	"github.com/lookatitude/videogen/core"
	"github.com/lookatitude/videogen/internal/httpclient"
	"github.com/lookatitude/videogen/talkinghead"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOperator(t *testing.T, handler http.HandlerFunc) *Operator {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	thClient := talkinghead.New(talkinghead.Config{
		Client:           httpclient.New(httpclient.WithBaseURL(server.URL)),
		InitialPollDelay: 5 * time.Millisecond,
		PollInterval:     5 * time.Millisecond,
		OverallDeadline:  1 * time.Second,
	})
	return New(Config{Client: thClient, OperatorVersion: "v1"})
}

func TestExecute_Success(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]string{"provider_task_id": "task-1"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":           "succeeded",
			"video_base64":     base64.StdEncoding.EncodeToString([]byte("final-video")),
			"container_format": "mp4",
			"duration_ms":      7000,
		})
	}
	op := newTestOperator(t, handler)

	image := &artifact.Artifact{Ref: "image-ref", Kind: artifact.KindImage}
	audio := &artifact.Artifact{Ref: "audio-ref", Kind: artifact.KindAudio}

	out, err := op.Execute(context.Background(), []*artifact.Artifact{image, audio}, nil)
	require.NoError(t, err)
	assert.Equal(t, artifact.KindVideo, out.Kind)
	assert.Equal(t, []byte("final-video"), out.Bytes)
	assert.Equal(t, int64(7000), out.DurationMS)
	assert.Equal(t, "mp4", out.Meta["container_format"])
}

func TestExecute_RequiresCachedRefs(t *testing.T) {
	op := New(Config{})
	image := &artifact.Artifact{Kind: artifact.KindImage} // no Ref
	audio := &artifact.Artifact{Ref: "audio-ref", Kind: artifact.KindAudio}

	_, err := op.Execute(context.Background(), []*artifact.Artifact{image, audio}, nil)
	require.Error(t, err)
	assert.Equal(t, core.ErrInvalidInput, core.Code(err))
}

func TestFingerprint_Deterministic(t *testing.T) {
	op := New(Config{OperatorVersion: "v1"})
	a := op.Fingerprint([]string{"image-ref", "audio-ref"}, nil)
	b := op.Fingerprint([]string{"image-ref", "audio-ref"}, nil)
	assert.Equal(t, a, b)
}
