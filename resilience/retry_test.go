package resilience

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lookatitude/videogen/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Retry(context.Background(), RetryPolicy{RetryPolicy: core.RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond}}, func(_ context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestRetry_SucceedsAfterRetries(t *testing.T) {
	var calls atomic.Int32
	result, err := Retry(context.Background(), RetryPolicy{
		RetryPolicy: core.RetryPolicy{
			MaxAttempts:    5,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     10 * time.Millisecond,
			BackoffFactor:  1.5,
		},
	}, func(_ context.Context) (string, error) {
		n := calls.Add(1)
		if n < 3 {
			return "", core.NewError("op", core.ErrTransient, "throttled", nil)
		}
		return "success", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.EqualValues(t, 3, calls.Load())
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), RetryPolicy{
		RetryPolicy: core.RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			BackoffFactor:  1.0,
		},
	}, func(_ context.Context) (int, error) {
		calls++
		return 0, core.NewError("op", core.ErrTimeout, "timed out", nil)
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_NonRetryableError(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), RetryPolicy{
		RetryPolicy: core.RetryPolicy{
			MaxAttempts:    5,
			InitialBackoff: time.Millisecond,
		},
	}, func(_ context.Context) (int, error) {
		calls++
		return 0, core.NewError("op", core.ErrInvalidInput, "bad input", nil)
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls, "invalid input is not retriable")
}

func TestRetry_PlainErrorNotRetryable(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), RetryPolicy{
		RetryPolicy: core.RetryPolicy{
			MaxAttempts:    5,
			InitialBackoff: time.Millisecond,
		},
	}, func(_ context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("plain error")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Retry(ctx, RetryPolicy{
		RetryPolicy: core.RetryPolicy{
			MaxAttempts:    100,
			InitialBackoff: 50 * time.Millisecond,
		},
	}, func(_ context.Context) (int, error) {
		calls++
		return 0, core.NewError("op", core.ErrTransient, "throttled", nil)
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetry_CustomRetryableErrors(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), RetryPolicy{
		RetryPolicy: core.RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
		},
		RetryableErrors: []core.ErrorCode{core.ErrInvalidInput},
	}, func(_ context.Context) (int, error) {
		calls++
		return 0, core.NewError("op", core.ErrInvalidInput, "bad", nil)
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_DefaultPolicyNormalization(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), RetryPolicy{}, func(_ context.Context) (int, error) {
		calls++
		return 0, core.NewError("op", core.ErrTimeout, "timeout", nil)
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls, "default MaxAttempts is 3")
}