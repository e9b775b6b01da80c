package core

import (
	"testing"
	"time"
)

func TestRetryPolicy_ZeroValueIsUsable(t *testing.T) {
	var p RetryPolicy
	if p.MaxAttempts != 0 || p.InitialBackoff != 0 || p.BackoffFactor != 0 {
		t.Fatalf("zero RetryPolicy should have zero fields, got %+v", p)
	}
}

func TestRetryPolicy_FieldsRoundTrip(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		BackoffFactor:  2.5,
		Jitter:         true,
	}
	if p.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", p.MaxAttempts)
	}
	if p.InitialBackoff != 100*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 100ms", p.InitialBackoff)
	}
	if !p.Jitter {
		t.Error("Jitter = false, want true")
	}
}
