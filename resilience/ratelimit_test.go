package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBucket_BurstThenThrottle(t *testing.T) {
	b := NewBucket(30, 5)
	for i := 0; i < 5; i++ {
		assert.True(t, b.Allow(), "burst capacity should allow %d requests", 5)
	}
	assert.False(t, b.Allow(), "6th request within the burst window must be rejected")
}

func TestBucket_RefillsOverTime(t *testing.T) {
	base := time.Now()
	b := NewBucket(60, 1) // 1 token/sec
	b.now = func() time.Time { return base }

	assert.True(t, b.Allow())
	assert.False(t, b.Allow(), "no tokens left immediately")

	b.now = func() time.Time { return base.Add(1100 * time.Millisecond) }
	assert.True(t, b.Allow(), "a token should have refilled after ~1.1s")
}

func TestLimiter_ScopedPerFingerprint(t *testing.T) {
	l := NewLimiter(30, 1)
	assert.True(t, l.Allow("client-a"))
	assert.False(t, l.Allow("client-a"), "client-a exhausted its burst")
	assert.True(t, l.Allow("client-b"), "client-b has an independent bucket")
}

func TestLimiter_ThirtyFirstRequestRejected(t *testing.T) {
	// Scenario 6 (spec §8): 31 requests in 60s from one fingerprint; the
	// 31st is rejected, the first 30 proceed.
	base := time.Now()
	l := NewLimiter(30, 30)
	// Pre-seed the bucket with a frozen clock so the 30 allowed requests in
	// this test don't race real refill against wall-clock time.
	b := NewBucket(30, 30)
	b.now = func() time.Time { return base }
	l.mu.Lock()
	l.buckets["client"] = b
	l.mu.Unlock()

	for i := 0; i < 30; i++ {
		assert.Truef(t, l.Allow("client"), "request %d of 30 should proceed", i+1)
	}
	assert.False(t, l.Allow("client"), "31st request must be rejected")
}