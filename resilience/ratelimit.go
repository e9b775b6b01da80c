package resilience

import (
	"sync"
	"time"
)

// Bucket is a token bucket rate limiter for a single client fingerprint,
// refilled continuously based on elapsed time rather than on a fixed tick,
// so idle clients don't pay for an active timer. Grounded on the sliding
// window/channel-semaphore rate limiting idiom used elsewhere in the corpus,
// adapted here to the continuous-refill token-bucket semantics spec §4.8
// names explicitly (30 req/min, burst 5 defaults).
type Bucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
	now        func() time.Time
}

// NewBucket creates a Bucket with the given burst capacity and a refill rate
// derived from perMinute.
func NewBucket(perMinute, burst int) *Bucket {
	if burst <= 0 {
		burst = 1
	}
	return &Bucket{
		tokens:     float64(burst),
		capacity:   float64(burst),
		refillRate: float64(perMinute) / 60.0,
		last:       time.Now(),
		now:        time.Now,
	}
}

// Allow reports whether a request may proceed now, consuming one token if
// so. Safe for concurrent use.
func (b *Bucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	elapsed := now.Sub(b.last).Seconds()
	b.last = now

	b.tokens += elapsed * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Limiter keys a Bucket per client fingerprint, per spec §4.8 and §6.7
// (rate_per_min, rate_burst).
type Limiter struct {
	mu        sync.Mutex
	buckets   map[string]*Bucket
	perMinute int
	burst     int
}

// NewLimiter creates a Limiter applying the same perMinute/burst policy to
// every client fingerprint.
func NewLimiter(perMinute, burst int) *Limiter {
	return &Limiter{
		buckets:   make(map[string]*Bucket),
		perMinute: perMinute,
		burst:     burst,
	}
}

// Allow reports whether the client identified by fingerprint may proceed.
func (l *Limiter) Allow(fingerprint string) bool {
	l.mu.Lock()
	b, ok := l.buckets[fingerprint]
	if !ok {
		b = NewBucket(l.perMinute, l.burst)
		l.buckets[fingerprint] = b
	}
	l.mu.Unlock()
	return b.Allow()
}