package inmemory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/lookatitude/videogen/cache"
)

func newTestCache(ttl time.Duration, byteBudget int64) *InMemoryCache {
	return New(cache.Config{DefaultTTL: ttl, ByteBudget: byteBudget})
}

func TestInMemoryCache_SetAndGet(t *testing.T) {
	c := newTestCache(time.Minute, 0)
	ctx := context.Background()

	if err := c.Set(ctx, "key1", []byte("value1"), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	val, ok, err := c.Get(ctx, "key1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if string(val) != "value1" {
		t.Errorf("Get() = %q, want %q", val, "value1")
	}
}

func TestInMemoryCache_GetMissing(t *testing.T) {
	c := newTestCache(time.Minute, 0)
	ctx := context.Background()

	val, ok, err := c.Get(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for missing key")
	}
	if val != nil {
		t.Errorf("Get() = %v, want nil", val)
	}
}

func TestInMemoryCache_SetOverwrite(t *testing.T) {
	c := newTestCache(time.Minute, 0)
	ctx := context.Background()

	_ = c.Set(ctx, "key", []byte("v1"), 0)
	_ = c.Set(ctx, "key", []byte("v2"), 0)

	val, ok, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if string(val) != "v2" {
		t.Errorf("Get() = %q, want %q", val, "v2")
	}
}

func TestInMemoryCache_Delete(t *testing.T) {
	c := newTestCache(time.Minute, 0)
	ctx := context.Background()

	_ = c.Set(ctx, "key", []byte("value"), 0)
	if err := c.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	_, ok, _ := c.Get(ctx, "key")
	if ok {
		t.Error("Get() ok = true after Delete(), want false")
	}
}

func TestInMemoryCache_DeleteNonexistent(t *testing.T) {
	c := newTestCache(time.Minute, 0)
	ctx := context.Background()

	err := c.Delete(ctx, "nonexistent")
	if err != nil {
		t.Errorf("Delete() of nonexistent key error = %v, want nil", err)
	}
}

func TestInMemoryCache_Clear(t *testing.T) {
	c := newTestCache(time.Minute, 0)
	ctx := context.Background()

	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), 0)
	_ = c.Set(ctx, "c", []byte("3"), 0)

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	if c.Len() != 0 {
		t.Errorf("Len() = %d after Clear(), want 0", c.Len())
	}
	if c.TotalBytes() != 0 {
		t.Errorf("TotalBytes() = %d after Clear(), want 0", c.TotalBytes())
	}

	_, ok, _ := c.Get(ctx, "a")
	if ok {
		t.Error("Get(a) ok = true after Clear(), want false")
	}
}

func TestInMemoryCache_TTL_Expiration(t *testing.T) {
	c := newTestCache(time.Minute, 0)
	ctx := context.Background()

	currentTime := time.Now()
	c.now = func() time.Time { return currentTime }

	_ = c.Set(ctx, "key", []byte("value"), 100*time.Millisecond)

	val, ok, _ := c.Get(ctx, "key")
	if !ok {
		t.Fatal("Get() ok = false, want true before expiry")
	}
	if string(val) != "value" {
		t.Errorf("Get() = %q, want %q", val, "value")
	}

	currentTime = currentTime.Add(200 * time.Millisecond)

	_, ok, _ = c.Get(ctx, "key")
	if ok {
		t.Error("Get() ok = true after TTL expired, want false")
	}
}

func TestInMemoryCache_DefaultTTL(t *testing.T) {
	c := newTestCache(50*time.Millisecond, 0)
	ctx := context.Background()

	currentTime := time.Now()
	c.now = func() time.Time { return currentTime }

	// TTL=0 should use default (50ms).
	_ = c.Set(ctx, "key", []byte("value"), 0)

	_, ok, _ := c.Get(ctx, "key")
	if !ok {
		t.Fatal("Get() ok = false before default TTL")
	}

	currentTime = currentTime.Add(100 * time.Millisecond)

	_, ok, _ = c.Get(ctx, "key")
	if ok {
		t.Error("Get() ok = true after default TTL expired")
	}
}

func TestInMemoryCache_NegativeTTL_NoExpiration(t *testing.T) {
	c := newTestCache(50*time.Millisecond, 0)
	ctx := context.Background()

	currentTime := time.Now()
	c.now = func() time.Time { return currentTime }

	// Negative TTL = never expires.
	_ = c.Set(ctx, "key", []byte("value"), -1)

	currentTime = currentTime.Add(10 * time.Second)

	val, ok, _ := c.Get(ctx, "key")
	if !ok {
		t.Fatal("Get() ok = false, want true for non-expiring entry")
	}
	if string(val) != "value" {
		t.Errorf("Get() = %q, want %q", val, "value")
	}
}

func TestInMemoryCache_ByteBudget_Eviction(t *testing.T) {
	// Each value is 1 byte; a budget of 3 bytes holds 3 entries.
	c := newTestCache(time.Minute, 3)
	ctx := context.Background()

	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), 0)
	_ = c.Set(ctx, "c", []byte("3"), 0)

	// Budget is full (3 bytes). Adding one more evicts LRU ("a").
	_ = c.Set(ctx, "d", []byte("4"), 0)

	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}
	if c.TotalBytes() != 3 {
		t.Errorf("TotalBytes() = %d, want 3", c.TotalBytes())
	}

	_, ok, _ := c.Get(ctx, "a")
	if ok {
		t.Error("Get(a) ok = true, want false (should be evicted as LRU)")
	}

	for _, key := range []string{"b", "c", "d"} {
		_, ok, _ := c.Get(ctx, key)
		if !ok {
			t.Errorf("Get(%q) ok = false, want true", key)
		}
	}
}

func TestInMemoryCache_LRU_AccessPromotes(t *testing.T) {
	c := newTestCache(time.Minute, 3)
	ctx := context.Background()

	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), 0)
	_ = c.Set(ctx, "c", []byte("3"), 0)

	// Access "a" to promote it from LRU to MRU.
	_, _, _ = c.Get(ctx, "a")

	// Add new item → "b" should be evicted (now LRU).
	_ = c.Set(ctx, "d", []byte("4"), 0)

	_, ok, _ := c.Get(ctx, "b")
	if ok {
		t.Error("Get(b) ok = true, want false (should be evicted as LRU)")
	}

	_, ok, _ = c.Get(ctx, "a")
	if !ok {
		t.Error("Get(a) ok = false, want true (was promoted by access)")
	}
}

func TestInMemoryCache_ByteBudget_LargeValueEvictsMultiple(t *testing.T) {
	// Budget holds 4 bytes. Three 1-byte entries fill it; a 3-byte entry
	// must evict enough LRU entries to make room.
	c := newTestCache(time.Minute, 4)
	ctx := context.Background()

	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), 0)
	_ = c.Set(ctx, "c", []byte("3"), 0)
	_ = c.Set(ctx, "big", []byte("xyz"), 0)

	if c.TotalBytes() > 4 {
		t.Errorf("TotalBytes() = %d, want <= 4", c.TotalBytes())
	}

	_, ok, _ := c.Get(ctx, "big")
	if !ok {
		t.Error("Get(big) ok = false, want true")
	}
	_, ok, _ = c.Get(ctx, "a")
	if ok {
		t.Error("Get(a) ok = true, want false (evicted to make room)")
	}
}

func TestInMemoryCache_ByteBudget_Zero_Unlimited(t *testing.T) {
	c := newTestCache(time.Minute, 0)
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		_ = c.Set(ctx, fmt.Sprintf("key-%d", i), []byte(fmt.Sprintf("%d", i)), 0)
	}

	if c.Len() != 1000 {
		t.Errorf("Len() = %d, want 1000 (unlimited)", c.Len())
	}
}

func TestInMemoryCache_Len(t *testing.T) {
	c := newTestCache(time.Minute, 0)
	ctx := context.Background()

	if c.Len() != 0 {
		t.Errorf("Len() = %d on empty cache, want 0", c.Len())
	}

	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), 0)

	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}

	_ = c.Delete(ctx, "a")

	if c.Len() != 1 {
		t.Errorf("Len() = %d after delete, want 1", c.Len())
	}
}

func TestInMemoryCache_SetUpdateAdjustsTotalBytes(t *testing.T) {
	c := newTestCache(time.Minute, 0)
	ctx := context.Background()

	_ = c.Set(ctx, "key", []byte("ab"), 0)
	if c.TotalBytes() != 2 {
		t.Fatalf("TotalBytes() = %d, want 2", c.TotalBytes())
	}

	_ = c.Set(ctx, "key", []byte("abcdef"), 0)
	if c.TotalBytes() != 6 {
		t.Errorf("TotalBytes() = %d after overwrite, want 6", c.TotalBytes())
	}
}

func TestInMemoryCache_Registry(t *testing.T) {
	// Verify the cache is registered via init().
	names := cache.List()
	found := false
	for _, name := range names {
		if name == "inmemory" {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("cache.List() = %v, want to contain %q", names, "inmemory")
	}

	// Create via registry.
	b, err := cache.New("inmemory", cache.Config{DefaultTTL: time.Minute, ByteBudget: 1024})
	if err != nil {
		t.Fatalf("cache.New() error = %v", err)
	}
	if b == nil {
		t.Fatal("cache.New() returned nil")
	}
}

func TestInMemoryCache_SetUpdatePromotesToFront(t *testing.T) {
	c := newTestCache(time.Minute, 3)
	ctx := context.Background()

	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), 0)
	_ = c.Set(ctx, "c", []byte("3"), 0)

	// Update "a" (promotes to front).
	_ = c.Set(ctx, "a", []byte("9"), 0)

	// Add "d" → "b" should be evicted (LRU).
	_ = c.Set(ctx, "d", []byte("4"), 0)

	_, ok, _ := c.Get(ctx, "b")
	if ok {
		t.Error("Get(b) ok = true, want false (evicted after a was promoted)")
	}

	val, ok, _ := c.Get(ctx, "a")
	if !ok {
		t.Fatal("Get(a) ok = false, want true")
	}
	if string(val) != "9" {
		t.Errorf("Get(a) = %q, want %q", val, "9")
	}
}
