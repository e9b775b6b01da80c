package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/lookatitude/videogen/cache"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface check.
var _ cache.Backend = (*Backend)(nil)

func newTestBackend(t *testing.T) (*Backend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	b, err := New(Config{Client: client})
	require.NoError(t, err)
	return b, mr
}

func TestNew(t *testing.T) {
	t.Run("nil client returns error", func(t *testing.T) {
		_, err := New(Config{})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "client is required")
	})

	t.Run("default key prefix", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
		b, err := New(Config{Client: client})
		require.NoError(t, err)
		assert.Equal(t, "videogen:cache:", b.keyPrefix)
	})

	t.Run("custom key prefix", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
		b, err := New(Config{Client: client, KeyPrefix: "custom:"})
		require.NoError(t, err)
		assert.Equal(t, "custom:", b.keyPrefix)
	})
}

func TestBackend_SetAndGet(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)

	require.NoError(t, b.Set(ctx, "key1", []byte("value1"), time.Minute))

	val, ok, err := b.Get(ctx, "key1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "value1", string(val))
}

func TestBackend_GetMissing(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)

	val, ok, err := b.Get(ctx, "nonexistent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestBackend_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	b, mr := newTestBackend(t)

	require.NoError(t, b.Set(ctx, "key1", []byte("v"), 100*time.Millisecond))
	mr.FastForward(200 * time.Millisecond)

	_, ok, err := b.Get(ctx, "key1")
	require.NoError(t, err)
	assert.False(t, ok, "entry should have expired")
}

func TestBackend_ZeroTTLUsesDefault(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	b, err := New(Config{Client: client, DefaultTTL: 100 * time.Millisecond})
	require.NoError(t, err)

	require.NoError(t, b.Set(ctx, "key1", []byte("v"), 0))
	mr.FastForward(200 * time.Millisecond)

	_, ok, _ := b.Get(ctx, "key1")
	assert.False(t, ok)
}

func TestBackend_Delete(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)

	require.NoError(t, b.Set(ctx, "key1", []byte("v"), time.Minute))
	require.NoError(t, b.Delete(ctx, "key1"))

	_, ok, _ := b.Get(ctx, "key1")
	assert.False(t, ok)
}

func TestBackend_DeleteNonexistent(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)
	assert.NoError(t, b.Delete(ctx, "nonexistent"))
}

func TestBackend_Clear(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)

	require.NoError(t, b.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, b.Set(ctx, "b", []byte("2"), time.Minute))

	require.NoError(t, b.Clear(ctx))

	_, ok, _ := b.Get(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = b.Get(ctx, "b")
	assert.False(t, ok)
}

func TestBackend_ClearOnlyAffectsOwnPrefix(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	b1, err := New(Config{Client: client, KeyPrefix: "ns1:"})
	require.NoError(t, err)
	b2, err := New(Config{Client: client, KeyPrefix: "ns2:"})
	require.NoError(t, err)

	require.NoError(t, b1.Set(ctx, "k", []byte("1"), time.Minute))
	require.NoError(t, b2.Set(ctx, "k", []byte("2"), time.Minute))

	require.NoError(t, b1.Clear(ctx))

	_, ok, _ := b1.Get(ctx, "k")
	assert.False(t, ok)
	val, ok, _ := b2.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "2", string(val))
}

func TestRegistry_Redis(t *testing.T) {
	names := cache.List()
	assert.Contains(t, names, "redis")
}
