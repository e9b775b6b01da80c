package inmemory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/lookatitude/videogen/cache"
)

func init() {
	cache.Register("inmemory", func(cfg cache.Config) (cache.Backend, error) {
		return New(cfg), nil
	})
}

// entry is a single cache entry stored in the LRU list.
type entry struct {
	key       string
	value     []byte
	size      int64
	expiresAt time.Time // zero value means no expiration
}

// InMemoryCache is a thread-safe, in-memory LRU cache.Backend with TTL-based
// lazy expiration and byte-budget eviction.
type InMemoryCache struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	order      *list.List // front = most recent, back = least recent
	defaultTTL time.Duration
	byteBudget int64
	totalBytes int64
	now        func() time.Time // injectable for testing
}

// New creates a new InMemoryCache with the given configuration. If
// ByteBudget is 0, the cache grows without bound.
func New(cfg cache.Config) *InMemoryCache {
	return &InMemoryCache{
		items:      make(map[string]*list.Element),
		order:      list.New(),
		defaultTTL: cfg.DefaultTTL,
		byteBudget: cfg.ByteBudget,
		now:        time.Now,
	}
}

// Get retrieves a value by key. If the entry exists but has expired, it is
// removed and (nil, false, nil) is returned. Found entries are promoted to
// the front of the LRU list.
func (c *InMemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}

	e := elem.Value.(*entry)

	if !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		c.removeLocked(elem)
		return nil, false, nil
	}

	c.order.MoveToFront(elem)
	return e.value, true, nil
}

// Set stores a value with the given key and TTL, evicting least-recently-used
// entries until the cumulative byte budget is respected. A zero TTL uses the
// backend's default TTL. A negative TTL means the entry never expires.
//
// Set never refuses an oversized single entry itself — that distinguished
// outcome (ErrTooLarge) is enforced one layer up, in ResultCache.Put, before
// Set is ever called.
func (c *InMemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.computeExpiry(ttl)
	size := int64(len(value))

	if elem, ok := c.items[key]; ok {
		e := elem.Value.(*entry)
		c.totalBytes += size - e.size
		e.value = value
		e.size = size
		e.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		c.evictToBudgetLocked()
		return nil
	}

	e := &entry{key: key, value: value, size: size, expiresAt: expiresAt}
	elem := c.order.PushFront(e)
	c.items[key] = elem
	c.totalBytes += size

	c.evictToBudgetLocked()
	return nil
}

// Delete removes a key from the cache. Deleting a non-existent key is a no-op.
func (c *InMemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeLocked(elem)
	}
	return nil
}

// Clear removes all entries from the cache.
func (c *InMemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.totalBytes = 0
	return nil
}

// Len returns the current number of entries in the cache. This includes
// entries that may have expired but have not yet been lazily removed.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// TotalBytes returns the current cumulative size of all stored values.
func (c *InMemoryCache) TotalBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalBytes
}

func (c *InMemoryCache) computeExpiry(ttl time.Duration) time.Time {
	if ttl < 0 {
		return time.Time{}
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	if ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(ttl)
}

// evictToBudgetLocked evicts least-recently-used entries until totalBytes
// fits byteBudget (or the cache is empty). Must be called with mu held.
func (c *InMemoryCache) evictToBudgetLocked() {
	if c.byteBudget <= 0 {
		return
	}
	for c.totalBytes > c.byteBudget {
		back := c.order.Back()
		if back == nil {
			return
		}
		c.removeLocked(back)
	}
}

// removeLocked removes the given list element from both the list and map,
// and debits its size from totalBytes. Must be called with mu held.
func (c *InMemoryCache) removeLocked(elem *list.Element) {
	e := elem.Value.(*entry)
	delete(c.items, e.key)
	c.order.Remove(elem)
	c.totalBytes -= e.size
}