// Package inmemory provides an in-memory LRU cache.Backend implementation.
// It registers itself under the name "inmemory" in the cache registry.
//
// The cache uses a doubly-linked list combined with a hash map for O(1) get,
// set, and eviction. Entries expire lazily on access based on their TTL.
// Unlike an entry-count LRU, eviction here is driven by a cumulative byte
// budget: the least-recently-used entries are evicted until the total
// stored size fits ByteBudget.
//
// # Usage
//
// Import for side-effect registration, then create via the cache registry:
//
//	import _ "github.com/lookatitude/videogen/cache/providers/inmemory"
//
//	b, err := cache.New("inmemory", cache.Config{
//	    ByteBudget: 2 << 30,
//	    DefaultTTL: time.Hour,
//	})
//
// Or create directly:
//
//	b := inmemory.New(cache.Config{ByteBudget: 2 << 30, DefaultTTL: time.Hour})
package inmemory