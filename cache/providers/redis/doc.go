// Package redis provides a Redis-backed cache.Backend. It registers itself
// under the name "redis" in the cache registry. Unlike the inmemory
// provider, eviction is left to Redis's own TTL expiry rather than a
// process-local byte budget; ResultCache still enforces its own byte
// budget before ever calling Set.
//
// # Usage
//
// Import for side-effect registration, then create via the cache registry:
//
//	import _ "github.com/lookatitude/videogen/cache/providers/redis"
//
//	b, err := cache.New("redis", cache.Config{
//	    DefaultTTL: time.Hour,
//	    Options:    map[string]any{"addr": "localhost:6379"},
//	})
//
// Or construct directly against an existing client:
//
//	b, err := redis.New(redis.Config{Client: client, DefaultTTL: time.Hour})
package redis
