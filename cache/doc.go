// Package cache implements the Result Cache (C1).
//
// Stage operators are pure functions of their inputs and parameters: the
// same operator, version, input references, and rounded parameters always
// produce the same output. ResultCache exploits that by keying on a
// content-addressed fingerprint (see the artifact package) and memoizing
// the resulting artifact, so identical stage work across jobs and within a
// single job's retries is computed at most once.
//
// A Backend provides the raw byte-addressed storage (inmemory, redis);
// ResultCache layers artifact (de)serialization, a total-byte budget
// (ErrTooLarge), and at-most-one-concurrent-producer stampede control per
// key on top of it via GetOrProduce. Register a Backend's provider package
// for side effects to make it available through New:
//
//	import _ "github.com/lookatitude/videogen/cache/providers/redis"
//
//	backend, err := cache.New("redis", cache.Config{
//	    ByteBudget: 2 << 30,
//	    DefaultTTL: time.Hour,
//	    Options:    map[string]any{"addr": "localhost:6379"},
//	})
//	rc := cache.NewResultCache(backend, 2<<30)
package cache
