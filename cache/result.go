package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lookatitude/videogen/artifact"
	"github.com/lookatitude/videogen/o11y"
	"golang.org/x/sync/singleflight"
)

// ResultCache is the Result Cache (C1) proper: it wraps a Backend with
// artifact (de)serialization, a byte budget enforced before ever calling the
// backend, and at-most-one-concurrent-producer stampede control per
// fingerprint via singleflight.Group (spec §4.1, §8: "∀ cache key k: at any
// moment at most one operator instance is computing k").
type ResultCache struct {
	backend    Backend
	byteBudget int64
	group      singleflight.Group
}

// NewResultCache wraps backend with the stampede-control and byte-budget
// policy layer.
func NewResultCache(backend Backend, byteBudget int64) *ResultCache {
	return &ResultCache{backend: backend, byteBudget: byteBudget}
}

type storedArtifact struct {
	Kind       artifact.Kind     `json:"kind"`
	Bytes      []byte            `json:"bytes"`
	Width      int               `json:"width,omitempty"`
	Height     int                `json:"height,omitempty"`
	SampleRate int                `json:"sample_rate,omitempty"`
	DurationMS int64              `json:"duration_ms,omitempty"`
	Detections *artifact.DetectionList `json:"detections,omitempty"`
	Prosody    *artifact.ProsodyResult `json:"prosody,omitempty"`
	Meta       map[string]string `json:"meta,omitempty"`
	Ref        string            `json:"ref"`
}

func marshalArtifact(a *artifact.Artifact) ([]byte, error) {
	return json.Marshal(storedArtifact{
		Kind: a.Kind, Bytes: a.Bytes, Width: a.Width, Height: a.Height,
		SampleRate: a.SampleRate, DurationMS: a.DurationMS,
		Detections: a.Detections, Prosody: a.Prosody, Meta: a.Meta, Ref: a.Ref,
	})
}

func unmarshalArtifact(data []byte) (*artifact.Artifact, error) {
	var sa storedArtifact
	if err := json.Unmarshal(data, &sa); err != nil {
		return nil, err
	}
	return &artifact.Artifact{
		Ref: sa.Ref, Kind: sa.Kind, Bytes: sa.Bytes, Width: sa.Width, Height: sa.Height,
		SampleRate: sa.SampleRate, DurationMS: sa.DurationMS,
		Detections: sa.Detections, Prosody: sa.Prosody, Meta: sa.Meta,
	}, nil
}

// Get returns the cached artifact for key, if present and unexpired.
func (c *ResultCache) Get(ctx context.Context, key string) (*artifact.Artifact, bool, error) {
	raw, found, err := c.backend.Get(ctx, key)
	if err != nil {
		// Cache failures are soft per spec §4.1/§7: degrade to a miss.
		o11y.FromContext(ctx).Warn(ctx, "cache get failed, degrading to miss", "key", key, "err", err)
		return nil, false, nil
	}
	if !found {
		return nil, false, nil
	}
	art, err := unmarshalArtifact(raw)
	if err != nil {
		o11y.FromContext(ctx).Warn(ctx, "cache entry corrupt, degrading to miss", "key", key, "err", err)
		return nil, false, nil
	}
	return art, true, nil
}

// Put inserts art under key with the given ttl. If art exceeds the byte
// budget, Put returns ErrTooLarge and does not touch the backend; callers
// must treat this as "completed, not cached" (spec §8) rather than a job
// failure. All other backend failures are swallowed with a warning log.
func (c *ResultCache) Put(ctx context.Context, key string, art *artifact.Artifact, ttl time.Duration) error {
	size := art.SizeBytes()
	if c.byteBudget > 0 && size > c.byteBudget {
		return ErrTooLarge
	}
	raw, err := marshalArtifact(art)
	if err != nil {
		return fmt.Errorf("cache: marshal artifact: %w", err)
	}
	if err := c.backend.Set(ctx, key, raw, ttl); err != nil {
		o11y.FromContext(ctx).Warn(ctx, "cache put failed, continuing without caching", "key", key, "err", err)
	}
	return nil
}

// Invalidate removes key from the backend. A GetOrProduce call already in
// flight for key is not affected: when its producer completes, the result is
// stored under key as usual.
func (c *ResultCache) Invalidate(ctx context.Context, key string) error {
	return c.backend.Delete(ctx, key)
}

// GetOrProduce returns the cached artifact for key if present; otherwise it
// calls produce, ensuring at most one concurrent call to produce runs per
// key process-wide — concurrent callers for the same key block on the first
// caller's result (singleflight stampede control, spec §4.1/§8). The
// returned hit is false whenever produce ran, even for callers that only
// waited on another goroutine's in-flight call, since none of them observed
// a cache hit.
func (c *ResultCache) GetOrProduce(ctx context.Context, key string, ttl time.Duration, produce func(context.Context) (*artifact.Artifact, error)) (art *artifact.Artifact, hit bool, err error) {
	if art, hit, err = c.Get(ctx, key); err == nil && hit {
		return art, true, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		produced, perr := produce(ctx)
		if perr != nil {
			return nil, perr
		}
		if putErr := c.Put(ctx, key, produced, ttl); putErr != nil && putErr != ErrTooLarge {
			o11y.FromContext(ctx).Warn(ctx, "cache put failed after production", "key", key, "err", putErr)
		}
		return produced, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*artifact.Artifact), false, nil
}