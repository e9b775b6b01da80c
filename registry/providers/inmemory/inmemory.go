// Package inmemory implements the authoritative in-memory Job Registry
// (spec §4.7), a mutex-guarded map adapted from the teacher's
// mutex-guarded-map store idiom but keyed per-job so that mutating one
// job's state never blocks a reader or writer of another.
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/lookatitude/videogen/core"
	"github.com/lookatitude/videogen/registry"
)

// Mirror optionally persists a job snapshot to a durable store. Registry
// calls it asynchronously and never waits on or surfaces its errors: the
// in-memory index is the single source of truth (spec §4.7).
type Mirror interface {
	Persist(ctx context.Context, job *registry.Job)
}

type entry struct {
	mu  sync.Mutex
	job *registry.Job
}

// Registry is the in-memory Job Registry implementation.
type Registry struct {
	mirror Mirror

	mu      sync.RWMutex
	entries map[string]*entry
}

// Option configures a Registry.
type Option func(*Registry)

// WithMirror installs an optional durable mirror.
func WithMirror(m Mirror) Option {
	return func(r *Registry) { r.mirror = m }
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{entries: make(map[string]*entry)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ registry.Registry = (*Registry)(nil)

// Create registers job under its ID.
func (r *Registry) Create(_ context.Context, job *registry.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[job.ID]; exists {
		return core.NewError("registry.Create", core.ErrInvalidInput, "job already exists", nil)
	}
	r.entries[job.ID] = &entry{job: job.Clone()}
	r.mirrorAsync(job)
	return nil
}

// Get returns a stable snapshot of the job, or ErrNotFound.
func (r *Registry) Get(_ context.Context, id string) (*registry.Job, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, core.NewError("registry.Get", core.ErrNotFound, "job not found", nil)
	}

	e.mu.Lock()
	snapshot := e.job.Clone()
	e.mu.Unlock()
	return snapshot, nil
}

// Update applies mutate under the job's own lock. A job already in a
// terminal state is left untouched: mutate is not invoked, matching spec
// §6.3's "cancelling a terminal job is a no-op" and the broader invariant
// that terminal states never transition again.
func (r *Registry) Update(_ context.Context, id string, mutate func(*registry.Job)) error {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return core.NewError("registry.Update", core.ErrNotFound, "job not found", nil)
	}

	e.mu.Lock()
	if e.job.State.IsTerminal() {
		e.mu.Unlock()
		return nil
	}

	mutate(e.job)
	if e.job.State.IsTerminal() && e.job.TerminalAt.IsZero() {
		e.job.TerminalAt = time.Now()
	}
	snapshot := e.job.Clone()
	e.mu.Unlock()

	r.mirrorAsync(snapshot)
	return nil
}

// Reap removes jobs whose TerminalAt is older than retention, returning the
// count removed.
func (r *Registry) Reap(_ context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.entries {
		e.mu.Lock()
		expired := e.job.State.IsTerminal() && !e.job.TerminalAt.IsZero() && e.job.TerminalAt.Before(cutoff)
		e.mu.Unlock()
		if expired {
			delete(r.entries, id)
			removed++
		}
	}
	return removed, nil
}

func (r *Registry) mirrorAsync(job *registry.Job) {
	if r.mirror == nil {
		return
	}
	snapshot := job.Clone()
	go r.mirror.Persist(context.Background(), snapshot)
}
