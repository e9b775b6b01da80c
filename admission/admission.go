// Package admission implements the GPU Admission Controller (C2): a FIFO,
// VRAM-and-concurrency-bounded gate that stage operators acquire a ticket
// from before running a model, and release on every exit path.
package admission

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lookatitude/videogen/core"
	"github.com/lookatitude/videogen/o11y"
)

// ModelSpec declares one registered model's resource footprint: the VRAM it
// occupies while running and how many concurrent executions it tolerates.
type ModelSpec struct {
	VRAMCostMB     int
	MaxConcurrency int
}

// Config configures a Controller.
type Config struct {
	// BudgetMB is the global VRAM budget in megabytes.
	BudgetMB int
	// Models maps model name to its resource footprint. A model not present
	// here is rejected by Acquire with ErrInvalidInput.
	Models map[string]ModelSpec
}

// Ticket is a scoped acquisition of VRAM on a model, per spec §3's
// AdmissionTicket. It must be released on every exit path: success,
// failure, or cancellation.
type Ticket struct {
	id       uint64
	model    string
	vramCost int

	mu       sync.Mutex
	released bool
}

// Model returns the model this ticket was acquired for.
func (t *Ticket) Model() string { return t.model }

// VRAMCost returns the VRAM, in megabytes, this ticket reserves.
func (t *Ticket) VRAMCost() int { return t.vramCost }

// waiter is one pending Acquire call, queued FIFO.
type waiter struct {
	model string
	cost  int
	ready chan struct{}

	mu       sync.Mutex
	admitted bool
}

// Controller bounds global VRAM usage and per-model concurrency across
// concurrently executing stage operators (spec §4.2).
type Controller struct {
	mu          sync.Mutex
	budgetMB    int
	usedMB      int
	models      map[string]ModelSpec
	outstanding map[string]int
	queue       *list.List // of *waiter, front = earliest arrival
	nextID      uint64
}

// New creates a Controller with the given global VRAM budget and per-model
// resource specs.
func New(cfg Config) *Controller {
	models := make(map[string]ModelSpec, len(cfg.Models))
	for k, v := range cfg.Models {
		models[k] = v
	}
	return &Controller{
		budgetMB:    cfg.BudgetMB,
		models:      models,
		outstanding: make(map[string]int),
		queue:       list.New(),
	}
}

// Acquire blocks until VRAM and per-model concurrency allow model to run, the
// deadline passes, or ctx is cancelled — whichever comes first. Admission is
// strictly FIFO: a later arrival is never admitted ahead of an earlier one
// still waiting at the front of the queue, even if the later one would
// currently fit (spec §4.2's "ties broken by arrival order").
func (c *Controller) Acquire(ctx context.Context, model string, deadline time.Time) (*Ticket, error) {
	c.mu.Lock()
	spec, ok := c.models[model]
	if !ok {
		c.mu.Unlock()
		return nil, core.NewError("admission.Acquire", core.ErrInvalidInput, fmt.Sprintf("unregistered model %q", model), nil)
	}

	w := &waiter{model: model, cost: spec.VRAMCostMB, ready: make(chan struct{})}
	elem := c.queue.PushBack(w)
	c.tryAdmitLocked()
	c.mu.Unlock()

	var timerC <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timerC = timer.C
	}

	select {
	case <-w.ready:
		return c.newTicket(w), nil
	case <-ctx.Done():
		return c.resolveInterrupted(w, elem, core.NewError("admission.Acquire", core.ErrCancelled, "acquire cancelled", ctx.Err()))
	case <-timerC:
		return c.resolveInterrupted(w, elem, core.NewError("admission.Acquire", core.ErrTimeout, "acquire deadline exceeded", nil))
	}
}

// resolveInterrupted handles the race between a waiter's cancellation/timeout
// firing and the controller admitting it at (nearly) the same instant: if
// admission already committed VRAM and the concurrency slot to w, that grant
// must not be silently dropped, so it is honored as a ticket instead.
func (c *Controller) resolveInterrupted(w *waiter, elem *list.Element, interruptErr error) (*Ticket, error) {
	w.mu.Lock()
	admitted := w.admitted
	w.mu.Unlock()
	if admitted {
		return c.newTicket(w), nil
	}

	c.mu.Lock()
	c.queue.Remove(elem)
	c.mu.Unlock()
	return nil, interruptErr
}

func (c *Controller) newTicket(w *waiter) *Ticket {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.mu.Unlock()
	return &Ticket{id: id, model: w.model, vramCost: w.cost}
}

// tryAdmitLocked admits the front-of-queue waiter if it currently fits, then
// recurses so a run of newly-fitting waiters is admitted in one pass. Must be
// called with c.mu held.
func (c *Controller) tryAdmitLocked() {
	front := c.queue.Front()
	if front == nil {
		return
	}
	w := front.Value.(*waiter)
	spec := c.models[w.model]
	if c.usedMB+w.cost > c.budgetMB {
		return
	}
	if c.outstanding[w.model] >= spec.MaxConcurrency {
		return
	}

	c.usedMB += w.cost
	c.outstanding[w.model]++
	c.queue.Remove(front)

	w.mu.Lock()
	w.admitted = true
	w.mu.Unlock()
	close(w.ready)

	c.tryAdmitLocked()
}

// Release returns a ticket's reserved VRAM and concurrency slot, waking the
// earliest waiter that now fits. Releasing an already-released ticket is a
// no-op logged at warning level (spec §4.2).
func (c *Controller) Release(ctx context.Context, t *Ticket) {
	if t == nil {
		return
	}
	t.mu.Lock()
	if t.released {
		t.mu.Unlock()
		o11y.FromContext(ctx).Warn(ctx, "admission: double release", "model", t.model)
		return
	}
	t.released = true
	t.mu.Unlock()

	c.mu.Lock()
	c.usedMB -= t.vramCost
	c.outstanding[t.model]--
	c.tryAdmitLocked()
	c.mu.Unlock()
}

// UsedMB returns the currently reserved VRAM, in megabytes.
func (c *Controller) UsedMB() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usedMB
}

// Outstanding returns the number of outstanding tickets for model.
func (c *Controller) Outstanding(model string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outstanding[model]
}

// QueueDepth returns the number of Acquire calls currently waiting. Exposed
// for the queue-depth-at-admission metric (spec §4.8).
func (c *Controller) QueueDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Len()
}
