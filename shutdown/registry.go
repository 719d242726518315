// Package shutdown coordinates the end of a batch: interrupt handling and
// ordered release of the refiner and history store.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Func releases one resource. It should honour ctx and be idempotent.
type Func func(ctx context.Context) error

// Priorities used by the sr command. Lower values run first.
const (
	PriorityRefiner = 10
	PriorityHistory = 30
)

type entry struct {
	name     string
	fn       Func
	priority int
}

// Registry runs registered cleanup functions once, in priority order.
type Registry struct {
	mu      sync.Mutex
	entries []entry
	closed  bool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds fn under name. Registration after Run is a no-op.
// Entries with equal priority run in registration order.
func (r *Registry) Register(name string, priority int, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.entries = append(r.entries, entry{name: name, fn: fn, priority: priority})
}

// RegisterCloser registers c.Close.
func (r *Registry) RegisterCloser(name string, priority int, c interface{ Close() error }) {
	r.Register(name, priority, func(context.Context) error { return c.Close() })
}

// Run calls every registered function, even when some fail, and returns
// the failures joined. Only the first call does any work.
func (r *Registry) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	sorted := r.sortedLocked()
	r.mu.Unlock()

	var errs []error
	for _, e := range sorted {
		if err := e.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
		}
	}
	return errors.Join(errs...)
}

// Names returns the registered names in execution order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	sorted := r.sortedLocked()
	names := make([]string, len(sorted))
	for i, e := range sorted {
		names[i] = e.name
	}
	return names
}

func (r *Registry) sortedLocked() []entry {
	sorted := make([]entry, len(r.entries))
	copy(sorted, r.entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].priority < sorted[j].priority
	})
	return sorted
}
