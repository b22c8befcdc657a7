package protocol

import "sync"

// Registry owns the current protocol list. Readers always get a copy of a
// complete snapshot; writers replace the whole list at once.
type Registry struct {
	mu    sync.RWMutex
	items []Protocol
}

func NewRegistry(seed []Protocol) *Registry {
	return &Registry{items: clone(seed)}
}

// Snapshot returns a copy of the current list.
func (r *Registry) Snapshot() []Protocol {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return clone(r.items)
}

// Replace swaps in next as the current list.
func (r *Registry) Replace(next []Protocol) {
	c := clone(next)
	r.mu.Lock()
	r.items = c
	r.mu.Unlock()
}

// Update applies fn to the current list and stores its result atomically
// with respect to other writers. The new list is returned.
func (r *Registry) Update(fn func([]Protocol) []Protocol) []Protocol {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = clone(fn(clone(r.items)))
	return clone(r.items)
}

// Get looks up a protocol by id.
func (r *Registry) Get(id string) (Protocol, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Find(r.items, id)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

func clone(list []Protocol) []Protocol {
	out := make([]Protocol, len(list))
	copy(out, list)
	return out
}
