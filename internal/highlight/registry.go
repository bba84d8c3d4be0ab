package highlight

import (
	"sort"
	"sync"

	"github.com/tchow-twistedxcom/tgarchive/internal/richtext"
)

// Registry holds the currently highlighted ranges per row key. Painters
// consult it; rows register on mount and unregister on recycle or content
// change.
type Registry struct {
	mu     sync.RWMutex
	ranges map[string][]richtext.Range
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ranges: make(map[string][]richtext.Range)}
}

// Register replaces the ranges held by key. Registering no ranges is the same
// as Unregister.
func (r *Registry) Register(key string, ranges []richtext.Range) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(ranges) == 0 {
		delete(r.ranges, key)
		return
	}
	r.ranges[key] = append([]richtext.Range(nil), ranges...)
}

// Unregister drops every range held by key.
func (r *Registry) Unregister(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ranges, key)
}

// Ranges returns a copy of the ranges held by key.
func (r *Registry) Ranges(key string) []richtext.Range {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rs := r.ranges[key]
	if len(rs) == 0 {
		return nil
	}
	return append([]richtext.Range(nil), rs...)
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.ranges))
	for k := range r.ranges {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of keys holding ranges.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ranges)
}

// Clear drops everything.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.ranges)
}
