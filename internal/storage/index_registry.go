package storage

import "sync"

// IndexRegistry records which similarity indexes a process has already
// prepared, keyed by backend-specific names (e.g. "public.people.name").
//
// It is passed explicitly to backends through Config so that two stores, or
// two tests, never share hidden state. The zero value is ready to use.
type IndexRegistry struct {
	mu       sync.Mutex
	prepared map[string]bool
}

// NewIndexRegistry returns an empty registry.
func NewIndexRegistry() *IndexRegistry { return &IndexRegistry{} }

// Prepared reports whether key was marked.
func (r *IndexRegistry) Prepared(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prepared[key]
}

// MarkPrepared records key.
func (r *IndexRegistry) MarkPrepared(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.prepared == nil {
		r.prepared = map[string]bool{}
	}
	r.prepared[key] = true
}
