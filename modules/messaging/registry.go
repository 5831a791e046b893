package messaging

import "sync"

// Registry maps a user ID to the handle of that user's live connection.
// At most one handle is kept per user; the latest registration wins.
type Registry struct {
	mu      sync.RWMutex
	handles map[int64]*Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handles: make(map[int64]*Handle),
	}
}

// Put registers h for userID, replacing any existing handle.
func (r *Registry) Put(userID int64, h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[userID] = h
}

// Get returns the handle registered for userID.
func (r *Registry) Get(userID int64) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[userID]
	return h, ok
}

// Remove deletes the entry for userID only if it still points at h.
// It reports whether an entry was removed.
func (r *Registry) Remove(userID int64, h *Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.handles[userID]
	if !ok || current != h {
		return false
	}
	delete(r.handles, userID)
	return true
}

// Len returns the number of registered users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
