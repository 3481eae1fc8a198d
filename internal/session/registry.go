package session

import (
	"sync"
	"time"

	"sketchd/internal/logging"
)

// Registry maps session ids to controllers and creates them on demand.
// Controllers are evicted when idle past a TTL; re-connecting with the same
// id after eviction starts a fresh session.
type Registry struct {
	factory func(id string) *Controller

	mu       sync.Mutex
	sessions map[string]*Controller
}

// NewRegistry builds a registry around a controller factory.
func NewRegistry(factory func(id string) *Controller) *Registry {
	return &Registry{
		factory:  factory,
		sessions: make(map[string]*Controller),
	}
}

// GetOrCreate returns the controller for id, creating it on first use.
func (r *Registry) GetOrCreate(id string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.sessions[id]; ok {
		return c
	}
	c := r.factory(id)
	r.sessions[id] = c
	logging.Session("registry: created session %s (%d live)", id, len(r.sessions))
	return c
}

// Get returns the controller for id, or nil.
func (r *Registry) Get(id string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id]
}

// Remove evicts and closes the controller for id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	c, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		c.Close()
		logging.Session("registry: removed session %s", id)
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes and evicts sessions idle longer than ttl. Sessions with a
// turn in flight are never evicted regardless of age.
func (r *Registry) Sweep(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	r.mu.Lock()
	var stale []*Controller
	for id, c := range r.sessions {
		if c.State() == StateIdle && c.LastActive().Before(cutoff) {
			stale = append(stale, c)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, c := range stale {
		c.Close()
		logging.Session("registry: swept idle session %s", c.ID())
	}
	return len(stale)
}
