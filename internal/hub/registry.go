package hub

import "sync"

// Registry tracks connected clients. Broadcasts iterate under a read lock;
// connect/disconnect take the write lock for a short critical section only.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*Client)}
}

// Register adds a client. prime runs while the write lock is held, before
// any broadcast can reach the client; the hub uses it to enqueue the price
// snapshot so no update is lost between snapshot and live stream.
func (r *Registry) Register(c *Client, prime func(*Client)) {
	r.mu.Lock()
	if prime != nil {
		prime(c)
	}
	r.clients[c.ID] = c
	r.mu.Unlock()
}

// Unregister removes a client and returns it, or nil if unknown.
func (r *Registry) Unregister(id string) *Client {
	r.mu.Lock()
	c := r.clients[id]
	delete(r.clients, id)
	r.mu.Unlock()
	return c
}

// Get returns a client by id.
func (r *Registry) Get(id string) *Client {
	r.mu.RLock()
	c := r.clients[id]
	r.mu.RUnlock()
	return c
}

// Range calls fn for every registered client under the read lock. fn must
// not block.
func (r *Registry) Range(fn func(*Client)) {
	r.mu.RLock()
	for _, c := range r.clients {
		fn(c)
	}
	r.mu.RUnlock()
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	n := len(r.clients)
	r.mu.RUnlock()
	return n
}
