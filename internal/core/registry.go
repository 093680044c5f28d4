package core

import "sync"

// Registry maps a user to at most one live client connection. It is the
// single source of truth for reachability. Mutations happen only on the
// hub loop; the mutex exists so HTTP handlers can take read snapshots.
type Registry struct {
	mu      sync.RWMutex
	clients map[int64]*Client
}

// NewRegistry constructs an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[int64]*Client),
	}
}

// Register stores the client as the user's live connection. If a prior
// connection exists it is returned so the caller can terminate it;
// last writer wins.
func (r *Registry) Register(c *Client) (superseded *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.clients[c.UserID]
	r.clients[c.UserID] = c
	return prev
}

// Unregister removes the client if it is still the user's current
// connection. Returns true if the user became unreachable. A superseded
// connection unregistering later is a no-op.
func (r *Registry) Unregister(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.clients[c.UserID]; ok && current == c {
		delete(r.clients, c.UserID)
		return true
	}
	return false
}

// Get returns the user's live client, or nil.
func (r *Registry) Get(userID int64) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clients[userID]
}

// IsReachable reports whether the user has a live connection.
func (r *Registry) IsReachable(userID int64) bool {
	return r.Get(userID) != nil
}

// All returns a snapshot of every live client.
func (r *Registry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	return clients
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
