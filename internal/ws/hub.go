package ws

import "sync"

// Hub is the in-process registry of live connections, one per user. It is the
// fan-out target for server-pushed events: publishing to a user reaches their
// active connection, if any.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]*Conn)}
}

// Register stores c as the user's active connection. Last-connected-wins: a
// previous connection for the same user is displaced and returned so the
// caller can close it.
func (h *Hub) Register(c *Conn) *Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.conns[c.UserID]
	h.conns[c.UserID] = c
	return prev
}

// Unregister removes c only if it is still the registered connection for its
// user. A stale teardown after a newer connection registered is a no-op.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.conns[c.UserID]; ok && cur == c {
		delete(h.conns, c.UserID)
	}
}

// IsConnected reports whether connID is the live connection for userID.
func (h *Hub) IsConnected(userID, connID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[userID]
	return ok && c.ID == connID
}

// SendToUser publishes an event on the user's channel. Returns false when the
// user has no live connection here or the connection's queue is full (slow
// clients drop rather than block the publisher).
func (h *Hub) SendToUser(userID, event string, payload any) bool {
	h.mu.RLock()
	c, ok := h.conns[userID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return c.Enqueue(event, payload)
}
