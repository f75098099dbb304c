package wshub

import "sync"

type presenceKey struct {
	code     string
	playerID string
}

// Hub counts live stream connections per room player. A player with two tabs
// open stays connected until both close.
type Hub struct {
	mu    sync.Mutex
	conns map[presenceKey]int
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[presenceKey]int),
	}
}

// Register records a connection and reports whether it is the player's first.
func (h *Hub) Register(code, playerID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	k := presenceKey{code, playerID}
	h.conns[k]++
	return h.conns[k] == 1
}

// Unregister drops a connection and reports whether it was the player's last.
func (h *Hub) Unregister(code, playerID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	k := presenceKey{code, playerID}
	n, ok := h.conns[k]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(h.conns, k)
		return true
	}
	h.conns[k] = n - 1
	return false
}

// Forget drops every count for a room that no longer exists.
func (h *Hub) Forget(code string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for k := range h.conns {
		if k.code == code {
			delete(h.conns, k)
		}
	}
}

// Count is the number of live stream connections across all rooms.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	total := 0
	for _, n := range h.conns {
		total += n
	}
	return total
}
