package realtime

import (
	"strings"
	"sync"
)

// UserPrefix is prepended to a destination to address one identity's sessions
const UserPrefix = "/user"

// Hub tracks the live sessions of this instance
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{sessions: make(map[string]*Session)}
}

// Register adds a session
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.id] = s
}

// Unregister removes a session
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, s.id)
}

// Len returns the number of live sessions
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) snapshot() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out
}

// SendToUser delivers body to every session currently bound to identityName
// and subscribed to /user + destination. It returns how many sessions got it.
func (h *Hub) SendToUser(identityName, destination string, body []byte) int {
	if identityName == "" {
		return 0
	}
	target := UserPrefix + ensureLeadingSlash(destination)
	n := 0
	for _, s := range h.snapshot() {
		if s.Identity().Name() != identityName {
			continue
		}
		if s.deliver(target, body) {
			n++
		}
	}
	return n
}

// Broadcast delivers body to every session subscribed to destination
func (h *Hub) Broadcast(destination string, body []byte) int {
	n := 0
	for _, s := range h.snapshot() {
		if s.deliver(destination, body) {
			n++
		}
	}
	return n
}

// Close shuts every session down
func (h *Hub) Close() {
	for _, s := range h.snapshot() {
		s.Close()
	}
}

func ensureLeadingSlash(p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}
