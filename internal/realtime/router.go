package realtime

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Destination prefixes
const (
	AppPrefix   = "/app/"
	TopicPrefix = "/topic/"
	QueuePrefix = "/queue/"
)

// ErrNoHandler is returned for an /app destination nobody registered
var ErrNoHandler = errors.New("no handler for destination")

// Message is a SEND frame addressed to an application handler. The sender's
// identity, if any, is on the context.
type Message struct {
	Destination string
	Body        []byte
	Session     *Session
}

// HandlerFunc handles one application message
type HandlerFunc func(ctx context.Context, msg *Message) error

// Router maps /app destinations to handlers
type Router struct {
	mu     sync.RWMutex
	routes map[string]HandlerFunc
}

func NewRouter() *Router {
	return &Router{routes: make(map[string]HandlerFunc)}
}

// Handle registers h for AppPrefix + name, e.g. "chat.sendMessage"
func (r *Router) Handle(name string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[strings.TrimPrefix(name, AppPrefix)] = h
}

// Dispatch runs the handler registered for msg.Destination
func (r *Router) Dispatch(ctx context.Context, msg *Message) error {
	r.mu.RLock()
	h, ok := r.routes[strings.TrimPrefix(msg.Destination, AppPrefix)]
	r.mu.RUnlock()
	if !ok {
		return ErrNoHandler
	}
	return h(ctx, msg)
}
