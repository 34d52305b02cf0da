package realtime

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/realqkqk123fr/temp-backend/internal/security"
	"github.com/realqkqk123fr/temp-backend/pkg/config"
	"github.com/realqkqk123fr/temp-backend/pkg/logger"
)

// inboxSize bounds frames read ahead of the one being handled
const inboxSize = 32

// Session is one client connection speaking STOMP over a websocket or a
// SockJS transport. A reader goroutine keeps the transport serviced while a
// single dispatcher handles frames in receipt order; all writes go through
// the send buffer and the write pump.
type Session struct {
	id        string
	transport transport
	cfg       config.RealtimeConfig
	log       *logger.Logger

	identity atomic.Pointer[security.Identity]

	mu   sync.RWMutex
	subs map[string]string // subscription id -> destination

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	seq       atomic.Uint64
}

func newSession(t transport, cfg config.RealtimeConfig, log *logger.Logger) *Session {
	id := uuid.New().String()
	return &Session{
		id:        id,
		transport: t,
		cfg:       cfg,
		log:       log.With(zap.String("session_id", id)),
		subs:      make(map[string]string),
		send:      make(chan []byte, cfg.SendBuffer),
		done:      make(chan struct{}),
	}
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// Identity returns the identity bound to the connection, or nil
func (s *Session) Identity() *security.Identity {
	return s.identity.Load()
}

// Bind replaces the connection identity. A nil identity leaves the current
// binding untouched.
func (s *Session) Bind(id *security.Identity) {
	if id == nil {
		return
	}
	if prev := s.identity.Swap(id); prev.Name() != id.Name() {
		s.log.Debug("session identity bound",
			zap.String("previous", prev.Name()),
			zap.String("username", id.Name()),
		)
	}
}

// Done is closed when the session shuts down
func (s *Session) Done() <-chan struct{} { return s.done }

// Close stops the session. Queued frames are flushed before the socket closes.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Send queues f for the write pump. It reports false when the session is
// closed or its buffer is full.
func (s *Session) Send(f *Frame) bool {
	data := f.Encode()
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- data:
		return true
	case <-s.done:
		return false
	default:
		s.log.Warn("send buffer full, frame dropped", zap.String("command", f.Command))
		return false
	}
}

func (s *Session) subscribe(id, destination string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[id] = destination
}

func (s *Session) unsubscribe(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subs[id]
	delete(s.subs, id)
	return ok
}

// subscriptions returns the ids subscribed to destination
func (s *Session) subscriptions(destination string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, dest := range s.subs {
		if dest == destination {
			ids = append(ids, id)
		}
	}
	return ids
}

// deliver sends one MESSAGE per subscription to destination and reports
// whether any was queued
func (s *Session) deliver(destination string, body []byte) bool {
	delivered := false
	for _, sub := range s.subscriptions(destination) {
		msg := NewFrame(CommandMessage, body,
			HeaderDestination, destination,
			HeaderSubscription, sub,
			HeaderMessageID, s.id+"-"+strconv.FormatUint(s.seq.Add(1), 10),
			HeaderContentType, "application/json",
		)
		if s.Send(msg) {
			delivered = true
		}
	}
	return delivered
}

// sendError queues an ERROR frame
func (s *Session) sendError(message, detail string) {
	s.Send(NewFrame(CommandError, []byte(detail),
		HeaderMessage, message,
		HeaderContentType, "text/plain",
	))
}

// inbound is a decoded frame, or the decode error that ends the session
// once the frames before it are handled
type inbound struct {
	frame *Frame
	err   error
}

// readLoop reads until the peer goes away, a frame is malformed or handle
// returns false, and closes the session on exit. Frames are handed to one
// dispatcher so a slow handler never stalls the transport: the reader keeps
// consuming pongs and heart-beats while the handler runs.
func (s *Session) readLoop(ctx context.Context, handle func(context.Context, *Frame) bool) {
	ctx, cancel := context.WithCancel(ctx)
	inbox := make(chan inbound, inboxSize)
	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		s.dispatch(ctx, inbox, handle)
	}()

	peerGone := s.read(inbox)
	if peerGone {
		cancel()
	}
	close(inbox)
	<-dispatched
	cancel()
	s.Close()
}

// read feeds inbox and reports whether it stopped because the transport failed
func (s *Session) read(inbox chan<- inbound) bool {
	enqueue := func(in inbound) bool {
		select {
		case inbox <- in:
			return true
		case <-s.done:
			return false
		}
	}

	for {
		data, err := s.transport.read()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.log.Warn("websocket read failed", zap.Error(err))
			} else {
				s.log.Debug("transport read ended", zap.Error(err))
			}
			return true
		}

		frames, err := Decode(data)
		for _, f := range frames {
			if !enqueue(inbound{frame: f}) {
				return false
			}
		}
		if err != nil {
			enqueue(inbound{err: err})
			return false
		}
	}
}

func (s *Session) dispatch(ctx context.Context, inbox <-chan inbound, handle func(context.Context, *Frame) bool) {
	for in := range inbox {
		if in.err != nil {
			s.log.Warn("malformed frame, closing session", zap.Error(in.err))
			s.sendError("malformed frame", in.err.Error())
			s.Close()
			return
		}
		if !handle(ctx, in.frame) {
			s.Close()
			return
		}
	}
}

// writePump owns every write to the transport. On close it flushes what is
// queued, says goodbye and closes the transport, which unblocks the reader.
func (s *Session) writePump() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-s.send:
			if err := s.transport.write(data); err != nil {
				s.log.Debug("transport write failed", zap.Error(err))
				s.Close()
				_ = s.transport.close()
				return
			}

		case <-ticker.C:
			if err := s.transport.keepalive(); err != nil {
				s.Close()
				_ = s.transport.close()
				return
			}

		case <-s.done:
			s.flush()
			_ = s.transport.close()
			return
		}
	}
}

func (s *Session) flush() {
	for {
		select {
		case data := <-s.send:
			if err := s.transport.write(data); err != nil {
				return
			}
		default:
			return
		}
	}
}
