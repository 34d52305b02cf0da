package realtime

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/igm/sockjs-go/v3/sockjs"
	"go.uber.org/zap"

	"github.com/realqkqk123fr/temp-backend/internal/security"
	"github.com/realqkqk123fr/temp-backend/pkg/config"
	"github.com/realqkqk123fr/temp-backend/pkg/logger"
)

// Authenticator turns an Authorization value into an identity and never
// fails. security.LenientBearerPolicy satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) *security.Identity
}

// FrameResolver yields the identity a frame runs as, or nil to defer to the
// next resolver
type FrameResolver func(ctx context.Context, s *Session, f *Frame) *security.Identity

// Metrics receives gateway events
type Metrics interface {
	SessionOpened()
	SessionClosed()
	FrameReceived(command string)
}

type nopMetrics struct{}

func (nopMetrics) SessionOpened()       {}
func (nopMetrics) SessionClosed()       {}
func (nopMetrics) FrameReceived(string) {}

// Option configures a Gateway
type Option func(*Gateway)

// WithLogger sets the gateway logger
func WithLogger(log *logger.Logger) Option {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) Option {
	return func(g *Gateway) {
		if m != nil {
			g.metrics = m
		}
	}
}

// Gateway turns HTTP requests into STOMP sessions. The endpoint path itself
// is a raw websocket; everything below it is SockJS (info, websocket,
// xhr-streaming, xhr polling and the other fallbacks) for browser clients.
// Authentication is lenient: a missing or bad token leaves the session
// anonymous and open, and application handlers decide what anonymous
// senders may do.
type Gateway struct {
	hub       *Hub
	auth      Authenticator
	router    *Router
	cfg       config.RealtimeConfig
	upgrader  websocket.Upgrader
	sockjs    *sockjs.Handler
	resolvers []FrameResolver
	log       *logger.Logger
	metrics   Metrics
}

// NewGateway creates a gateway serving hub sessions
func NewGateway(hub *Hub, auth Authenticator, router *Router, cfg config.RealtimeConfig, opts ...Option) *Gateway {
	cfg = withDefaults(cfg)
	g := &Gateway{
		hub:     hub,
		auth:    auth,
		router:  router,
		cfg:     cfg,
		log:     logger.Nop(),
		metrics: nopMetrics{},
	}
	for _, opt := range opts {
		opt(g)
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}

	sockOpts := sockjs.DefaultOptions
	sockOpts.WebsocketUpgrader = &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     g.upgrader.CheckOrigin,
	}
	sockOpts.WebsocketWriteTimeout = cfg.WriteTimeout
	g.sockjs = sockjs.NewHandler(cfg.Path, sockOpts, g.serveSockJS)

	g.resolvers = []FrameResolver{g.frameToken, connectionIdentity}
	return g
}

func withDefaults(cfg config.RealtimeConfig) config.RealtimeConfig {
	cfg.Path = "/" + strings.Trim(cfg.Path, "/")
	if cfg.Path == "/" {
		cfg.Path = "/ws"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.ReadTimeout {
		cfg.PingInterval = cfg.ReadTimeout * 9 / 10
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 64 * 1024
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	return cfg
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeHTTP hands SockJS paths to the SockJS handler and upgrades anything
// else to a raw websocket session
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, g.cfg.Path+"/") {
		// streaming transports outlive the server write timeout
		_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
		g.sockjs.ServeHTTP(w, r)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	g.run(r.Context(), newWebsocketTransport(conn, g.cfg))
}

// serveSockJS runs one SockJS session; it returns when the session ends
func (g *Gateway) serveSockJS(sess sockjs.Session) {
	g.run(sess.Request().Context(), sockjsTransport{sess: sess})
}

func (g *Gateway) run(reqCtx context.Context, t transport) {
	s := newSession(t, g.cfg, g.log)
	g.hub.Register(s)
	g.metrics.SessionOpened()
	defer func() {
		g.hub.Unregister(s)
		g.metrics.SessionClosed()
		s.log.Debug("session closed", zap.String("username", s.Identity().Name()))
	}()

	go s.writePump()

	ctx, cancel := context.WithCancel(context.WithoutCancel(reqCtx))
	defer cancel()
	s.readLoop(ctx, func(ctx context.Context, f *Frame) bool {
		return g.handleFrame(ctx, s, f)
	})
}

// handleFrame processes one inbound frame and reports whether the session
// should keep reading
func (g *Gateway) handleFrame(ctx context.Context, s *Session, f *Frame) bool {
	g.metrics.FrameReceived(f.Command)

	switch f.Command {
	case CommandConnect, CommandStomp:
		g.connect(ctx, s, f)

	case CommandSend:
		g.sendFrame(ctx, s, f)

	case CommandSubscribe:
		id, dest := f.Header(HeaderID), f.Header(HeaderDestination)
		if id == "" || dest == "" {
			s.sendError("invalid subscription", "SUBSCRIBE requires id and destination")
			return true
		}
		s.subscribe(id, dest)
		receipt(s, f)

	case CommandUnsubscribe:
		id := f.Header(HeaderID)
		if id == "" {
			s.sendError("invalid subscription", "UNSUBSCRIBE requires id")
			return true
		}
		s.unsubscribe(id)
		receipt(s, f)

	case CommandDisconnect:
		receipt(s, f)
		return false

	default:
		s.sendError("unsupported command", f.Command)
	}
	return true
}

// connect binds the CONNECT token's identity, if any, and always answers
// CONNECTED
func (g *Gateway) connect(ctx context.Context, s *Session, f *Frame) {
	id := g.auth.Authenticate(ctx, authorization(f))
	s.Bind(id)

	reply := NewFrame(CommandConnected, nil,
		HeaderVersion, "1.2",
		HeaderHeartBeat, "0,0",
	)
	if bound := s.Identity(); bound != nil {
		reply.Set(HeaderUserName, bound.Name())
	}
	s.Send(reply)
	s.log.Debug("stomp connected", zap.String("username", s.Identity().Name()))
}

func (g *Gateway) sendFrame(ctx context.Context, s *Session, f *Frame) {
	dest := f.Header(HeaderDestination)
	if dest == "" {
		s.sendError("missing destination", "SEND requires a destination")
		return
	}

	ctx = security.WithIdentity(ctx, g.resolve(ctx, s, f))

	switch {
	case strings.HasPrefix(dest, AppPrefix):
		err := g.router.Dispatch(ctx, &Message{Destination: dest, Body: f.Body, Session: s})
		if err != nil {
			if errors.Is(err, ErrNoHandler) {
				s.sendError("unknown destination", dest)
				return
			}
			s.log.Warn("message handler failed", zap.String("destination", dest), zap.Error(err))
			s.sendError("message handling failed", err.Error())
			return
		}
	case strings.HasPrefix(dest, TopicPrefix), strings.HasPrefix(dest, QueuePrefix):
		g.hub.Broadcast(dest, f.Body)
	default:
		s.sendError("unknown destination", dest)
		return
	}
	receipt(s, f)
}

// resolve runs the frame resolvers in order; the first non-nil identity wins
func (g *Gateway) resolve(ctx context.Context, s *Session, f *Frame) *security.Identity {
	for _, r := range g.resolvers {
		if id := r(ctx, s, f); id != nil {
			return id
		}
	}
	return nil
}

// frameToken authenticates a token carried on the frame itself and rebinds
// the connection to it, so later frames run as the new identity
func (g *Gateway) frameToken(ctx context.Context, s *Session, f *Frame) *security.Identity {
	header := authorization(f)
	if header == "" {
		return nil
	}
	id := g.auth.Authenticate(ctx, header)
	s.Bind(id)
	return id
}

func connectionIdentity(_ context.Context, s *Session, _ *Frame) *security.Identity {
	return s.Identity()
}

func authorization(f *Frame) string {
	if v, ok := f.Lookup(HeaderAuthorization); ok {
		return v
	}
	return f.Header(strings.ToLower(HeaderAuthorization))
}

func receipt(s *Session, f *Frame) {
	if id := f.Header(HeaderReceipt); id != "" {
		s.Send(NewFrame(CommandReceipt, nil, HeaderReceiptID, id))
	}
}
