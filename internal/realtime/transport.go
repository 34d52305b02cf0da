package realtime

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/igm/sockjs-go/v3/sockjs"

	"github.com/realqkqk123fr/temp-backend/pkg/config"
)

// transport carries whole STOMP payloads for a session. read is only called
// by the session reader, write and keepalive only by the write pump.
type transport interface {
	read() ([]byte, error)
	write(data []byte) error
	// keepalive probes the peer; transports with their own heartbeat no-op
	keepalive() error
	close() error
}

// wsTransport is a raw websocket. Every read is bounded by ReadTimeout, and
// pongs answering the write pump's pings push the deadline forward.
type wsTransport struct {
	conn *websocket.Conn
	cfg  config.RealtimeConfig
}

func newWebsocketTransport(conn *websocket.Conn, cfg config.RealtimeConfig) *wsTransport {
	conn.SetReadLimit(cfg.MaxMessageSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	})
	return &wsTransport{conn: conn, cfg: cfg}
}

func (t *wsTransport) read() ([]byte, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(t.cfg.ReadTimeout)); err != nil {
		return nil, err
	}
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) write(data []byte) error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) keepalive() error {
	return t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.cfg.WriteTimeout))
}

func (t *wsTransport) close() error {
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(t.cfg.WriteTimeout))
	return t.conn.Close()
}

// sockjsTransport is a SockJS session over any of its transports. SockJS
// sends its own heartbeat frames and expires sessions whose receiver is gone.
type sockjsTransport struct {
	sess sockjs.Session
}

func (t sockjsTransport) read() ([]byte, error) {
	msg, err := t.sess.Recv()
	if err != nil {
		return nil, err
	}
	return []byte(msg), nil
}

func (t sockjsTransport) write(data []byte) error {
	return t.sess.Send(string(data))
}

func (sockjsTransport) keepalive() error { return nil }

func (t sockjsTransport) close() error {
	return t.sess.Close(3000, "Go away!")
}
