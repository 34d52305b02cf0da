// Package bus wraps a core NATS connection for fan-out publish/subscribe.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Bus publishes to and subscribes on NATS subjects. Every subscriber
// receives every message.
type Bus struct {
	conn *nats.Conn
}

// New connects to url, reconnecting forever on connection loss
func New(url, name string, opts ...nats.Option) (*Bus, error) {
	opts = append([]nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
	}, opts...)

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Bus{conn: nc}, nil
}

// Close drains subscriptions and closes the connection
func (b *Bus) Close() {
	if b == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

// Publish sends message on subject. []byte and string are sent as is,
// anything else is JSON encoded.
func (b *Bus) Publish(ctx context.Context, subject string, message interface{}) error {
	if b == nil {
		return errors.New("nil bus")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var data []byte
	switch m := message.(type) {
	case []byte:
		data = m
	case string:
		data = []byte(m)
	default:
		encoded, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		data = encoded
	}
	return b.conn.Publish(subject, data)
}

// Subscribe invokes fn for each message on subject until ctx is done or
// the returned close function is called
func (b *Bus) Subscribe(ctx context.Context, subject string, fn func(payload []byte)) (func() error, error) {
	if b == nil {
		return nil, errors.New("nil bus")
	}
	if fn == nil {
		return nil, errors.New("nil handler")
	}

	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		fn(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	if err := b.conn.FlushWithContext(ctx); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("confirm subscription %s: %w", subject, err)
	}

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()

	return sub.Unsubscribe, nil
}

// HealthCheck reports whether the connection is up
func (b *Bus) HealthCheck(context.Context) error {
	if b == nil || !b.conn.IsConnected() {
		return errors.New("nats not connected")
	}
	return nil
}
