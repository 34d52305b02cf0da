package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/realqkqk123fr/temp-backend/pkg/logger"
)

const relayPublishTimeout = 2 * time.Second

// Relay is a broadcast channel shared by every instance. pkg/redis.Client
// and pkg/bus.Bus both satisfy it.
type Relay interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string, fn func(payload []byte)) (func() error, error)
}

type envelope struct {
	Origin      string          `json:"origin"`
	User        string          `json:"user"`
	Destination string          `json:"destination"`
	Payload     json.RawMessage `json:"payload"`
}

// RelayPublisher broadcasts notifications so whichever instance holds the
// recipient's session delivers them
type RelayPublisher struct {
	relay   Relay
	channel string
	origin  string
	local   *HubPublisher
	log     *logger.Logger
}

// NewRelayPublisher creates a relay-backed publisher. Start must be called
// for this instance to deliver relayed messages.
func NewRelayPublisher(relay Relay, channel string, local *HubPublisher, log *logger.Logger) *RelayPublisher {
	if log == nil {
		log = logger.Nop()
	}
	return &RelayPublisher{
		relay:   relay,
		channel: channel,
		origin:  uuid.New().String(),
		local:   local,
		log:     log.With(zap.String("channel", channel)),
	}
}

// Publish broadcasts the notification. When the relay is unreachable the
// message is still offered to local sessions.
func (p *RelayPublisher) Publish(ctx context.Context, identityName, destination string, payload any) {
	body, ok := p.local.encode(ctx, identityName, destination, payload)
	if !ok {
		return
	}

	data, err := json.Marshal(envelope{
		Origin:      p.origin,
		User:        identityName,
		Destination: destination,
		Payload:     body,
	})
	if err != nil {
		p.local.observe(ReasonEncode)
		p.log.Error("failed to encode relay envelope", zap.Error(err))
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), relayPublishTimeout)
	defer cancel()

	if err := p.relay.Publish(pubCtx, p.channel, data); err != nil {
		p.local.observe(ReasonRelay)
		p.log.WithContext(ctx).Warn("relay publish failed, delivering locally",
			zap.String("user", identityName),
			zap.Error(err),
		)
		p.local.deliver(ctx, identityName, destination, body)
	}
}

// Start subscribes to the relay channel. Delivery stops when ctx is done
// or the returned function is called.
func (p *RelayPublisher) Start(ctx context.Context) (func() error, error) {
	return p.relay.Subscribe(ctx, p.channel, func(data []byte) {
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			p.log.Warn("malformed relay envelope", zap.Error(err))
			return
		}
		if env.User == "" || env.Destination == "" {
			return
		}
		p.local.deliver(ctx, env.User, env.Destination, env.Payload)
	})
}
