// Package notification pushes server-originated messages to the realtime
// sessions of one identity. Publishing never fails the caller: errors are
// logged, counted and dropped.
package notification

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/realqkqk123fr/temp-backend/pkg/logger"
)

// UserQueue is the private destination every client subscribes to as /user/queue/messages
const UserQueue = "/queue/messages"

// Publisher delivers payload to identityName's sessions subscribed to
// /user + destination
type Publisher interface {
	Publish(ctx context.Context, identityName, destination string, payload any)
}

// UserDeliverer is the local session registry. It returns how many
// sessions received the message.
type UserDeliverer interface {
	SendToUser(identityName, destination string, body []byte) int
}

// FailureObserver is told why a notification was dropped
type FailureObserver func(reason string)

// Drop reasons passed to a FailureObserver
const (
	ReasonEncode    = "encode"
	ReasonNoSession = "no_session"
	ReasonRelay     = "relay"
	ReasonAnonymous = "anonymous"
)

// HubPublisher delivers to sessions connected to this instance
type HubPublisher struct {
	hub     UserDeliverer
	log     *logger.Logger
	observe FailureObserver
}

// NewHubPublisher creates a publisher over the local hub
func NewHubPublisher(hub UserDeliverer, log *logger.Logger, observe FailureObserver) *HubPublisher {
	if log == nil {
		log = logger.Nop()
	}
	if observe == nil {
		observe = func(string) {}
	}
	return &HubPublisher{hub: hub, log: log, observe: observe}
}

// Publish encodes payload as JSON and hands it to the hub
func (p *HubPublisher) Publish(ctx context.Context, identityName, destination string, payload any) {
	body, ok := p.encode(ctx, identityName, destination, payload)
	if !ok {
		return
	}
	p.deliver(ctx, identityName, destination, body)
}

func (p *HubPublisher) encode(ctx context.Context, identityName, destination string, payload any) ([]byte, bool) {
	if identityName == "" {
		p.observe(ReasonAnonymous)
		p.log.WithContext(ctx).Warn("notification without recipient dropped", zap.String("destination", destination))
		return nil, false
	}
	body, err := json.Marshal(payload)
	if err != nil {
		p.observe(ReasonEncode)
		p.log.WithContext(ctx).Error("failed to encode notification",
			zap.String("user", identityName),
			zap.String("destination", destination),
			zap.Error(err),
		)
		return nil, false
	}
	return body, true
}

func (p *HubPublisher) deliver(ctx context.Context, identityName, destination string, body []byte) {
	if n := p.hub.SendToUser(identityName, destination, body); n == 0 {
		p.observe(ReasonNoSession)
		p.log.WithContext(ctx).Debug("no local session for notification",
			zap.String("user", identityName),
			zap.String("destination", destination),
		)
	}
}

// Nop drops every notification
type Nop struct{}

// Publish does nothing
func (Nop) Publish(context.Context, string, string, any) {}
