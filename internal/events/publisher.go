// Package events publishes domain events to Kafka for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/realqkqk123fr/temp-backend/internal/domain"
	"github.com/realqkqk123fr/temp-backend/pkg/kafka"
)

// Publisher defines the interface for publishing domain events
type Publisher interface {
	// Publish sends one event; the event time is set when zero
	Publish(ctx context.Context, event domain.Event) error

	// Close closes the publisher
	Close() error
}

// Config contains configuration for the kafka publisher
type Config struct {
	Brokers     []string
	Topic       string
	ServiceName string
	ClientID    string
}

type producer interface {
	Produce(ctx context.Context, msg *kafka.Message) error
	Close()
}

// KafkaPublisher implements Publisher using Kafka
type KafkaPublisher struct {
	producer producer
	topic    string
	source   string
	now      func() time.Time
}

// NewKafkaPublisher creates a new Kafka event publisher
func NewKafkaPublisher(ctx context.Context, cfg *Config) (*KafkaPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("event publisher config is required")
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "recipe-bff-producer"
	}

	p, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:       cfg.Brokers,
		ClientID:      clientID,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
		BatchSize:     100,
		LingerMs:      10,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return newKafkaPublisher(p, cfg.Topic, cfg.ServiceName), nil
}

func newKafkaPublisher(p producer, topic, source string) *KafkaPublisher {
	if topic == "" {
		topic = "recipe-events"
	}
	if source == "" {
		source = "recipe-bff"
	}
	return &KafkaPublisher{producer: p, topic: topic, source: source, now: time.Now}
}

// Publish marshals the event and produces it keyed by username, so one
// user's events stay ordered within a partition
func (p *KafkaPublisher) Publish(ctx context.Context, event domain.Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.now().UTC()
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.Username),
		Value: value,
		Headers: map[string]string{
			"event_type":   event.Type,
			"event_id":     uuid.New().String(),
			"source":       p.source,
			"content_type": "application/json",
		},
		Timestamp: event.OccurredAt,
	}

	if err := p.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}

// Close closes the underlying producer
func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		p.producer.Close()
	}
	return nil
}

// NoOpPublisher discards events, used when kafka is disabled
type NoOpPublisher struct{}

// NewNoOpPublisher creates a new no-op publisher
func NewNoOpPublisher() *NoOpPublisher {
	return &NoOpPublisher{}
}

// Publish is a no-op
func (NoOpPublisher) Publish(context.Context, domain.Event) error { return nil }

// Close is a no-op
func (NoOpPublisher) Close() error { return nil }
