package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mercadito/storefront-backend/config"
)

type Type string

const (
	CartItemAdded   Type = "cart.item_added"
	CartItemUpdated Type = "cart.item_updated"
	CartItemRemoved Type = "cart.item_removed"
	CartConverted   Type = "cart.converted"
)

// Event is the envelope written to every backend.
type Event struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	ClientID   uint            `json:"client_id"`
	CartID     uint            `json:"cart_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// New builds an event with a fresh id. payload is JSON-encoded.
func New(eventType Type, clientID, cartID uint, payload interface{}) (Event, error) {
	event := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		ClientID:   clientID,
		CartID:     cartID,
		OccurredAt: time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
		}
		event.Payload = raw
	}
	return event, nil
}

// Key partitions events by client so one client's events stay ordered.
func (e Event) Key() string {
	return fmt.Sprintf("client-%d", e.ClientID)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NewPublisher returns the publisher selected by cfg.Backend.
func NewPublisher(cfg *config.EventsConfig) (Publisher, error) {
	switch cfg.Backend {
	case "kafka":
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case "rabbitmq":
		return NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPQueue)
	case "log", "":
		return NewLogPublisher(), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}
