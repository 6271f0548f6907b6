package events

import (
	"context"

	"github.com/mercadito/storefront-backend/pkg/logger"
)

// LogPublisher writes events to the application log only.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	logger.Info("Cart event", map[string]interface{}{
		"event_id":   event.ID,
		"event_type": string(event.Type),
		"client_id":  event.ClientID,
		"cart_id":    event.CartID,
	})
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
