package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mercadito/storefront-backend/pkg/logger"
	"github.com/segmentio/kafka-go"
)

const (
	kafkaWriteTimeout = 5 * time.Second
	// Single events are flushed without waiting for kafka-go's 1s default.
	kafkaBatchTimeout = 10 * time.Millisecond
)

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	logger.Info("Initializing Kafka publisher", map[string]interface{}{
		"brokers": brokers,
		"topic":   topic,
	})

	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			WriteTimeout:           kafkaWriteTimeout,
			BatchTimeout:           kafkaBatchTimeout,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Key()),
		Value: data,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write failed: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
