package kafka

import (
	"context"
	"encoding/json"
	"log"

	"github.com/segmentio/kafka-go"
)

type SignalHandler func(ctx context.Context, signal Signal) error

type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader}
}

// Consume reads signals until the context is cancelled. Undecodable messages
// are logged and skipped; handler errors never stop the loop.
func (c *Consumer) Consume(ctx context.Context, handler SignalHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("[Kafka] Error reading message: %v", err)
				continue
			}

			var signal Signal
			if err := json.Unmarshal(msg.Value, &signal); err != nil {
				log.Printf("[Kafka] Skipping undecodable signal: %v", err)
				continue
			}

			if err := handler(ctx, signal); err != nil {
				log.Printf("[Kafka] Error handling signal %s for %s: %v", signal.Type, signal.UserID, err)
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
