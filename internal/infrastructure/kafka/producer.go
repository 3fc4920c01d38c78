package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// Signal is the cross-instance broadcast payload. The user key is all a
// subscriber needs; Origin lets a consumer skip signals its own instance
// produced, since those were already applied locally.
type Signal struct {
	Type   string    `json:"type"`
	UserID string    `json:"user_id"`
	Origin string    `json:"origin"`
	SentAt time.Time `json:"sent_at"`
}

// SignalWishlistChanged marks a wishlist mutation somewhere in the fleet.
const SignalWishlistChanged = "wishlist.changed"

type Producer struct {
	writer *kafka.Writer
	origin string
}

func NewProducer(brokers []string, topic, origin string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{writer: writer, origin: origin}
}

// Broadcast publishes a signal keyed by user, so all signals for one user
// land on the same partition in order.
func (p *Producer) Broadcast(ctx context.Context, signalType, userID string) error {
	data, err := json.Marshal(Signal{
		Type:   signalType,
		UserID: userID,
		Origin: p.origin,
		SentAt: time.Now(),
	})
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(userID),
		Value: data,
		Time:  time.Now(),
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
