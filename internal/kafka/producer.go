// Package kafka exports room events (joins, leaves, renames, chat) for
// downstream consumers. Writes are async and fire-and-forget; nothing in the
// coordinator ever reads them back.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type RoomEvent struct {
	Type     string `json:"type"`
	RoomID   string `json:"room_id"`
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	At       string `json:"at"`
}

type Producer struct {
	writer *kafkago.Writer
}

func NewProducer(brokers []string, topic string, log *zap.SugaredLogger) *Producer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
		Async:        true,
		Completion: func(messages []kafkago.Message, err error) {
			if err != nil {
				log.Warnw("room event publish failed", "error", err, "count", len(messages))
			}
		},
	}
	return &Producer{writer: w}
}

// Publish hands a room event to the async writer. A nil producer is a no-op
// so callers need not guard for an unconfigured broker.
func (p *Producer) Publish(ctx context.Context, ev RoomEvent) {
	if p == nil {
		return
	}
	ev.At = time.Now().UTC().Format(time.RFC3339)
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_ = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(ev.RoomID),
		Value: b,
		Time:  time.Now(),
	})
}

func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
