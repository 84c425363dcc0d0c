package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"payment-gateway/internal/message"
	"payment-gateway/internal/metrics"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher writes payment events keyed by payment id, so every event of one
// payment lands on the same partition in order.
type Publisher struct {
	writer MessageWriter
	logger *slog.Logger
}

func NewPublisher(writer MessageWriter, logger *slog.Logger) *Publisher {
	return &Publisher{writer: writer, logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, event message.PaymentEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		metrics.EventsFailed(event.Event).Inc()
		return errors.Wrap(err, "marshal payment event")
	}

	msg := kafka.Message{
		Key:   []byte(event.Payload.ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: eventHeader, Value: []byte(event.Event)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.EventsFailed(event.Event).Inc()
		return errors.Wrap(err, "write payment event")
	}

	p.logger.DebugContext(ctx, "Payment event queued", "event", event.Event, "id", event.ID)
	return nil
}
