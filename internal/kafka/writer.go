package kafka

import (
	"log/slog"
	"strings"
	"time"

	"payment-gateway/internal/config"
	"payment-gateway/internal/metrics"

	"github.com/segmentio/kafka-go"
)

const eventHeader = "event"

// NewWriter returns an async writer. Delivery results are reported through
// the completion callback rather than WriteMessages.
func NewWriter(cfg config.Kafka, logger *slog.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(cfg.Broker.URL, ",")...),
		Topic:                  cfg.Topic.SettlementEvents,
		Balancer:               &kafka.ReferenceHash{},
		BatchSize:              cfg.Writer.BatchSize,
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           time.Duration(cfg.Writer.BatchTimeoutMs) * time.Millisecond,
		Async:                  true,
		Completion:             completion(logger),
		AllowAutoTopicCreation: false,
	}
}

func completion(logger *slog.Logger) func([]kafka.Message, error) {
	return func(messages []kafka.Message, err error) {
		for _, msg := range messages {
			if err != nil {
				metrics.EventsFailed(eventType(msg)).Inc()
				continue
			}
			metrics.EventsPublished(eventType(msg)).Inc()
		}
		if err != nil {
			logger.Error("Error delivering payment events", "count", len(messages), "error", err)
		}
	}
}

func eventType(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == eventHeader {
			return string(h.Value)
		}
	}
	return "unknown"
}
