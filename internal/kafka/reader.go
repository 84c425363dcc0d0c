package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"payment-gateway/internal/message"

	"github.com/VictoriaMetrics/metrics"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

var (
	readErrorCounter      = metrics.GetOrCreateCounter(`kafka_reader_total{result="read_error",type="payment_event"}`)
	unmarshalErrorCounter = metrics.GetOrCreateCounter(`kafka_reader_total{result="unmarshal_error",type="payment_event"}`)
	processErrorCounter   = metrics.GetOrCreateCounter(`kafka_reader_total{result="process_error",type="payment_event"}`)
	successCounter        = metrics.GetOrCreateCounter(`kafka_reader_total{result="success",type="payment_event"}`)
)

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

func NewReader(kafkaURL, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: strings.Split(kafkaURL, ","),
		GroupID: groupID,
		Topic:   topic,
	})
}

// ReadPaymentEvents hands every decoded event to process until ctx ends.
// Messages that fail to decode or process are counted and skipped.
func ReadPaymentEvents(ctx context.Context, reader MessageReader, logger *slog.Logger, process func(context.Context, message.PaymentEvent) error) error {
	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			logger.ErrorContext(ctx, "Error reading message", "error", err)
			readErrorCounter.Inc()
			continue
		}

		var event message.PaymentEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			logger.ErrorContext(ctx, "Error unmarshalling message", "error", err, "offset", m.Offset)
			unmarshalErrorCounter.Inc()
			continue
		}

		if err := process(ctx, event); err != nil {
			logger.ErrorContext(ctx, "Error processing message", "error", err, "id", event.ID)
			processErrorCounter.Inc()
			continue
		}
		successCounter.Inc()
	}
}
