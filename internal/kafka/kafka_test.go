package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"payment-gateway/internal/config"
	"payment-gateway/internal/message"
	"payment-gateway/internal/metrics"
	"payment-gateway/internal/model"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeWriter struct {
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

type fakeReader struct {
	messages []kafka.Message
}

func (r *fakeReader) ReadMessage(context.Context) (kafka.Message, error) {
	if len(r.messages) == 0 {
		return kafka.Message{}, io.EOF
	}
	m := r.messages[0]
	r.messages = r.messages[1:]
	return m, nil
}

func testEvent() message.PaymentEvent {
	return message.NewPaymentEvent(message.EventPaymentSuccess, &model.Payment{
		ID:        "pay_0123456789abcdef",
		OrderID:   "order_0123456789abcdef",
		Amount:    500,
		Currency:  "INR",
		Method:    model.MethodUPI,
		Status:    model.PaymentStatusSuccess,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}, nil)
}

func TestPublisher_KeysByPaymentID(t *testing.T) {
	writer := &fakeWriter{}
	publisher := NewPublisher(writer, discard)
	event := testEvent()

	require.NoError(t, publisher.Publish(context.Background(), event))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "pay_0123456789abcdef", string(msg.Key))
	assert.Equal(t, "payment.success", string(msg.Headers[0].Value))

	var decoded message.PaymentEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, "success", decoded.Payload.Status)
}

func TestPublisher_WriteError(t *testing.T) {
	publisher := NewPublisher(&fakeWriter{err: errors.New("broker unavailable")}, discard)
	assert.Error(t, publisher.Publish(context.Background(), testEvent()))
}

func TestReadPaymentEvents_SkipsBadMessages(t *testing.T) {
	event := testEvent()
	value, err := json.Marshal(event)
	require.NoError(t, err)

	reader := &fakeReader{messages: []kafka.Message{
		{Value: []byte("not json")},
		{Value: value},
	}}

	var got []message.PaymentEvent
	err = ReadPaymentEvents(context.Background(), reader, discard, func(_ context.Context, e message.PaymentEvent) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, event.ID, got[0].ID)
}

func TestNewWriter_FromConfig(t *testing.T) {
	writer := NewWriter(config.Kafka{
		Broker: config.KafkaBroker{URL: "localhost:9092"},
		Topic:  config.KafkaTopic{SettlementEvents: "settlement-events"},
		Writer: config.KafkaWriter{BatchSize: 10, BatchTimeoutMs: 50},
	}, discard)

	assert.Equal(t, "settlement-events", writer.Topic)
	assert.Equal(t, 10, writer.BatchSize)
	assert.Equal(t, 50*time.Millisecond, writer.BatchTimeout)
	assert.True(t, writer.Async)
	assert.NotNil(t, writer.Completion)
}

func TestCompletion_CountsDeliveries(t *testing.T) {
	done := completion(discard)
	delivered := metrics.EventsPublished("payment.created").Get()
	failed := metrics.EventsFailed("payment.failed").Get()

	done([]kafka.Message{{Headers: []kafka.Header{{Key: eventHeader, Value: []byte("payment.created")}}}}, nil)
	done([]kafka.Message{{Headers: []kafka.Header{{Key: eventHeader, Value: []byte("payment.failed")}}}}, errors.New("leader not available"))

	assert.Equal(t, delivered+1, metrics.EventsPublished("payment.created").Get())
	assert.Equal(t, failed+1, metrics.EventsFailed("payment.failed").Get())
}
