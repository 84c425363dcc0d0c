package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"payment-gateway/internal/message"
	"payment-gateway/internal/metrics"

	"github.com/pkg/errors"
)

const (
	eventBuffer           = 1024
	defaultPublishTimeout = 5 * time.Second
)

// eventQueue hands payment events to the publisher from a single background
// goroutine, so callers never wait on the broker and events keep their order.
type eventQueue struct {
	publisher EventPublisher
	logger    *slog.Logger
	timeout   time.Duration

	mu     sync.Mutex
	closed bool
	events chan queuedEvent
	done   chan struct{}
}

type queuedEvent struct {
	ctx   context.Context
	event message.PaymentEvent
}

func newEventQueue(publisher EventPublisher, logger *slog.Logger, timeout time.Duration) *eventQueue {
	q := &eventQueue{
		publisher: publisher,
		logger:    logger,
		timeout:   timeout,
		events:    make(chan queuedEvent, eventBuffer),
		done:      make(chan struct{}),
	}
	go q.run()
	return q
}

// enqueue never blocks. Events that do not fit in the buffer are dropped.
func (q *eventQueue) enqueue(ctx context.Context, event message.PaymentEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		metrics.EventsDropped(event.Event).Inc()
		q.logger.WarnContext(ctx, "Payment event dropped after close", "event", event.Event)
		return
	}

	select {
	case q.events <- queuedEvent{ctx: context.WithoutCancel(ctx), event: event}:
	default:
		metrics.EventsDropped(event.Event).Inc()
		q.logger.WarnContext(ctx, "Payment event queue full, event dropped", "event", event.Event)
	}
}

func (q *eventQueue) run() {
	defer close(q.done)
	for item := range q.events {
		ctx, cancel := context.WithTimeout(item.ctx, q.timeout)
		if err := q.publisher.Publish(ctx, item.event); err != nil {
			q.logger.ErrorContext(ctx, "Error publishing payment event", "event", item.event.Event, "error", err)
		}
		cancel()
	}
}

// close stops accepting events and waits for the queued ones to be published
// or for ctx to end.
func (q *eventQueue) close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.events)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "event drain")
	}
}
