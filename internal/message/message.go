package message

import (
	"time"

	"payment-gateway/internal/model"
	"payment-gateway/internal/payload"

	"github.com/google/uuid"
)

const (
	EventPaymentCreated = "payment.created"
	EventPaymentSuccess = "payment.success"
	EventPaymentFailed  = "payment.failed"
)

type PaymentEvent struct {
	ID         uuid.UUID       `json:"id"`
	Event      string          `json:"event"`
	MerchantID uuid.UUID       `json:"merchantId"`
	Payload    payload.Payment `json:"payload"`
	Decision   *model.Decision `json:"decision,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}

func NewPaymentEvent(event string, p *model.Payment, decision *model.Decision) PaymentEvent {
	return PaymentEvent{
		ID:         uuid.New(),
		Event:      event,
		MerchantID: p.MerchantID,
		Payload:    payload.FromPayment(p),
		Decision:   decision,
		OccurredAt: time.Now().UTC(),
	}
}

// SettlementEvent names the event emitted when a payment reaches status.
func SettlementEvent(status model.PaymentStatus) string {
	if status == model.PaymentStatusSuccess {
		return EventPaymentSuccess
	}
	return EventPaymentFailed
}
