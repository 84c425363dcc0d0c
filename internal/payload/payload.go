package payload

import (
	"time"

	"payment-gateway/internal/model"
)

// Payment is the snapshot of a payment carried by settlement events.
// Instrument details beyond the method are left out.
type Payment struct {
	ID               string    `json:"id"`
	OrderID          string    `json:"orderId"`
	Amount           int64     `json:"amount"`
	Currency         string    `json:"currency"`
	Method           string    `json:"method"`
	Status           string    `json:"status"`
	CardNetwork      string    `json:"cardNetwork,omitempty"`
	ErrorCode        string    `json:"errorCode,omitempty"`
	ErrorDescription string    `json:"errorDescription,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func FromPayment(p *model.Payment) Payment {
	snapshot := Payment{
		ID:        p.ID,
		OrderID:   p.OrderID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Method:    string(p.Method),
		Status:    string(p.Status),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if p.CardNetwork != nil {
		snapshot.CardNetwork = string(*p.CardNetwork)
	}
	if p.ErrorCode != nil {
		snapshot.ErrorCode = *p.ErrorCode
	}
	if p.ErrorDescription != nil {
		snapshot.ErrorDescription = *p.ErrorDescription
	}
	return snapshot
}
