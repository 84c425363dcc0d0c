package db

import (
	"time"

	"payment-gateway/internal/model"

	"github.com/google/uuid"
)

type MerchantEntity struct {
	ID        uuid.UUID
	Name      string
	Email     string
	APIKey    string
	APISecret string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type OrderEntity struct {
	ID         string
	MerchantID uuid.UUID
	Amount     int64
	Currency   string
	Receipt    *string
	Notes      map[string]any
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type PaymentEntity struct {
	ID               string
	OrderID          string
	MerchantID       uuid.UUID
	Amount           int64
	Currency         string
	Method           string
	Status           string
	VPA              *string
	CardNetwork      *string
	CardLast4        *string
	ErrorCode        *string
	ErrorDescription *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (e *MerchantEntity) toModel() *model.Merchant {
	return &model.Merchant{
		ID:        e.ID,
		Name:      e.Name,
		Email:     e.Email,
		APIKey:    e.APIKey,
		APISecret: e.APISecret,
		Active:    e.IsActive,
		CreatedAt: e.CreatedAt.UTC(),
		UpdatedAt: e.UpdatedAt.UTC(),
	}
}

func (e *OrderEntity) toModel() *model.Order {
	return &model.Order{
		ID:         e.ID,
		MerchantID: e.MerchantID,
		Amount:     e.Amount,
		Currency:   e.Currency,
		Receipt:    e.Receipt,
		Notes:      e.Notes,
		Status:     model.OrderStatus(e.Status),
		CreatedAt:  e.CreatedAt.UTC(),
		UpdatedAt:  e.UpdatedAt.UTC(),
	}
}

func (e *PaymentEntity) toModel() *model.Payment {
	p := &model.Payment{
		ID:               e.ID,
		OrderID:          e.OrderID,
		MerchantID:       e.MerchantID,
		Amount:           e.Amount,
		Currency:         e.Currency,
		Method:           model.Method(e.Method),
		Status:           model.PaymentStatus(e.Status),
		VPA:              e.VPA,
		CardLast4:        e.CardLast4,
		ErrorCode:        e.ErrorCode,
		ErrorDescription: e.ErrorDescription,
		CreatedAt:        e.CreatedAt.UTC(),
		UpdatedAt:        e.UpdatedAt.UTC(),
	}
	if e.CardNetwork != nil {
		network := model.CardNetwork(*e.CardNetwork)
		p.CardNetwork = &network
	}
	return p
}

func paymentEntity(p *model.Payment) *PaymentEntity {
	e := &PaymentEntity{
		ID:               p.ID,
		OrderID:          p.OrderID,
		MerchantID:       p.MerchantID,
		Amount:           p.Amount,
		Currency:         p.Currency,
		Method:           string(p.Method),
		Status:           string(p.Status),
		VPA:              p.VPA,
		CardLast4:        p.CardLast4,
		ErrorCode:        p.ErrorCode,
		ErrorDescription: p.ErrorDescription,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
	if p.CardNetwork != nil {
		network := string(*p.CardNetwork)
		e.CardNetwork = &network
	}
	return e
}
