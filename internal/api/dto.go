package api

import (
	"payment-gateway/internal/model"

	"github.com/google/uuid"
)

type PaymentList struct {
	Items []*model.Payment `json:"items"`
	Count int              `json:"count"`
}

type TestMerchant struct {
	ID     uuid.UUID `json:"id"`
	Email  string    `json:"email"`
	APIKey string    `json:"api_key"`
	Seeded bool      `json:"seeded"`
}

type Health struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Timestamp string `json:"timestamp"`
}
