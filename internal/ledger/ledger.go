package ledger

import (
	"context"
	"time"

	"payment-gateway/internal/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// Store persists orders and payments. Settle must be atomic: the payment
// moves out of processing at most once and the order flips to paid at most
// once.
type Store interface {
	CreateOrder(ctx context.Context, order *model.Order) error
	GetOrder(ctx context.Context, id string) (*model.Order, error)

	CreatePayment(ctx context.Context, payment *model.Payment) error
	GetPayment(ctx context.Context, id string) (*model.Payment, error)
	ListPayments(ctx context.Context, merchantID uuid.UUID, filter model.PaymentFilter) ([]*model.Payment, error)
	PaymentStats(ctx context.Context, merchantID uuid.UUID) (*model.PaymentStats, error)

	// Settle applies outcome if the payment is still processing. applied is
	// false when the payment had already left processing; the current record
	// is returned either way.
	Settle(ctx context.Context, outcome model.Outcome) (payment *model.Payment, applied bool, err error)

	MerchantStore
	Ping(ctx context.Context) error
}

type MerchantStore interface {
	GetMerchantByAPIKey(ctx context.Context, apiKey string) (*model.Merchant, error)
	GetMerchantByEmail(ctx context.Context, email string) (*model.Merchant, error)
}

const (
	TestMerchantEmail  = "test@example.com"
	TestMerchantKey    = "key_test_abc123"
	TestMerchantSecret = "secret_test_xyz789"
)

var TestMerchantID = uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")

// TestMerchant is the merchant seeded into every fresh ledger.
func TestMerchant() *model.Merchant {
	now := time.Now().UTC()
	return &model.Merchant{
		ID:        TestMerchantID,
		Name:      "Test Merchant",
		Email:     TestMerchantEmail,
		APIKey:    TestMerchantKey,
		APISecret: TestMerchantSecret,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func successRate(successful, total int64) float64 {
	if total == 0 {
		return 0
	}
	rate := float64(successful) * 100 / float64(total)
	return float64(int64(rate*100+0.5)) / 100
}

// NewStats builds stats from raw counters.
func NewStats(total, successful, amount int64) *model.PaymentStats {
	return &model.PaymentStats{
		TotalTransactions:      total,
		SuccessfulTransactions: successful,
		TotalAmount:            amount,
		SuccessRate:            successRate(successful, total),
	}
}

func NormalizeFilter(f model.PaymentFilter) model.PaymentFilter {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
