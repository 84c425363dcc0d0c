package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"payment-gateway/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(id string, merchantID uuid.UUID) *model.Order {
	now := time.Now().UTC()
	return &model.Order{
		ID:         id,
		MerchantID: merchantID,
		Amount:     500,
		Currency:   "INR",
		Status:     model.OrderStatusCreated,
		Notes:      map[string]any{"customer": "alice"},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func newPayment(id, orderID string, merchantID uuid.UUID, createdAt time.Time) *model.Payment {
	vpa := "alice@bank"
	return &model.Payment{
		ID:         id,
		OrderID:    orderID,
		MerchantID: merchantID,
		Amount:     500,
		Currency:   "INR",
		Method:     model.MethodUPI,
		Status:     model.PaymentStatusProcessing,
		VPA:        &vpa,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

func TestMemoryStore_OrderRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	order := newOrder("order_1", TestMerchantID)
	require.NoError(t, s.CreateOrder(ctx, order))
	assert.ErrorIs(t, s.CreateOrder(ctx, order), ErrDuplicate)

	got, err := s.GetOrder(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, order, got)

	got.Notes["customer"] = "mallory"
	again, err := s.GetOrder(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, "alice", again.Notes["customer"])

	_, err = s.GetOrder(ctx, "order_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CreatePaymentRequiresOrder(t *testing.T) {
	s := NewMemoryStore()
	err := s.CreatePayment(context.Background(), newPayment("pay_1", "order_missing", TestMerchantID, time.Now()))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_SettleOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.CreateOrder(ctx, newOrder("order_1", TestMerchantID)))
	require.NoError(t, s.CreatePayment(ctx, newPayment("pay_1", "order_1", TestMerchantID, time.Now())))

	p, applied, err := s.Settle(ctx, model.NewOutcome("pay_1", true))
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, model.PaymentStatusSuccess, p.Status)

	p, applied, err = s.Settle(ctx, model.NewOutcome("pay_1", false))
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, model.PaymentStatusSuccess, p.Status)
	assert.Nil(t, p.ErrorCode)

	order, err := s.GetOrder(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, order.Status)
}

func TestMemoryStore_SameOutcomeTwice(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.CreateOrder(ctx, newOrder("order_1", TestMerchantID)))
	require.NoError(t, s.CreatePayment(ctx, newPayment("pay_1", "order_1", TestMerchantID, time.Now())))

	first, applied, err := s.Settle(ctx, model.NewOutcome("pay_1", true))
	require.NoError(t, err)
	require.True(t, applied)
	paid, err := s.GetOrder(ctx, "order_1")
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)

	second, applied, err := s.Settle(ctx, model.NewOutcome("pay_1", true))
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, model.PaymentStatusSuccess, second.Status)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)

	order, err := s.GetOrder(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, order.Status)
	assert.Equal(t, paid.UpdatedAt, order.UpdatedAt)
}

func TestMemoryStore_SettleFailureLeavesOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.CreateOrder(ctx, newOrder("order_1", TestMerchantID)))
	require.NoError(t, s.CreatePayment(ctx, newPayment("pay_1", "order_1", TestMerchantID, time.Now())))

	p, applied, err := s.Settle(ctx, model.NewOutcome("pay_1", false))
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, model.PaymentStatusFailed, p.Status)
	require.NotNil(t, p.ErrorCode)
	assert.Equal(t, "PAYMENT_FAILED", *p.ErrorCode)

	order, err := s.GetOrder(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCreated, order.Status)
}

func TestMemoryStore_ConcurrentSettleAppliesOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.CreateOrder(ctx, newOrder("order_1", TestMerchantID)))
	require.NoError(t, s.CreatePayment(ctx, newPayment("pay_1", "order_1", TestMerchantID, time.Now())))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applies int
	)
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, applied, err := s.Settle(ctx, model.NewOutcome("pay_1", i%2 == 0))
			assert.NoError(t, err)
			if applied {
				mu.Lock()
				applies++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, applies)
}

func TestMemoryStore_ListAndStats(t *testing.T) {
	ctx := context.Background()
	other := uuid.New()
	s := NewMemoryStore(TestMerchant())

	require.NoError(t, s.CreateOrder(ctx, newOrder("order_1", TestMerchantID)))
	require.NoError(t, s.CreateOrder(ctx, newOrder("order_2", other)))

	base := time.Now().UTC()
	require.NoError(t, s.CreatePayment(ctx, newPayment("pay_a", "order_1", TestMerchantID, base)))
	require.NoError(t, s.CreatePayment(ctx, newPayment("pay_b", "order_1", TestMerchantID, base.Add(time.Second))))
	require.NoError(t, s.CreatePayment(ctx, newPayment("pay_c", "order_1", TestMerchantID, base.Add(2*time.Second))))
	require.NoError(t, s.CreatePayment(ctx, newPayment("pay_x", "order_2", other, base)))

	_, _, err := s.Settle(ctx, model.NewOutcome("pay_a", true))
	require.NoError(t, err)
	_, _, err = s.Settle(ctx, model.NewOutcome("pay_b", false))
	require.NoError(t, err)

	list, err := s.ListPayments(ctx, TestMerchantID, model.PaymentFilter{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "pay_c", list[0].ID)
	assert.Equal(t, "pay_a", list[2].ID)

	list, err = s.ListPayments(ctx, TestMerchantID, model.PaymentFilter{Status: model.PaymentStatusFailed})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "pay_b", list[0].ID)

	list, err = s.ListPayments(ctx, TestMerchantID, model.PaymentFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, list, 1)

	stats, err := s.PaymentStats(ctx, TestMerchantID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalTransactions)
	assert.Equal(t, int64(1), stats.SuccessfulTransactions)
	assert.Equal(t, int64(500), stats.TotalAmount)
	assert.Equal(t, 33.33, stats.SuccessRate)
}

func TestMemoryStore_Merchants(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(TestMerchant())

	m, err := s.GetMerchantByAPIKey(ctx, TestMerchantKey)
	require.NoError(t, err)
	assert.Equal(t, TestMerchantID, m.ID)

	m, err = s.GetMerchantByEmail(ctx, TestMerchantEmail)
	require.NoError(t, err)
	assert.Equal(t, TestMerchantSecret, m.APISecret)

	_, err = s.GetMerchantByAPIKey(ctx, "key_unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNormalizeFilter(t *testing.T) {
	assert.Equal(t, 20, NormalizeFilter(model.PaymentFilter{}).Limit)
	assert.Equal(t, 100, NormalizeFilter(model.PaymentFilter{Limit: 500}).Limit)
	assert.Equal(t, 0, NormalizeFilter(model.PaymentFilter{Offset: -3}).Offset)
}
