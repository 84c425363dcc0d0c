package ledger

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"payment-gateway/internal/model"

	"github.com/google/uuid"
)

// MemoryStore keeps the ledger in process. It backs tests and the
// storage.driver=memory mode.
type MemoryStore struct {
	mu        sync.RWMutex
	orders    map[string]*model.Order
	payments  map[string]*model.Payment
	merchants map[uuid.UUID]*model.Merchant
	now       func() time.Time
}

func NewMemoryStore(merchants ...*model.Merchant) *MemoryStore {
	s := &MemoryStore{
		orders:    make(map[string]*model.Order),
		payments:  make(map[string]*model.Payment),
		merchants: make(map[uuid.UUID]*model.Merchant),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, m := range merchants {
		s.AddMerchant(m)
	}
	return s
}

func (s *MemoryStore) AddMerchant(m *model.Merchant) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *m
	s.merchants[m.ID] = &c
}

func (s *MemoryStore) CreateOrder(_ context.Context, order *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.ID]; ok {
		return ErrDuplicate
	}
	s.orders[order.ID] = copyOrder(order)
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, id string) (*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyOrder(o), nil
}

func (s *MemoryStore) CreatePayment(_ context.Context, payment *model.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[payment.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := s.orders[payment.OrderID]; !ok {
		return ErrNotFound
	}
	c := *payment
	s.payments[payment.ID] = &c
	return nil
}

func (s *MemoryStore) GetPayment(_ context.Context, id string) (*model.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *p
	return &c, nil
}

func (s *MemoryStore) ListPayments(_ context.Context, merchantID uuid.UUID, filter model.PaymentFilter) ([]*model.Payment, error) {
	filter = NormalizeFilter(filter)

	s.mu.RLock()
	var matched []*model.Payment
	for _, p := range s.payments {
		if p.MerchantID != merchantID {
			continue
		}
		if filter.OrderID != "" && p.OrderID != filter.OrderID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		c := *p
		matched = append(matched, &c)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if filter.Offset >= len(matched) {
		return []*model.Payment{}, nil
	}
	end := min(filter.Offset+filter.Limit, len(matched))
	return matched[filter.Offset:end], nil
}

func (s *MemoryStore) PaymentStats(_ context.Context, merchantID uuid.UUID) (*model.PaymentStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total, successful, amount int64
	for _, p := range s.payments {
		if p.MerchantID != merchantID {
			continue
		}
		total++
		if p.Status == model.PaymentStatusSuccess {
			successful++
			amount += p.Amount
		}
	}
	return NewStats(total, successful, amount), nil
}

func (s *MemoryStore) Settle(_ context.Context, outcome model.Outcome) (*model.Payment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[outcome.PaymentID]
	if !ok {
		return nil, false, ErrNotFound
	}
	if p.Status != model.PaymentStatusProcessing {
		c := *p
		return &c, false, nil
	}

	now := s.now()
	p.Status = outcome.Status()
	p.UpdatedAt = now
	if !outcome.Success {
		code, desc := outcome.ErrorCode, outcome.ErrorDescription
		p.ErrorCode = &code
		p.ErrorDescription = &desc
	}

	if outcome.Success {
		if o, ok := s.orders[p.OrderID]; ok && o.Status == model.OrderStatusCreated {
			o.Status = model.OrderStatusPaid
			o.UpdatedAt = now
		}
	}

	c := *p
	return &c, true, nil
}

func (s *MemoryStore) GetMerchantByAPIKey(_ context.Context, apiKey string) (*model.Merchant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.merchants {
		if m.APIKey == apiKey {
			c := *m
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetMerchantByEmail(_ context.Context, email string) (*model.Merchant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.merchants {
		if m.Email == email {
			c := *m
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func copyOrder(o *model.Order) *model.Order {
	c := *o
	if o.Notes != nil {
		c.Notes = maps.Clone(o.Notes)
	}
	return &c
}
