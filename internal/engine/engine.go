package engine

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"payment-gateway/internal/apperr"
	"payment-gateway/internal/idgen"
	"payment-gateway/internal/instrument"
	"payment-gateway/internal/ledger"
	"payment-gateway/internal/logcontext"
	"payment-gateway/internal/message"
	"payment-gateway/internal/metrics"
	"payment-gateway/internal/model"
	"payment-gateway/internal/settlement"

	"github.com/pkg/errors"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Scheduler hands a processing payment to the settlement network.
type Scheduler interface {
	Schedule(ctx context.Context, payment *model.Payment, apply settlement.ApplyFunc) (<-chan struct{}, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event message.PaymentEvent) error
}

type CreateOrderRequest struct {
	Amount   *int64         `json:"amount"`
	Currency string         `json:"currency"`
	Receipt  *string        `json:"receipt"`
	Notes    map[string]any `json:"notes"`
}

type CreatePaymentRequest struct {
	OrderID string       `json:"order_id"`
	Method  model.Method `json:"method"`
	VPA     *string      `json:"vpa"`
	Card    *model.Card  `json:"card"`
}

// Engine owns the order and payment state machines.
type Engine struct {
	store        ledger.Store
	ids          *idgen.Generator
	scheduler    Scheduler
	publisher    EventPublisher
	events       *eventQueue
	logger       *slog.Logger
	strictExpiry bool
	blocking     bool
	timeout      time.Duration
	now          func() time.Time
}

type Option func(*Engine)

// WithPublisher publishes payment events in the background through publisher.
func WithPublisher(publisher EventPublisher) Option {
	return func(e *Engine) { e.publisher = publisher }
}

// WithPublishTimeout bounds a single Publish call.
func WithPublishTimeout(timeout time.Duration) Option {
	return func(e *Engine) { e.timeout = timeout }
}

// WithStrictExpiry makes card payments also require an unexpired card.
func WithStrictExpiry(strict bool) Option {
	return func(e *Engine) { e.strictExpiry = strict }
}

// WithBlocking makes payment creation wait for the settlement outcome.
func WithBlocking(blocking bool) Option {
	return func(e *Engine) { e.blocking = blocking }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(store ledger.Store, ids *idgen.Generator, scheduler Scheduler, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		ids:       ids,
		scheduler: scheduler,
		logger:    logger,
		timeout:   defaultPublishTimeout,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.publisher != nil {
		e.events = newEventQueue(e.publisher, logger, e.timeout)
	}
	return e
}

// Close waits for queued payment events to reach the publisher.
func (e *Engine) Close(ctx context.Context) error {
	if e.events == nil {
		return nil
	}
	return e.events.close(ctx)
}

func (e *Engine) CreateOrder(ctx context.Context, merchant *model.Merchant, req CreateOrderRequest) (*model.Order, error) {
	if req.Amount == nil || *req.Amount < model.MinOrderAmount {
		return nil, apperr.Validation("amount must be at least 100")
	}

	currency := model.DefaultCurrency
	if req.Currency != "" {
		currency = strings.ToUpper(strings.TrimSpace(req.Currency))
		if !currencyPattern.MatchString(currency) {
			return nil, apperr.Validation("currency must be a 3-letter code")
		}
	}

	now := e.now()
	order := &model.Order{
		ID:         e.ids.NewID(model.OrderIDPrefix),
		MerchantID: merchant.ID,
		Amount:     *req.Amount,
		Currency:   currency,
		Receipt:    req.Receipt,
		Notes:      req.Notes,
		Status:     model.OrderStatusCreated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := e.store.CreateOrder(ctx, order); err != nil {
		return nil, apperr.Internal(errors.Wrap(err, "create order"))
	}

	metrics.OrdersCreated().Inc()
	e.logger.InfoContext(ctx, "Order created", "orderId", order.ID, "amount", order.Amount, "currency", order.Currency)
	return order, nil
}

func (e *Engine) GetOrder(ctx context.Context, merchant *model.Merchant, orderID string) (*model.Order, error) {
	order, err := e.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.MerchantID != merchant.ID {
		return nil, orderNotFound()
	}
	return order, nil
}

func (e *Engine) GetPublicOrder(ctx context.Context, orderID string) (*model.PublicOrder, error) {
	order, err := e.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	public := order.Public()
	return &public, nil
}

func (e *Engine) CreatePayment(ctx context.Context, merchant *model.Merchant, req CreatePaymentRequest) (*model.Payment, error) {
	order, err := e.GetOrder(ctx, merchant, req.OrderID)
	if err != nil {
		return nil, err
	}
	return e.createPayment(ctx, order, req)
}

// Checkout pays an order on behalf of its owner without merchant credentials.
func (e *Engine) Checkout(ctx context.Context, req CreatePaymentRequest) (*model.Payment, error) {
	order, err := e.findOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	return e.createPayment(ctx, order, req)
}

func (e *Engine) createPayment(ctx context.Context, order *model.Order, req CreatePaymentRequest) (*model.Payment, error) {
	if !req.Method.Valid() {
		return nil, apperr.Validation("Invalid payment method")
	}

	now := e.now()
	payment := &model.Payment{
		ID:         e.ids.NewID(model.PaymentIDPrefix),
		OrderID:    order.ID,
		MerchantID: order.MerchantID,
		Amount:     order.Amount,
		Currency:   order.Currency,
		Method:     req.Method,
		Status:     model.PaymentStatusProcessing,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	switch req.Method {
	case model.MethodUPI:
		if req.VPA == nil || !instrument.ValidateVpa(*req.VPA) {
			return nil, apperr.InvalidVPA()
		}
		vpa := *req.VPA
		payment.VPA = &vpa
	case model.MethodCard:
		if req.Card == nil || !instrument.ValidateCardInstrument(*req.Card) {
			return nil, apperr.InvalidCard()
		}
		if e.strictExpiry && !instrument.ValidateExpiry(req.Card.ExpiryMonth.String(), req.Card.ExpiryYear.String()) {
			return nil, apperr.InvalidCard()
		}
		network := instrument.DetectCardNetwork(req.Card.Number)
		last4 := instrument.Last4(req.Card.Number)
		payment.CardNetwork = &network
		payment.CardLast4 = &last4
	}

	ctx = logcontext.AppendCtx(ctx, slog.String("paymentId", payment.ID))

	if err := e.store.CreatePayment(ctx, payment); err != nil {
		return nil, apperr.Internal(errors.Wrap(err, "create payment"))
	}

	metrics.PaymentsCreated(string(payment.Method)).Inc()
	e.logger.InfoContext(ctx, "Payment created", "orderId", payment.OrderID, "method", payment.Method, "amount", payment.Amount)
	e.publish(ctx, message.EventPaymentCreated, payment, nil)

	done, err := e.scheduler.Schedule(context.WithoutCancel(ctx), payment, e.ApplyDecision)
	if err != nil {
		e.logger.ErrorContext(ctx, "Error scheduling settlement", "error", err)
		return payment, nil
	}

	if !e.blocking {
		return payment, nil
	}

	select {
	case <-done:
	case <-ctx.Done():
		return payment, nil
	}

	settled, err := e.store.GetPayment(ctx, payment.ID)
	if err != nil {
		return nil, apperr.Internal(errors.Wrap(err, "reload payment"))
	}
	return settled, nil
}

// ApplyOutcome settles a processing payment. Payments that already left
// processing are returned unchanged.
func (e *Engine) ApplyOutcome(ctx context.Context, paymentID string, success bool) (*model.Payment, error) {
	return e.applyOutcome(ctx, paymentID, success, nil)
}

// ApplyDecision is ApplyOutcome for a simulated settlement decision.
func (e *Engine) ApplyDecision(ctx context.Context, decision model.Decision) error {
	_, err := e.applyOutcome(ctx, decision.PaymentID, decision.Success, &decision)
	return err
}

func (e *Engine) applyOutcome(ctx context.Context, paymentID string, success bool, decision *model.Decision) (*model.Payment, error) {
	payment, applied, err := e.store.Settle(ctx, model.NewOutcome(paymentID, success))
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, paymentNotFound()
	}
	if err != nil {
		return nil, apperr.Internal(errors.Wrap(err, "settle payment"))
	}

	if !applied {
		metrics.SettlementsSkipped().Inc()
		e.logger.DebugContext(ctx, "Payment already settled", "paymentId", paymentID, "status", payment.Status)
		return payment, nil
	}

	metrics.PaymentsSettled(string(payment.Method), string(payment.Status)).Inc()
	e.logger.InfoContext(ctx, "Payment settled", "paymentId", paymentID, "status", payment.Status)
	e.publish(ctx, message.SettlementEvent(payment.Status), payment, decision)
	return payment, nil
}

func (e *Engine) GetPayment(ctx context.Context, merchant *model.Merchant, paymentID string) (*model.Payment, error) {
	payment, err := e.store.GetPayment(ctx, paymentID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, paymentNotFound()
	}
	if err != nil {
		return nil, apperr.Internal(errors.Wrap(err, "get payment"))
	}
	if payment.MerchantID != merchant.ID {
		return nil, paymentNotFound()
	}
	return payment, nil
}

func (e *Engine) ListPayments(ctx context.Context, merchant *model.Merchant, filter model.PaymentFilter) ([]*model.Payment, error) {
	switch filter.Status {
	case "", model.PaymentStatusProcessing, model.PaymentStatusSuccess, model.PaymentStatusFailed:
	default:
		return nil, apperr.Validation("Invalid status filter")
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, apperr.Validation("limit and offset must not be negative")
	}

	payments, err := e.store.ListPayments(ctx, merchant.ID, filter)
	if err != nil {
		return nil, apperr.Internal(errors.Wrap(err, "list payments"))
	}
	return payments, nil
}

func (e *Engine) Stats(ctx context.Context, merchant *model.Merchant) (*model.PaymentStats, error) {
	stats, err := e.store.PaymentStats(ctx, merchant.ID)
	if err != nil {
		return nil, apperr.Internal(errors.Wrap(err, "payment stats"))
	}
	return stats, nil
}

func (e *Engine) findOrder(ctx context.Context, orderID string) (*model.Order, error) {
	order, err := e.store.GetOrder(ctx, orderID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, orderNotFound()
	}
	if err != nil {
		return nil, apperr.Internal(errors.Wrap(err, "get order"))
	}
	return order, nil
}

func (e *Engine) publish(ctx context.Context, event string, payment *model.Payment, decision *model.Decision) {
	if e.events == nil {
		return
	}
	e.events.enqueue(ctx, message.NewPaymentEvent(event, payment, decision))
}

func orderNotFound() error {
	return apperr.NotFound("Order not found")
}

func paymentNotFound() error {
	return apperr.NotFound("Payment not found")
}
