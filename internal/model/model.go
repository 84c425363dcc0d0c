package model

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusCreated OrderStatus = "created"
	OrderStatusPaid    OrderStatus = "paid"
)

type PaymentStatus string

const (
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSuccess    PaymentStatus = "success"
	PaymentStatusFailed     PaymentStatus = "failed"
)

type Method string

const (
	MethodCard Method = "card"
	MethodUPI  Method = "upi"
)

func (m Method) Valid() bool {
	return m == MethodCard || m == MethodUPI
}

type CardNetwork string

const (
	NetworkVisa       CardNetwork = "visa"
	NetworkMastercard CardNetwork = "mastercard"
	NetworkAmex       CardNetwork = "amex"
	NetworkRupay      CardNetwork = "rupay"
	NetworkUnknown    CardNetwork = "unknown"
)

const (
	DefaultCurrency = "INR"
	MinOrderAmount  = 100

	OrderIDPrefix   = "order_"
	PaymentIDPrefix = "pay_"

	ErrorCodePaymentFailed        = "PAYMENT_FAILED"
	ErrorDescriptionPaymentFailed = "Bank declined transaction"
)

type Merchant struct {
	ID        uuid.UUID
	Name      string
	Email     string
	APIKey    string
	APISecret string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Order struct {
	ID         string         `json:"id"`
	MerchantID uuid.UUID      `json:"merchant_id"`
	Amount     int64          `json:"amount"`
	Currency   string         `json:"currency"`
	Receipt    *string        `json:"receipt,omitempty"`
	Notes      map[string]any `json:"notes,omitempty"`
	Status     OrderStatus    `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// PublicOrder is the projection served to unauthenticated checkout pages.
type PublicOrder struct {
	ID       string      `json:"id"`
	Amount   int64       `json:"amount"`
	Currency string      `json:"currency"`
	Status   OrderStatus `json:"status"`
}

func (o *Order) Public() PublicOrder {
	return PublicOrder{
		ID:       o.ID,
		Amount:   o.Amount,
		Currency: o.Currency,
		Status:   o.Status,
	}
}

type Payment struct {
	ID               string        `json:"id"`
	OrderID          string        `json:"order_id"`
	MerchantID       uuid.UUID     `json:"-"`
	Amount           int64         `json:"amount"`
	Currency         string        `json:"currency"`
	Method           Method        `json:"method"`
	Status           PaymentStatus `json:"status"`
	VPA              *string       `json:"vpa,omitempty"`
	CardNetwork      *CardNetwork  `json:"card_network,omitempty"`
	CardLast4        *string       `json:"card_last4,omitempty"`
	ErrorCode        *string       `json:"error_code,omitempty"`
	ErrorDescription *string       `json:"error_description,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Card carries the raw instrument of a card payment. It is validated and
// reduced to network and last four digits; nothing else is persisted.
type Card struct {
	Number      string     `json:"number"`
	ExpiryMonth FlexString `json:"expiry_month"`
	ExpiryYear  FlexString `json:"expiry_year"`
	CVV         FlexString `json:"cvv"`
	HolderName  string     `json:"holder_name"`
}

// Outcome is the terminal state a settlement moves a payment to.
type Outcome struct {
	PaymentID        string
	Success          bool
	ErrorCode        string
	ErrorDescription string
}

func NewOutcome(paymentID string, success bool) Outcome {
	o := Outcome{PaymentID: paymentID, Success: success}
	if !success {
		o.ErrorCode = ErrorCodePaymentFailed
		o.ErrorDescription = ErrorDescriptionPaymentFailed
	}
	return o
}

func (o Outcome) Status() PaymentStatus {
	if o.Success {
		return PaymentStatusSuccess
	}
	return PaymentStatusFailed
}

// Decision records how the settlement simulator arrived at an outcome.
type Decision struct {
	PaymentID   string        `json:"paymentId"`
	Method      Method        `json:"method"`
	Probability float64       `json:"probability"`
	Draw        float64       `json:"draw"`
	Forced      bool          `json:"forced"`
	Delay       time.Duration `json:"delay"`
	Seed        uint64        `json:"seed"`
	Success     bool          `json:"success"`
}

type PaymentStats struct {
	TotalTransactions      int64   `json:"total_transactions"`
	SuccessfulTransactions int64   `json:"successful_transactions"`
	TotalAmount            int64   `json:"total_amount"`
	SuccessRate            float64 `json:"success_rate"`
}

type PaymentFilter struct {
	OrderID string
	Status  PaymentStatus
	Limit   int
	Offset  int
}
