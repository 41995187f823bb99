package payment

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrNoTransfer       = errors.New("payment has no transfer yet")
)

// Error ошибка провайдера с его кодом
type Error struct {
	Op   string
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type PaymentStatus string

const (
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusUnpaid            PaymentStatus = "unpaid"
	PaymentStatusNoPaymentRequired PaymentStatus = "no_payment_required"
)

type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

// CheckoutSpec параметры сессии оплаты со split-выплатой учителю
type CheckoutSpec struct {
	Currency             string
	LineItems            []LineItem
	SuccessURL           string
	CancelURL            string
	CustomerEmail        string
	DestinationAccount   string
	ApplicationFeeAmount int64 // 0: без комиссии платформы
	Metadata             map[string]string
	IdempotencyKey       string
}

type CheckoutSession struct {
	ID  string
	URL string
}

type Session struct {
	ID              string
	PaymentStatus   PaymentStatus
	PaymentIntentID string
	AmountTotal     int64
	Metadata        map[string]string
}

type RefundSpec struct {
	PaymentIntentID string
	Amount          int64
	Reason          string
	Metadata        map[string]string
	IdempotencyKey  string
}

type Refund struct {
	ID     string
	Status string
	Amount int64
}

type ReversalSpec struct {
	TransferID     string
	Amount         int64
	Metadata       map[string]string
	IdempotencyKey string
}

type Reversal struct {
	ID     string
	Status string
	Amount int64
}

type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type Balance struct {
	Available []Money `json:"available"`
	Pending   []Money `json:"pending"`
}

type EventType string

const (
	EventCheckoutCompleted EventType = "checkout.session.completed"
	EventAccountUpdated    EventType = "account.updated"
)

// Event проверенное событие вебхука
type Event struct {
	ID      string
	Type    EventType
	Payload []byte

	Session *Session // для checkout.session.completed

	AccountID      string // для account.updated
	AccountEnabled bool
}

// Processor контракт платёжного провайдера
type Processor interface {
	CreateCheckoutSession(ctx context.Context, spec CheckoutSpec) (*CheckoutSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (*Session, error)
	CreateRefund(ctx context.Context, spec RefundSpec) (*Refund, error)
	ReverseTransfer(ctx context.Context, spec ReversalSpec) (*Reversal, error)
	RetrieveBalance(ctx context.Context, accountID string) (*Balance, error)
	RetrievePaymentTransfer(ctx context.Context, paymentIntentID string) (string, error)
	VerifyWebhook(payload []byte, signature string) (*Event, error)
}
