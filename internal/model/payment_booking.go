package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransferStatus string

const (
	TransferStatusPending     TransferStatus = "pending"
	TransferStatusTransferred TransferStatus = "transferred"
	TransferStatusReversed    TransferStatus = "reversed"
	TransferStatusFailed      TransferStatus = "failed"
)

type RefundState string

const (
	RefundStateNone      RefundState = "none"
	RefundStateProcessed RefundState = "processed"
)

// PaymentBooking финансовая запись бронирования (1:1); неизменна кроме transfer_status и refund_state
type PaymentBooking struct {
	ID                        int64           `json:"id"`
	BookingID                 int64           `json:"booking_id"`
	StudentID                 int64           `json:"student_id"`
	PriceID                   int64           `json:"price_id"`
	Currency                  string          `json:"currency"`
	TotalAmount               int64           `json:"total_amount"`
	CommissionPct             decimal.Decimal `json:"commission_pct"`
	CommissionAmount          int64           `json:"commission_amount"`
	TeacherAmount             int64           `json:"teacher_amount"`
	PlatformAmount            int64           `json:"platform_amount"`
	TransferDate              time.Time       `json:"transfer_date"`
	TransferStatus            TransferStatus  `json:"transfer_status"`
	TeacherConnectedAccountID string          `json:"teacher_connected_account_id"`
	ExternalPaymentIntentID   string          `json:"external_payment_intent_id"`
	ExternalCheckoutSessionID string          `json:"external_checkout_session_id"`
	ExternalTransferID        *string         `json:"external_transfer_id,omitempty"`
	RefundState               RefundState     `json:"refund_state"`
	CreatedAt                 time.Time       `json:"created_at"`
	UpdatedAt                 time.Time       `json:"updated_at"`
}

func (p *PaymentBooking) IsRefunded() bool {
	return p.RefundState == RefundStateProcessed
}
