package model

import "time"

type RefundType string

const (
	RefundTypeBeforeClass       RefundType = "before_class"
	RefundTypeTeacherNoShow     RefundType = "teacher_no_show"
	RefundTypeTeacherDenied     RefundType = "teacher_denied"
	RefundTypeTeacherNoResponse RefundType = "teacher_no_response"
	RefundTypeNoConfirmation    RefundType = "no_confirmation"
)

type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusProcessed RefundStatus = "processed"
	RefundStatusRejected  RefundStatus = "rejected"
	RefundStatusFailed    RefundStatus = "failed"
)

// RefundRequest журнал попыток возврата (только вставка)
type RefundRequest struct {
	ID                 int64        `json:"id"`
	StudentID          int64        `json:"student_id"`
	PaymentBookingID   int64        `json:"payment_booking_id"`
	BookingID          int64        `json:"booking_id"`
	ConfirmationID     int64        `json:"confirmation_id"`
	Amount             int64        `json:"amount"`
	Type               RefundType   `json:"type"`
	Status             RefundStatus `json:"status"`
	ExternalRefundID   *string      `json:"external_refund_id,omitempty"`
	ExternalReversalID *string      `json:"external_reversal_id,omitempty"`
	Reason             string       `json:"reason"`
	ProcessedAt        *time.Time   `json:"processed_at,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
}
