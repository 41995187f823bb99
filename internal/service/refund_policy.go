package service

import (
	"time"

	"github.com/Freeeeeet/onlycation/internal/config"
	"github.com/Freeeeeet/onlycation/internal/model"
)

// RefundTrigger кто инициирует проверку возврата
type RefundTrigger string

const (
	TriggerStudent      RefundTrigger = "student_request"
	TriggerAdjudication RefundTrigger = "adjudication"
)

// Причины отказа; строки стабильны и уходят клиенту как есть
const (
	ReasonAlreadyRefunded     = "already refunded"
	ReasonBookingCancelled    = "booking already cancelled"
	ReasonServiceDelivered    = "service delivered: teacher confirmed attendance"
	ReasonClassNotStarted     = "class has not ended yet"
	ReasonTooClose            = "too close, 30 min minimum"
	ReasonClassInProgress     = "class in progress"
	ReasonStudentNoShow       = "student acknowledged no-show"
	ReasonRefundWindowExpired = "refund window expired: more than 24h since attendance confirmation"
	ReasonTeacherWindowOpen   = "teacher confirmation window still open"
)

type RefundInput struct {
	Now          time.Time
	Trigger      RefundTrigger
	Booking      *model.Booking
	Payment      *model.PaymentBooking
	Confirmation *model.Confirmation
}

type RefundDecision struct {
	Eligible        bool             `json:"eligible"`
	Type            model.RefundType `json:"refund_type,omitempty"`
	Reason          string           `json:"reason"`
	ReverseTransfer bool             `json:"reverse_transfer"`
}

func ineligible(reason string) RefundDecision {
	return RefundDecision{Reason: reason}
}

func eligible(t model.RefundType, reason string, reverse bool) RefundDecision {
	return RefundDecision{Eligible: true, Type: t, Reason: reason, ReverseTransfer: reverse}
}

// EvaluateRefund матрица возвратов; блокирующие условия проверяются раньше разрешающих
func EvaluateRefund(in RefundInput, p config.Policy) RefundDecision {
	b, pay, c, now := in.Booking, in.Payment, in.Confirmation, in.Now

	if pay.IsRefunded() {
		return ineligible(ReasonAlreadyRefunded)
	}
	if b.IsCancelled() {
		return ineligible(ReasonBookingCancelled)
	}
	if c.TeacherConfirmed == model.AttendanceConfirmed {
		return ineligible(ReasonServiceDelivered)
	}

	// До начала занятия возможна только отмена студентом
	if now.Before(b.StartTime) {
		if in.Trigger != TriggerStudent {
			return ineligible(ReasonClassNotStarted)
		}
		if !now.After(b.StartTime.Add(-p.RefundBeforeClass)) {
			return eligible(model.RefundTypeBeforeClass, "cancelled before class", false)
		}
		return ineligible(ReasonTooClose)
	}

	if now.Before(b.EndTime) {
		return ineligible(ReasonClassInProgress)
	}

	if c.StudentConfirmed == model.AttendanceDenied {
		return ineligible(ReasonStudentNoShow)
	}

	if in.Trigger == TriggerStudent && c.StudentConfirmedAt != nil &&
		now.After(c.StudentConfirmedAt.Add(p.StudentRefundWindow)) {
		return ineligible(ReasonRefundWindowExpired)
	}

	reverse := pay.TransferStatus == model.TransferStatusTransferred && pay.ExternalTransferID != nil
	windowClosed := !now.Before(b.EndTime.Add(p.TeacherConfirmWindow))

	if c.TeacherConfirmed == model.AttendanceDenied {
		// Учитель сам признал, что занятия не было
		if c.StudentConfirmed == model.AttendanceConfirmed || windowClosed {
			return eligible(model.RefundTypeTeacherDenied, "teacher denied the class took place", reverse)
		}
		return ineligible(ReasonTeacherWindowOpen)
	}

	if !windowClosed {
		return ineligible(ReasonTeacherWindowOpen)
	}

	if c.StudentConfirmed == model.AttendanceConfirmed {
		return eligible(model.RefundTypeTeacherNoShow, "teacher did not confirm within 4h", reverse)
	}
	return eligible(model.RefundTypeNoConfirmation, "nobody confirmed the class", reverse)
}
