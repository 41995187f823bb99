package controller

import (
	"context"
	"time"

	"github.com/Freeeeeet/onlycation/internal/clock"
	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/Freeeeeet/onlycation/internal/payment"
	"github.com/Freeeeeet/onlycation/internal/service"
	"go.uber.org/zap"
)

type AvailabilityService interface {
	Create(ctx context.Context, actor model.Actor, in service.AvailabilityInput) (*model.Availability, error)
	Update(ctx context.Context, actor model.Actor, id int64, patch service.AvailabilityPatch) (*model.Availability, error)
	Delete(ctx context.Context, actor model.Actor, id int64) (*model.AvailabilityDeleteResult, error)
	List(ctx context.Context, teacherID int64) ([]*model.Availability, error)
	WeeklyAgenda(ctx context.Context, teacherID int64, week time.Time) (*model.WeeklyAgenda, error)
	AgendaImage(ctx context.Context, teacherID int64, week time.Time) ([]byte, error)
}

type BookingService interface {
	CreateCheckout(ctx context.Context, actor model.Actor, req service.CheckoutRequest) (*service.CheckoutResult, error)
	Verify(ctx context.Context, actor model.Actor, sessionID string) (*model.Booking, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	Get(ctx context.Context, actor model.Actor, bookingID int64) (*service.BookingDetails, error)
	List(ctx context.Context, actor model.Actor) ([]*model.Booking, error)
}

type ConfirmationService interface {
	ConfirmTeacher(ctx context.Context, actor model.Actor, in service.ConfirmInput) (*model.Confirmation, error)
	ConfirmStudent(ctx context.Context, actor model.Actor, in service.ConfirmInput) (*model.Confirmation, error)
	Get(ctx context.Context, actor model.Actor, bookingID int64) (*model.Confirmation, error)
}

type RescheduleService interface {
	Propose(ctx context.Context, actor model.Actor, in service.ProposeInput) (*model.RescheduleRequest, error)
	Respond(ctx context.Context, actor model.Actor, requestID int64, approve bool, message string) (*model.RescheduleRequest, error)
	StudentReschedule(ctx context.Context, actor model.Actor, in service.SlotChange) (*model.Booking, error)
	ListPending(ctx context.Context, actor model.Actor) ([]*model.RescheduleRequest, error)
}

type RefundService interface {
	RequestByStudent(ctx context.Context, actor model.Actor, confirmationID int64) (*service.RefundOutcome, error)
	ListForStudent(ctx context.Context, studentID int64) ([]*model.RefundRequest, error)
}

type WalletService interface {
	Balance(ctx context.Context, actor model.Actor) (*payment.Balance, error)
}

// Services зависимости HTTP слоя
type Services struct {
	Availability AvailabilityService
	Bookings     BookingService
	Confirmation ConfirmationService
	Reschedule   RescheduleService
	Refunds      RefundService
	Wallet       WalletService
}

// Handler обрабатывает HTTP запросы и делегирует сервисам
type Handler struct {
	availability AvailabilityService
	bookings     BookingService
	confirmation ConfirmationService
	reschedule   RescheduleService
	refunds      RefundService
	wallet       WalletService

	clock           clock.Clock
	loc             *time.Location
	maxEvidenceSize int64
	logger          *zap.Logger
}

func NewHandler(
	svc Services,
	clk clock.Clock,
	loc *time.Location,
	maxEvidenceSize int64,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		availability:    svc.Availability,
		bookings:        svc.Bookings,
		confirmation:    svc.Confirmation,
		reschedule:      svc.Reschedule,
		refunds:         svc.Refunds,
		wallet:          svc.Wallet,
		clock:           clk,
		loc:             loc,
		maxEvidenceSize: maxEvidenceSize,
		logger:          logger,
	}
}
