package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Freeeeeet/onlycation/internal/clock"
	"github.com/Freeeeeet/onlycation/internal/config"
	"github.com/Freeeeeet/onlycation/internal/domain"
	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/Freeeeeet/onlycation/internal/notify"
	"github.com/Freeeeeet/onlycation/internal/payment"
	"github.com/Freeeeeet/onlycation/internal/repository"
	"go.uber.org/zap"
)

var errDuplicatePayment = errors.New("payment intent already recorded")

type CheckoutURLs struct {
	Success string
	Cancel  string
}

type BookingService struct {
	store     repository.Store
	processor payment.Processor
	notifier  notify.Notifier
	clock     clock.Clock
	policy    config.Policy
	loc       *time.Location
	urls      CheckoutURLs
	logger    *zap.Logger
}

func NewBookingService(
	store repository.Store,
	processor payment.Processor,
	notifier notify.Notifier,
	clk clock.Clock,
	policy config.Policy,
	loc *time.Location,
	urls CheckoutURLs,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		store:     store,
		processor: processor,
		notifier:  notifier,
		clock:     clk,
		policy:    policy,
		loc:       loc,
		urls:      urls,
		logger:    logger,
	}
}

type CheckoutRequest struct {
	AvailabilityID int64
	PriceID        int64
	Start          time.Time
	End            time.Time
}

type CheckoutResult struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
	Quote       Quote  `json:"quote"`
}

// BookingDetails бронирование вместе с платежом и подтверждением
type BookingDetails struct {
	Booking      *model.Booking        `json:"booking"`
	Payment      *model.PaymentBooking `json:"payment,omitempty"`
	Confirmation *model.Confirmation   `json:"confirmation,omitempty"`
}

// validateSlot общие проверки интервала относительно окна; duration 0 значит любая целая длительность
func (s *BookingService) validateSlot(a *model.Availability, start, end time.Time, duration time.Duration) error {
	return validateSlot(a, start, end, duration, s.clock.Now(), s.policy, s.loc)
}

func validateSlot(a *model.Availability, start, end time.Time, duration time.Duration, now time.Time, p config.Policy, loc *time.Location) error {
	if !start.Before(end) {
		return domain.NewValidation(ReasonStartBeforeEnd)
	}
	d := end.Sub(start)
	if d%time.Hour != 0 {
		return domain.NewValidation(ReasonWholeHours)
	}
	if duration != 0 && d != duration {
		return domain.NewValidation("new slot must keep the paid duration")
	}
	if !start.After(now.Add(p.MinAnticipation)) {
		return domain.NewValidation(ReasonAnticipation)
	}
	if !a.Contains(start, end, loc) {
		return domain.NewValidation(ReasonOutsideWindow)
	}
	return nil
}

// CreateCheckout проверяет запрос на бронирование и открывает сессию оплаты
func (s *BookingService) CreateCheckout(ctx context.Context, actor model.Actor, req CheckoutRequest) (*CheckoutResult, error) {
	if !actor.IsStudent() {
		return nil, domain.NewForbidden("only students can book classes")
	}

	// 1. Окно существует и активно
	avail, err := s.store.Availabilities().GetByID(ctx, req.AvailabilityID)
	if err != nil {
		return nil, err
	}
	if avail == nil {
		return nil, domain.NewNotFound("availability")
	}
	if !avail.IsActive {
		return nil, domain.NewValidation(ReasonAvailabilityOff)
	}

	// 2. Интервал корректен, с запасом по времени и внутри окна
	if err := s.validateSlot(avail, req.Start, req.End, 0); err != nil {
		return nil, err
	}

	// 3. Окно не занято
	taken, err := s.store.Bookings().HasOverlapOnAvailability(ctx, avail.ID, req.Start, req.End, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.NewConflict("booking", ReasonOverlap)
	}

	// 4. У студента нет другого занятия в это время
	busy, err := s.store.Bookings().HasOverlapForStudent(ctx, actor.UserID, req.Start, req.End, 0)
	if err != nil {
		return nil, err
	}
	if busy {
		return nil, domain.NewConflict("booking", ReasonStudentOverlap)
	}

	// 5. Тариф учителя
	price, err := s.store.Prices().GetByID(ctx, req.PriceID)
	if err != nil {
		return nil, err
	}
	if price == nil || !price.IsActive || price.TeacherID != avail.TeacherID ||
		(avail.PreferenceID != 0 && price.PreferenceID != avail.PreferenceID) {
		return nil, domain.NewNotFound("price")
	}

	// 6. Учитель может принимать платежи
	wallet, err := s.store.Wallets().GetByTeacherID(ctx, avail.TeacherID)
	if err != nil {
		return nil, err
	}
	if !wallet.CanReceivePayouts() {
		return nil, domain.NewValidation(ReasonWalletNotReady)
	}

	plan, err := s.store.Plans().GetActiveForTeacher(ctx, avail.TeacherID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	hours := int64(req.End.Sub(req.Start) / time.Hour)
	quote := QuoteLesson(price, hours, CommissionPct(plan, s.policy.DefaultCommissionPct))

	student, err := s.store.Users().GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, domain.NewNotFound("student")
	}
	teacher, err := s.store.Users().GetByID(ctx, avail.TeacherID)
	if err != nil {
		return nil, err
	}
	teacherName := "teacher"
	if teacher != nil {
		teacherName = teacher.FullName()
	}

	order := paidOrder{
		StudentID:      actor.UserID,
		TeacherID:      avail.TeacherID,
		AvailabilityID: avail.ID,
		PriceID:        price.ID,
		Start:          req.Start,
		End:            req.End,
		Currency:       s.policy.Currency,
		Quote:          quote,
		TeacherAccount: wallet.StripeAccountID,
	}

	spec := payment.CheckoutSpec{
		Currency: s.policy.Currency,
		LineItems: []payment.LineItem{{
			Name: fmt.Sprintf("Clase con %s (%s) · %s, %d h",
				teacherName, price.PreferenceName, req.Start.In(s.loc).Format("02/01/2006 15:04"), hours),
			UnitAmount: quote.TotalAmount,
			Quantity:   1,
		}},
		SuccessURL:           s.urls.Success,
		CancelURL:            s.urls.Cancel,
		CustomerEmail:        student.Email,
		DestinationAccount:   wallet.StripeAccountID,
		ApplicationFeeAmount: quote.CommissionAmount,
		Metadata:             order.metadata(),
	}

	session, err := s.processor.CreateCheckoutSession(ctx, spec)
	if err != nil {
		return nil, processorError("create checkout session", err)
	}

	s.logger.Info("Checkout session created",
		zap.String("session_id", session.ID),
		zap.Int64("student_id", actor.UserID),
		zap.Int64("teacher_id", avail.TeacherID),
		zap.Int64("availability_id", avail.ID),
		zap.Int64("total_amount", quote.TotalAmount),
		zap.Int64("commission_amount", quote.CommissionAmount))

	return &CheckoutResult{SessionID: session.ID, CheckoutURL: session.URL, Quote: quote}, nil
}

// Verify фиксирует оплаченную сессию; повторная верификация возвращает то же бронирование и Conflict
func (s *BookingService) Verify(ctx context.Context, actor model.Actor, sessionID string) (*model.Booking, error) {
	session, err := s.processor.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, processorError("retrieve checkout session", err)
	}

	if session.Metadata[metaStudentID] != strconv.FormatInt(actor.UserID, 10) {
		return nil, domain.NewForbidden("checkout session belongs to another student")
	}
	if session.PaymentStatus != payment.PaymentStatusPaid {
		return nil, domain.NewValidation(ReasonPaymentNotCompleted)
	}

	booking, created, err := s.persistPaidSession(ctx, session)
	if err != nil {
		return nil, err
	}
	if !created {
		return booking, domain.NewConflict("payment", ReasonAlreadyVerified)
	}
	return booking, nil
}

// persistPaidSession в одной транзакции создаёт Booking → room link → PaymentBooking → Confirmation.
// created=false когда платёж уже был зафиксирован ранее
func (s *BookingService) persistPaidSession(ctx context.Context, session *payment.Session) (*model.Booking, bool, error) {
	if session.PaymentIntentID == "" {
		return nil, false, domain.NewValidation("checkout session has no payment intent")
	}

	order, err := parseOrder(session.Metadata)
	if err != nil {
		return nil, false, domain.ValidationError{Field: "metadata", Msg: "invalid checkout session metadata", Err: err}
	}

	existing, err := s.bookingByPaymentIntent(ctx, session.PaymentIntentID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	var booking *model.Booking
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		// Блокируем окно: параллельные верификации по нему выполняются строго по очереди
		avail, err := tx.Availabilities().GetByIDForUpdate(ctx, order.AvailabilityID)
		if err != nil {
			return err
		}
		if avail == nil {
			return domain.NewNotFound("availability")
		}

		taken, err := tx.Bookings().HasOverlapOnAvailability(ctx, avail.ID, order.Start, order.End, 0)
		if err != nil {
			return err
		}
		if taken {
			return domain.NewConflict("booking", ReasonOverlap)
		}
		// Строка студента сериализует его оплаты по разным окнам
		if err := tx.Users().LockForUpdate(ctx, order.StudentID); err != nil {
			return err
		}
		busy, err := tx.Bookings().HasOverlapForStudent(ctx, order.StudentID, order.Start, order.End, 0)
		if err != nil {
			return err
		}
		if busy {
			return domain.NewConflict("booking", ReasonStudentOverlap)
		}

		booking = &model.Booking{
			StudentID:      order.StudentID,
			TeacherID:      avail.TeacherID,
			AvailabilityID: avail.ID,
			StartTime:      order.Start,
			EndTime:        order.End,
			Status:         model.BookingStatusActive,
		}
		if err := tx.Bookings().Create(ctx, booking); err != nil {
			return err
		}

		link, err := RoomLink(booking.ID, avail.TeacherID, order.StudentID, order.Start)
		if err != nil {
			return err
		}
		if err := tx.Bookings().SetRoomLink(ctx, booking.ID, link); err != nil {
			return err
		}
		booking.RoomLink = link

		pb := &model.PaymentBooking{
			BookingID:                 booking.ID,
			StudentID:                 order.StudentID,
			PriceID:                   order.PriceID,
			Currency:                  order.Currency,
			TotalAmount:               order.Quote.TotalAmount,
			CommissionPct:             order.Quote.CommissionPct,
			CommissionAmount:          order.Quote.CommissionAmount,
			TeacherAmount:             order.Quote.TeacherAmount,
			PlatformAmount:            order.Quote.CommissionAmount,
			TransferDate:              order.End.Add(s.policy.PayoutDelay),
			TransferStatus:            model.TransferStatusPending,
			TeacherConnectedAccountID: order.TeacherAccount,
			ExternalPaymentIntentID:   session.PaymentIntentID,
			ExternalCheckoutSessionID: session.ID,
			RefundState:               model.RefundStateNone,
		}
		if err := tx.PaymentBookings().Create(ctx, pb); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return errDuplicatePayment
			}
			return err
		}

		return tx.Confirmations().Create(ctx, &model.Confirmation{
			PaymentBookingID: pb.ID,
			BookingID:        booking.ID,
			TeacherID:        avail.TeacherID,
			StudentID:        order.StudentID,
		})
	})

	if errors.Is(err, errDuplicatePayment) {
		// Параллельная верификация успела раньше
		existing, lookupErr := s.bookingByPaymentIntent(ctx, session.PaymentIntentID)
		if lookupErr != nil {
			return nil, false, lookupErr
		}
		return existing, false, nil
	}
	if err != nil {
		if domain.IsConflict(err) {
			s.logger.Error("Paid session conflicts with an existing booking",
				zap.String("session_id", session.ID),
				zap.String("payment_intent", session.PaymentIntentID),
				zap.Error(err))
			s.refundUnbookedSession(ctx, session, order)
		}
		return nil, false, err
	}

	s.logger.Info("Booking created",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("student_id", booking.StudentID),
		zap.Int64("teacher_id", booking.TeacherID),
		zap.Time("start", booking.StartTime),
		zap.String("payment_intent", session.PaymentIntentID))

	s.notifyBooked(ctx, booking, order)

	return booking, true, nil
}

// refundUnbookedSession возвращает оплату, для которой не удалось создать бронирование
func (s *BookingService) refundUnbookedSession(ctx context.Context, session *payment.Session, order paidOrder) {
	refund, err := s.processor.CreateRefund(ctx, payment.RefundSpec{
		PaymentIntentID: session.PaymentIntentID,
		Amount:          order.Quote.TotalAmount,
		Reason:          refundReasonCustomer,
		Metadata: map[string]string{
			"checkout_session_id": session.ID,
			"availability_id":     strconv.FormatInt(order.AvailabilityID, 10),
			"refund_type":         "slot_conflict",
		},
		IdempotencyKey: "refund-pi-" + session.PaymentIntentID,
	})
	if err != nil {
		s.logger.Error("Failed to refund unbooked paid session",
			zap.String("session_id", session.ID),
			zap.String("payment_intent", session.PaymentIntentID),
			zap.Error(err))
		return
	}

	s.logger.Info("Paid session refunded after slot conflict",
		zap.String("session_id", session.ID),
		zap.String("payment_intent", session.PaymentIntentID),
		zap.String("refund_id", refund.ID),
		zap.Int64("amount", refund.Amount))
}

func (s *BookingService) bookingByPaymentIntent(ctx context.Context, paymentIntentID string) (*model.Booking, error) {
	pb, err := s.store.PaymentBookings().GetByPaymentIntentID(ctx, paymentIntentID)
	if err != nil || pb == nil {
		return nil, err
	}
	return s.store.Bookings().GetByID(ctx, pb.BookingID)
}

func (s *BookingService) notifyBooked(ctx context.Context, b *model.Booking, order paidOrder) {
	when := b.StartTime.In(s.loc).Format("02/01/2006 15:04")
	amount := fmt.Sprintf("%d.%02d %s", order.Quote.TotalAmount/100, order.Quote.TotalAmount%100, order.Currency)

	s.notifier.Notify(ctx, notify.Notification{
		UserID: b.StudentID,
		Kind:   notify.KindBookingConfirmed,
		Title:  "Reserva confirmada",
		Body:   fmt.Sprintf("Tu clase del %s está confirmada. Sala: %s", when, b.RoomLink),
	})
	s.notifier.Notify(ctx, notify.Notification{
		UserID: b.StudentID,
		Kind:   notify.KindPaymentConfirmed,
		Title:  "Pago recibido",
		Body:   fmt.Sprintf("Recibimos tu pago de %s.", amount),
	})
	s.notifier.Notify(ctx, notify.Notification{
		UserID: b.TeacherID,
		Kind:   notify.KindNewBooking,
		Title:  "Nueva reserva",
		Body:   fmt.Sprintf("Tienes una nueva clase el %s. Sala: %s", when, b.RoomLink),
	})
}

// HandleWebhook обрабатывает проверенное событие провайдера ровно один раз
func (s *BookingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.processor.VerifyWebhook(payload, signature)
	if err != nil {
		return domain.ValidationError{Field: "signature", Msg: "invalid webhook signature", Err: err}
	}

	fresh, err := s.store.PaymentEvents().Record(ctx, &model.PaymentEvent{
		EventID:    ev.ID,
		Type:       string(ev.Type),
		Payload:    ev.Payload,
		Status:     "received",
		ReceivedAt: s.clock.Now(),
	})
	if err != nil {
		return err
	}
	if !fresh {
		s.logger.Debug("Duplicate webhook event", zap.String("event_id", ev.ID))
		return nil
	}

	status, procErr := s.applyEvent(ctx, ev)

	var errMsg *string
	if procErr != nil {
		status = "failed"
		msg := procErr.Error()
		errMsg = &msg
		s.logger.Error("Failed to process webhook event",
			zap.String("event_id", ev.ID),
			zap.String("type", string(ev.Type)),
			zap.Error(procErr))
	}
	if err := s.store.PaymentEvents().MarkDone(ctx, ev.ID, status, errMsg, s.clock.Now()); err != nil {
		s.logger.Warn("Failed to mark webhook event", zap.String("event_id", ev.ID), zap.Error(err))
	}
	return procErr
}

func (s *BookingService) applyEvent(ctx context.Context, ev *payment.Event) (string, error) {
	switch ev.Type {
	case payment.EventCheckoutCompleted:
		if ev.Session == nil || ev.Session.PaymentStatus != payment.PaymentStatusPaid {
			return "ignored", nil
		}
		_, _, err := s.persistPaidSession(ctx, ev.Session)
		if err != nil {
			return "", err
		}
		return "processed", nil

	case payment.EventAccountUpdated:
		status := model.WalletStatusRestricted
		if ev.AccountEnabled {
			status = model.WalletStatusActive
		}
		n, err := s.store.Wallets().UpdateStatusByAccount(ctx, ev.AccountID, status)
		if err != nil {
			return "", err
		}
		if n > 0 {
			s.logger.Info("Teacher wallet status synced",
				zap.String("account_id", ev.AccountID),
				zap.String("status", string(status)))
		}
		return "processed", nil
	}

	return "ignored", nil
}

// Get бронирование с деталями; доступно только участникам
func (s *BookingService) Get(ctx context.Context, actor model.Actor, bookingID int64) (*BookingDetails, error) {
	b, err := s.store.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, domain.NewNotFound("booking")
	}
	if actor.UserID != b.StudentID && actor.UserID != b.TeacherID && actor.Role != model.RoleAdmin {
		return nil, domain.NewForbidden("not a participant of this booking")
	}

	pb, err := s.store.PaymentBookings().GetByBookingID(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	c, err := s.store.Confirmations().GetByBookingID(ctx, b.ID)
	if err != nil {
		return nil, err
	}

	return &BookingDetails{Booking: b, Payment: pb, Confirmation: c}, nil
}

// List бронирования актора в его роли
func (s *BookingService) List(ctx context.Context, actor model.Actor) ([]*model.Booking, error) {
	if actor.IsTeacher() {
		return s.ListForTeacher(ctx, actor.UserID)
	}
	return s.ListForStudent(ctx, actor.UserID)
}

func (s *BookingService) ListForStudent(ctx context.Context, studentID int64) ([]*model.Booking, error) {
	return s.store.Bookings().ListByStudent(ctx, studentID)
}

func (s *BookingService) ListForTeacher(ctx context.Context, teacherID int64) ([]*model.Booking, error) {
	return s.store.Bookings().ListByTeacher(ctx, teacherID)
}

func processorError(op string, err error) error {
	var pe *payment.Error
	if errors.As(err, &pe) {
		return domain.ProcessorError{Op: op, Code: pe.Code, Err: err}
	}
	return domain.ProcessorError{Op: op, Err: err}
}
