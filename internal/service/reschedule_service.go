package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/onlycation/internal/clock"
	"github.com/Freeeeeet/onlycation/internal/config"
	"github.com/Freeeeeet/onlycation/internal/domain"
	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/Freeeeeet/onlycation/internal/notify"
	"github.com/Freeeeeet/onlycation/internal/repository"
	"go.uber.org/zap"
)

var errSlotTaken = errors.New("proposed slot taken")

const (
	reasonClassStarted      = "class has already started"
	reasonPendingReschedule = "booking already has a pending reschedule request"
	reasonAlreadyAnswered   = "reschedule request already answered"
	reasonTooLateToMove     = "reschedule must be requested at least 30 minutes before the class"
	reasonOtherTeacher      = "availability belongs to another teacher"
)

type RescheduleService struct {
	store    repository.Store
	notifier notify.Notifier
	clock    clock.Clock
	policy   config.Policy
	loc      *time.Location
	logger   *zap.Logger
}

func NewRescheduleService(
	store repository.Store,
	notifier notify.Notifier,
	clk clock.Clock,
	policy config.Policy,
	loc *time.Location,
	logger *zap.Logger,
) *RescheduleService {
	return &RescheduleService{
		store:    store,
		notifier: notifier,
		clock:    clk,
		policy:   policy,
		loc:      loc,
		logger:   logger,
	}
}

// SlotChange новый слот для бронирования
type SlotChange struct {
	BookingID      int64
	AvailabilityID int64
	Start          time.Time
	End            time.Time
}

type ProposeInput struct {
	SlotChange
	Reason string
}

// targetAvailability окно учителя, в которое переносится урок
func (s *RescheduleService) targetAvailability(ctx context.Context, booking *model.Booking, availabilityID int64) (*model.Availability, error) {
	avail, err := s.store.Availabilities().GetByID(ctx, availabilityID)
	if err != nil {
		return nil, err
	}
	if avail == nil {
		return nil, domain.NewNotFound("availability")
	}
	if avail.TeacherID != booking.TeacherID {
		return nil, domain.NewValidation(reasonOtherTeacher)
	}
	if !avail.IsActive {
		return nil, domain.NewValidation(ReasonAvailabilityOff)
	}
	return avail, nil
}

// checkSlotFree оба предиката пересечения, без учёта самого бронирования
func checkSlotFree(ctx context.Context, st repository.Store, booking *model.Booking, availabilityID int64, start, end time.Time) error {
	taken, err := st.Bookings().HasOverlapOnAvailability(ctx, availabilityID, start, end, booking.ID)
	if err != nil {
		return err
	}
	if taken {
		return domain.NewConflict("booking", ReasonOverlap)
	}
	busy, err := st.Bookings().HasOverlapForStudent(ctx, booking.StudentID, start, end, booking.ID)
	if err != nil {
		return err
	}
	if busy {
		return domain.NewConflict("booking", ReasonStudentOverlap)
	}
	return nil
}

// Propose учитель предлагает перенести урок; студент должен согласиться в течение 24 часов
func (s *RescheduleService) Propose(ctx context.Context, actor model.Actor, in ProposeInput) (*model.RescheduleRequest, error) {
	booking, err := s.store.Bookings().GetByID(ctx, in.BookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, domain.NewNotFound("booking")
	}
	if booking.TeacherID != actor.UserID {
		return nil, domain.NewForbidden("only the teacher of the booking can propose a reschedule")
	}
	if booking.Status != model.BookingStatusActive {
		return nil, domain.NewValidation(ReasonBookingNotActive)
	}

	now := s.clock.Now()
	if !now.Before(booking.StartTime) {
		return nil, domain.NewValidation(reasonClassStarted)
	}

	avail, err := s.targetAvailability(ctx, booking, in.AvailabilityID)
	if err != nil {
		return nil, err
	}
	if err := validateSlot(avail, in.Start, in.End, booking.Duration(), now, s.policy, s.loc); err != nil {
		return nil, err
	}
	if err := checkSlotFree(ctx, s.store, booking, avail.ID, in.Start, in.End); err != nil {
		return nil, err
	}

	// Просроченный pending не должен блокировать новое предложение
	if _, err := s.store.Reschedules().ExpireForBooking(ctx, booking.ID, now); err != nil {
		return nil, err
	}
	pending, err := s.store.Reschedules().HasPending(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, domain.NewConflict("reschedule_request", reasonPendingReschedule)
	}

	req := &model.RescheduleRequest{
		BookingID:              booking.ID,
		TeacherID:              booking.TeacherID,
		StudentID:              booking.StudentID,
		CurrentAvailabilityID:  booking.AvailabilityID,
		CurrentStart:           booking.StartTime,
		CurrentEnd:             booking.EndTime,
		ProposedAvailabilityID: avail.ID,
		ProposedStart:          in.Start,
		ProposedEnd:            in.End,
		Status:                 model.RescheduleStatusPending,
		CreatedAt:              now,
		ExpiresAt:              now.Add(s.policy.RescheduleExpiry),
	}
	if reason := strings.TrimSpace(in.Reason); reason != "" {
		req.Reason = &reason
	}

	if err := s.store.Reschedules().Create(ctx, req); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.NewConflict("reschedule_request", reasonPendingReschedule)
		}
		return nil, err
	}

	s.logger.Info("Reschedule proposed",
		zap.Int64("request_id", req.ID),
		zap.Int64("booking_id", booking.ID),
		zap.Int64("teacher_id", booking.TeacherID),
		zap.Time("proposed_start", req.ProposedStart))

	s.notifier.Notify(ctx, notify.Notification{
		UserID: booking.StudentID,
		Kind:   notify.KindRescheduleProposed,
		Title:  "Propuesta de cambio de horario",
		Body: fmt.Sprintf("Tu profesor propone mover la clase del %s al %s. Tienes 24 horas para responder.",
			s.formatTime(booking.StartTime), s.formatTime(req.ProposedStart)),
	})

	return req, nil
}

// Respond ответ студента; просроченный запрос помечается expired при чтении
func (s *RescheduleService) Respond(ctx context.Context, actor model.Actor, requestID int64, approve bool, message string) (*model.RescheduleRequest, error) {
	req, err := s.store.Reschedules().GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, domain.NewNotFound("reschedule_request")
	}
	if req.StudentID != actor.UserID {
		return nil, domain.NewForbidden("only the student of the booking can answer")
	}

	now := s.clock.Now()
	if req.Status == model.RescheduleStatusPending && req.ExpiredAt(now) {
		if _, err := s.store.Reschedules().ExpireForBooking(ctx, req.BookingID, now); err != nil {
			return nil, err
		}
		s.logger.Info("Reschedule request expired on response",
			zap.Int64("request_id", req.ID),
			zap.Int64("booking_id", req.BookingID))
		return nil, domain.NewValidation(ReasonRescheduleExpired)
	}
	switch req.Status {
	case model.RescheduleStatusPending:
	case model.RescheduleStatusExpired:
		return nil, domain.NewValidation(ReasonRescheduleExpired)
	default:
		return nil, domain.NewConflict("reschedule_request", reasonAlreadyAnswered)
	}

	var msg *string
	if m := strings.TrimSpace(message); m != "" {
		msg = &m
	}

	status := model.RescheduleStatusRejected
	if approve {
		status = model.RescheduleStatusApproved
	}

	err = s.store.InTx(ctx, func(tx repository.Store) error {
		if approve {
			if err := s.applyProposal(ctx, tx, req, now); err != nil {
				return err
			}
		}
		ok, err := tx.Reschedules().Resolve(ctx, req.ID, model.RescheduleResolution{
			Status:  status,
			Message: msg,
			At:      now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return domain.NewConflict("reschedule_request", reasonAlreadyAnswered)
		}
		return nil
	})

	if errors.Is(err, errSlotTaken) {
		// Транзакция откатилась; фиксируем причину отдельно
		note := ReasonSlotTaken
		if _, resolveErr := s.store.Reschedules().Resolve(ctx, req.ID, model.RescheduleResolution{
			Status:  model.RescheduleStatusExpired,
			Message: msg,
			Note:    &note,
			At:      now,
		}); resolveErr != nil {
			s.logger.Warn("Failed to expire conflicting reschedule request",
				zap.Int64("request_id", req.ID),
				zap.Error(resolveErr))
		}
		s.notifyAnswered(ctx, req, "La propuesta ya no es válida: el horario propuesto fue ocupado.")
		return nil, domain.NewConflict("reschedule_request", ReasonSlotTaken)
	}
	if err != nil {
		return nil, err
	}

	req.Status = status
	req.StudentMessage = msg
	req.RespondedAt = &now

	s.logger.Info("Reschedule answered",
		zap.Int64("request_id", req.ID),
		zap.Int64("booking_id", req.BookingID),
		zap.String("status", string(status)))

	answer := "El estudiante rechazó el cambio de horario."
	if approve {
		answer = fmt.Sprintf("El estudiante aceptó el cambio. Nueva fecha: %s.", s.formatTime(req.ProposedStart))
	}
	s.notifyAnswered(ctx, req, answer)

	return req, nil
}

// applyProposal переносит бронирование на предложенный слот внутри транзакции
func (s *RescheduleService) applyProposal(ctx context.Context, tx repository.Store, req *model.RescheduleRequest, now time.Time) error {
	avail, err := tx.Availabilities().GetByIDForUpdate(ctx, req.ProposedAvailabilityID)
	if err != nil {
		return err
	}
	if avail == nil || !avail.IsActive || !req.ProposedStart.After(now) {
		return errSlotTaken
	}

	booking, err := tx.Bookings().GetByID(ctx, req.BookingID)
	if err != nil {
		return err
	}
	if booking == nil || booking.Status != model.BookingStatusActive {
		return domain.NewValidation(ReasonBookingNotActive)
	}

	if err := checkSlotFree(ctx, tx, booking, avail.ID, req.ProposedStart, req.ProposedEnd); err != nil {
		if domain.IsConflict(err) {
			return errSlotTaken
		}
		return err
	}

	return tx.Bookings().UpdateSlot(ctx, booking.ID, avail.ID, req.ProposedStart, req.ProposedEnd)
}

func (s *RescheduleService) notifyAnswered(ctx context.Context, req *model.RescheduleRequest, body string) {
	s.notifier.Notify(ctx, notify.Notification{
		UserID: req.TeacherID,
		Kind:   notify.KindRescheduleAnswered,
		Title:  "Respuesta a tu propuesta de cambio",
		Body:   body,
	})
}

// StudentReschedule самостоятельный перенос студентом, не позже чем за 30 минут до начала
func (s *RescheduleService) StudentReschedule(ctx context.Context, actor model.Actor, in SlotChange) (*model.Booking, error) {
	booking, err := s.store.Bookings().GetByID(ctx, in.BookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, domain.NewNotFound("booking")
	}
	if booking.StudentID != actor.UserID {
		return nil, domain.NewForbidden("only the student of the booking can reschedule it")
	}
	if booking.Status != model.BookingStatusActive {
		return nil, domain.NewValidation(ReasonBookingNotActive)
	}

	now := s.clock.Now()
	if now.After(booking.StartTime.Add(-s.policy.RescheduleCutoff)) {
		return nil, domain.NewValidation(reasonTooLateToMove)
	}

	avail, err := s.targetAvailability(ctx, booking, in.AvailabilityID)
	if err != nil {
		return nil, err
	}
	if err := validateSlot(avail, in.Start, in.End, booking.Duration(), now, s.policy, s.loc); err != nil {
		return nil, err
	}

	oldStart := booking.StartTime
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Availabilities().GetByIDForUpdate(ctx, avail.ID); err != nil {
			return err
		}
		if err := checkSlotFree(ctx, tx, booking, avail.ID, in.Start, in.End); err != nil {
			return err
		}
		return tx.Bookings().UpdateSlot(ctx, booking.ID, avail.ID, in.Start, in.End)
	})
	if err != nil {
		return nil, err
	}

	booking.AvailabilityID = avail.ID
	booking.StartTime = in.Start
	booking.EndTime = in.End

	s.logger.Info("Booking rescheduled by student",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("student_id", booking.StudentID),
		zap.Time("old_start", oldStart),
		zap.Time("new_start", in.Start))

	s.notifier.Notify(ctx, notify.Notification{
		UserID: booking.TeacherID,
		Kind:   notify.KindBookingRescheduled,
		Title:  "Clase reprogramada",
		Body: fmt.Sprintf("El estudiante movió la clase del %s al %s.",
			s.formatTime(oldStart), s.formatTime(in.Start)),
	})

	return booking, nil
}

// ListPending ожидающие ответа запросы, где актор учитель или студент
func (s *RescheduleService) ListPending(ctx context.Context, actor model.Actor) ([]*model.RescheduleRequest, error) {
	if _, err := s.ExpireStale(ctx); err != nil {
		return nil, err
	}
	return s.store.Reschedules().ListPendingForUser(ctx, actor.UserID)
}

// ExpireStale фоновая зачистка просроченных запросов
func (s *RescheduleService) ExpireStale(ctx context.Context) (int64, error) {
	n, err := s.store.Reschedules().ExpireStale(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("Stale reschedule requests expired", zap.Int64("count", n))
	}
	return n, nil
}

func (s *RescheduleService) formatTime(t time.Time) string {
	return t.In(s.loc).Format("02/01/2006 15:04")
}
