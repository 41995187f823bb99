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

const refundReasonCustomer = "requested_by_customer"

type RefundService struct {
	store     repository.Store
	processor payment.Processor
	notifier  notify.Notifier
	clock     clock.Clock
	policy    config.Policy
	loc       *time.Location
	logger    *zap.Logger
}

func NewRefundService(
	store repository.Store,
	processor payment.Processor,
	notifier notify.Notifier,
	clk clock.Clock,
	policy config.Policy,
	loc *time.Location,
	logger *zap.Logger,
) *RefundService {
	return &RefundService{
		store:     store,
		processor: processor,
		notifier:  notifier,
		clock:     clk,
		policy:    policy,
		loc:       loc,
		logger:    logger,
	}
}

// RefundOutcome решение по возврату и, если он выполнен, запись журнала
type RefundOutcome struct {
	Decision RefundDecision       `json:"decision"`
	Refund   *model.RefundRequest `json:"refund,omitempty"`
}

// BatchReport итог одного прохода автоматических возвратов
type BatchReport struct {
	Scanned  int `json:"scanned"`
	Refunded int `json:"refunded"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// RequestByStudent возврат по запросу студента
func (s *RefundService) RequestByStudent(ctx context.Context, actor model.Actor, confirmationID int64) (*RefundOutcome, error) {
	return s.Process(ctx, &actor, confirmationID, TriggerStudent)
}

// Process проверяет право на возврат и выполняет его. actor == nil для фонового прохода
func (s *RefundService) Process(ctx context.Context, actor *model.Actor, confirmationID int64, trigger RefundTrigger) (*RefundOutcome, error) {
	conf, err := s.store.Confirmations().GetByID(ctx, confirmationID)
	if err != nil {
		return nil, err
	}
	if conf == nil {
		return nil, domain.NewNotFound("confirmation")
	}
	if actor != nil && actor.UserID != conf.StudentID && actor.Role != model.RoleAdmin {
		return nil, domain.NewForbidden("only the student of the booking can request a refund")
	}

	pay, err := s.store.PaymentBookings().GetByID(ctx, conf.PaymentBookingID)
	if err != nil {
		return nil, err
	}
	if pay == nil {
		return nil, domain.NewNotFound("payment_booking")
	}
	booking, err := s.store.Bookings().GetByID(ctx, conf.BookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, domain.NewNotFound("booking")
	}

	now := s.clock.Now()
	decision := EvaluateRefund(RefundInput{
		Now:          now,
		Trigger:      trigger,
		Booking:      booking,
		Payment:      pay,
		Confirmation: conf,
	}, s.policy)

	if !decision.Eligible {
		s.logger.Debug("Refund not eligible",
			zap.Int64("confirmation_id", conf.ID),
			zap.String("trigger", string(trigger)),
			zap.String("reason", decision.Reason))
		return &RefundOutcome{Decision: decision}, nil
	}

	record := &model.RefundRequest{
		StudentID:        conf.StudentID,
		PaymentBookingID: pay.ID,
		BookingID:        booking.ID,
		ConfirmationID:   conf.ID,
		Amount:           pay.TotalAmount,
		Type:             decision.Type,
		Reason:           decision.Reason,
	}

	// 1. Возврат у провайдера
	metadata := map[string]string{
		"payment_booking_id": strconv.FormatInt(pay.ID, 10),
		"booking_id":         strconv.FormatInt(booking.ID, 10),
		"refund_type":        string(decision.Type),
	}
	refund, err := s.processor.CreateRefund(ctx, payment.RefundSpec{
		PaymentIntentID: pay.ExternalPaymentIntentID,
		Amount:          pay.TotalAmount,
		Reason:          refundReasonCustomer,
		Metadata:        metadata,
		IdempotencyKey:  fmt.Sprintf("refund-pb-%d", pay.ID),
	})
	if err != nil {
		record.Status = model.RefundStatusFailed
		record.Reason = err.Error()
		if logErr := s.store.Refunds().Create(ctx, record); logErr != nil {
			s.logger.Warn("Failed to record failed refund", zap.Int64("payment_booking_id", pay.ID), zap.Error(logErr))
		}
		s.logger.Error("Processor refund failed",
			zap.Int64("payment_booking_id", pay.ID),
			zap.String("refund_type", string(decision.Type)),
			zap.Error(err))
		return nil, processorError("create refund", err)
	}
	record.ExternalRefundID = &refund.ID

	// 2. Отзыв перевода учителю; ошибка не отменяет возврат
	transferStatus := pay.TransferStatus
	if decision.ReverseTransfer && pay.ExternalTransferID != nil {
		reversal, err := s.processor.ReverseTransfer(ctx, payment.ReversalSpec{
			TransferID:     *pay.ExternalTransferID,
			Amount:         pay.TeacherAmount,
			Metadata:       metadata,
			IdempotencyKey: fmt.Sprintf("reversal-pb-%d", pay.ID),
		})
		if err != nil {
			s.logger.Error("Transfer reversal failed, refund continues",
				zap.Int64("payment_booking_id", pay.ID),
				zap.String("transfer_id", *pay.ExternalTransferID),
				zap.Error(err))
		} else {
			record.ExternalReversalID = &reversal.ID
			transferStatus = model.TransferStatusReversed
		}
	}
	// Выплата ещё не ушла: после возврата она не состоится
	if transferStatus == model.TransferStatusPending || transferStatus == model.TransferStatusFailed {
		transferStatus = model.TransferStatusReversed
	}

	// 3. Состояние меняется атомарно
	record.Status = model.RefundStatusProcessed
	record.ProcessedAt = &now
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		ok, err := tx.PaymentBookings().MarkRefunded(ctx, pay.ID, transferStatus)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NewConflict("refund", ReasonAlreadyRefunded)
		}
		if err := tx.Bookings().UpdateStatus(ctx, booking.ID, model.BookingStatusCancelled); err != nil {
			return err
		}
		if err := tx.Refunds().Create(ctx, record); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return domain.NewConflict("refund", ReasonAlreadyRefunded)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Refund processed",
		zap.Int64("refund_id", record.ID),
		zap.Int64("payment_booking_id", pay.ID),
		zap.Int64("booking_id", booking.ID),
		zap.String("refund_type", string(decision.Type)),
		zap.String("trigger", string(trigger)),
		zap.Int64("amount", record.Amount),
		zap.String("transfer_status", string(transferStatus)))

	s.notifier.Notify(ctx, notify.Notification{
		UserID: conf.StudentID,
		Kind:   notify.KindRefundProcessed,
		Title:  "Reembolso procesado",
		Body: fmt.Sprintf("Reembolsamos %d.%02d %s de tu clase del %s.",
			pay.TotalAmount/100, pay.TotalAmount%100, pay.Currency,
			booking.StartTime.In(s.loc).Format("02/01/2006 15:04")),
	})

	return &RefundOutcome{Decision: decision, Refund: record}, nil
}

// RunBatch проходит по всем кандидатам на возврат; повторный запуск ничего не меняет
func (s *RefundService) RunBatch(ctx context.Context) (*BatchReport, error) {
	candidates, err := s.store.Confirmations().ListRefundCandidates(ctx, s.clock.Now())
	if err != nil {
		return nil, err
	}

	report := &BatchReport{Scanned: len(candidates)}
	for _, c := range candidates {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		outcome, err := s.Process(ctx, nil, c.ID, TriggerAdjudication)
		switch {
		case err != nil:
			report.Failed++
			s.logger.Warn("Batch refund failed",
				zap.Int64("confirmation_id", c.ID),
				zap.Error(err))
		case outcome.Decision.Eligible:
			report.Refunded++
		default:
			report.Skipped++
		}
	}

	if report.Refunded > 0 || report.Failed > 0 {
		s.logger.Info("Refund batch finished",
			zap.Int("scanned", report.Scanned),
			zap.Int("refunded", report.Refunded),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed))
	}
	return report, nil
}

func (s *RefundService) ListForStudent(ctx context.Context, studentID int64) ([]*model.RefundRequest, error) {
	return s.store.Refunds().ListByStudent(ctx, studentID)
}
