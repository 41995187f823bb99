package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/onlycation/internal/clock"
	"github.com/Freeeeeet/onlycation/internal/domain"
	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/Freeeeeet/onlycation/internal/notify"
	"github.com/Freeeeeet/onlycation/internal/payment"
	"github.com/Freeeeeet/onlycation/internal/repository"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const payoutMaxRetries = 3

type PayoutService struct {
	store     repository.Store
	processor payment.Processor
	notifier  notify.Notifier
	clock     clock.Clock
	retryBase time.Duration
	logger    *zap.Logger
}

func NewPayoutService(
	store repository.Store,
	processor payment.Processor,
	notifier notify.Notifier,
	clk clock.Clock,
	logger *zap.Logger,
) *PayoutService {
	return &PayoutService{
		store:     store,
		processor: processor,
		notifier:  notifier,
		clock:     clk,
		retryBase: time.Second,
		logger:    logger,
	}
}

// PayoutReport итог одной сверки выплат
type PayoutReport struct {
	Due         int `json:"due"`
	Transferred int `json:"transferred"`
	Waiting     int `json:"waiting"`
	Failed      int `json:"failed"`
}

// Reconcile переводит созревшие выплаты pending → transferred; повторный запуск безопасен
func (s *PayoutService) Reconcile(ctx context.Context) (*PayoutReport, error) {
	due, err := s.store.PaymentBookings().ListDueForPayout(ctx, s.clock.Now())
	if err != nil {
		return nil, err
	}

	report := &PayoutReport{Due: len(due)}
	for _, pb := range due {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		switch err := s.reconcileOne(ctx, pb); {
		case err == nil:
			report.Transferred++
		case errors.Is(err, payment.ErrNoTransfer):
			report.Waiting++
		default:
			report.Failed++
		}
	}

	if report.Due > 0 {
		s.logger.Info("Payout reconciliation finished",
			zap.Int("due", report.Due),
			zap.Int("transferred", report.Transferred),
			zap.Int("waiting", report.Waiting),
			zap.Int("failed", report.Failed))
	}
	return report, nil
}

func (s *PayoutService) reconcileOne(ctx context.Context, pb *model.PaymentBooking) error {
	var transferID string
	backoff := retry.WithMaxRetries(payoutMaxRetries, retry.NewExponential(s.retryBase))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		id, err := s.processor.RetrievePaymentTransfer(ctx, pb.ExternalPaymentIntentID)
		if err != nil {
			if errors.Is(err, payment.ErrNoTransfer) {
				return err
			}
			return retry.RetryableError(err)
		}
		transferID = id
		return nil
	})

	if errors.Is(err, payment.ErrNoTransfer) {
		// Провайдер ещё не создал перевод; попробуем в следующий проход
		s.logger.Warn("Payout has no transfer yet",
			zap.Int64("payment_booking_id", pb.ID),
			zap.String("payment_intent", pb.ExternalPaymentIntentID))
		return err
	}
	if err != nil {
		if _, markErr := s.store.PaymentBookings().MarkTransferFailed(ctx, pb.ID); markErr != nil {
			s.logger.Error("Failed to mark payout failed", zap.Int64("payment_booking_id", pb.ID), zap.Error(markErr))
		}
		s.logger.Error("Payout reconciliation failed",
			zap.Int64("payment_booking_id", pb.ID),
			zap.Int("retries", payoutMaxRetries),
			zap.Error(err))
		return err
	}

	ok, err := s.store.PaymentBookings().MarkTransferred(ctx, pb.ID, transferID)
	if err != nil {
		return err
	}
	if !ok {
		// Платёж успели вернуть или уже сверили
		return nil
	}

	s.logger.Info("Payout transferred",
		zap.Int64("payment_booking_id", pb.ID),
		zap.Int64("booking_id", pb.BookingID),
		zap.String("transfer_id", transferID),
		zap.Int64("teacher_amount", pb.TeacherAmount))

	booking, err := s.store.Bookings().GetByID(ctx, pb.BookingID)
	if err != nil || booking == nil {
		s.logger.Warn("Payout booking lookup failed", zap.Int64("booking_id", pb.BookingID), zap.Error(err))
		return nil
	}
	s.notifier.Notify(ctx, notify.Notification{
		UserID: booking.TeacherID,
		Kind:   notify.KindPayoutTransferred,
		Title:  "Pago liberado",
		Body: fmt.Sprintf("Liberamos %d.%02d %s por tu clase #%d.",
			pb.TeacherAmount/100, pb.TeacherAmount%100, pb.Currency, booking.ID),
	})
	return nil
}

// Balance баланс подключённого аккаунта учителя
func (s *PayoutService) Balance(ctx context.Context, actor model.Actor) (*payment.Balance, error) {
	if !actor.IsTeacher() {
		return nil, domain.NewForbidden("only teachers have a wallet")
	}
	wallet, err := s.store.Wallets().GetByTeacherID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if wallet == nil || wallet.StripeAccountID == "" {
		return nil, domain.NewNotFound("wallet")
	}

	balance, err := s.processor.RetrieveBalance(ctx, wallet.StripeAccountID)
	if err != nil {
		return nil, processorError("retrieve balance", err)
	}
	return balance, nil
}
