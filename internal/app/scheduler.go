package app

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/onlycation/internal/service"
	"go.uber.org/zap"
)

// Интервалы фоновых задач
const (
	RefundBatchInterval      = 5 * time.Minute
	PayoutReconcileInterval  = time.Hour
	RescheduleExpiryInterval = 10 * time.Minute
)

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	refundService     *service.RefundService
	payoutService     *service.PayoutService
	rescheduleService *service.RescheduleService
	logger            *zap.Logger
	stopChan          chan struct{}
	wg                sync.WaitGroup
}

// NewScheduler создаёт новый планировщик
func NewScheduler(
	refundService *service.RefundService,
	payoutService *service.PayoutService,
	rescheduleService *service.RescheduleService,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		refundService:     refundService,
		payoutService:     payoutService,
		rescheduleService: rescheduleService,
		logger:            logger,
		stopChan:          make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler")

	s.every(ctx, "refund adjudication", RefundBatchInterval, s.runRefundBatch)
	s.every(ctx, "payout reconciliation", PayoutReconcileInterval, s.runPayoutReconcile)
	s.every(ctx, "reschedule expiry", RescheduleExpiryInterval, s.runRescheduleExpiry)
}

// Stop останавливает фоновые задачи и ждёт завершения текущих запусков
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background scheduler")
	close(s.stopChan)
	s.wg.Wait()
}

// every запускает task сразу и затем по тикеру
func (s *Scheduler) every(ctx context.Context, name string, interval time.Duration, task func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// Первый запуск сразу при старте
		task(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				task(ctx)
			case <-s.stopChan:
				s.logger.Info("Background task stopped", zap.String("task", name))
				return
			case <-ctx.Done():
				s.logger.Info("Background task cancelled", zap.String("task", name))
				return
			}
		}
	}()
}

func (s *Scheduler) runRefundBatch(ctx context.Context) {
	report, err := s.refundService.RunBatch(ctx)
	if err != nil {
		s.logger.Error("Refund batch failed", zap.Error(err))
		return
	}
	s.logger.Debug("Refund batch completed",
		zap.Int("scanned", report.Scanned),
		zap.Int("refunded", report.Refunded))
}

func (s *Scheduler) runPayoutReconcile(ctx context.Context) {
	report, err := s.payoutService.Reconcile(ctx)
	if err != nil {
		s.logger.Error("Payout reconciliation failed", zap.Error(err))
		return
	}
	s.logger.Debug("Payout reconciliation completed",
		zap.Int("due", report.Due),
		zap.Int("transferred", report.Transferred))
}

func (s *Scheduler) runRescheduleExpiry(ctx context.Context) {
	if _, err := s.rescheduleService.ExpireStale(ctx); err != nil {
		s.logger.Error("Failed to expire reschedule requests", zap.Error(err))
	}
}
