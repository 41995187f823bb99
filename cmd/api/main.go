package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/onlycation/internal/app"
	"github.com/Freeeeeet/onlycation/internal/clock"
	"github.com/Freeeeeet/onlycation/internal/config"
	"github.com/Freeeeeet/onlycation/internal/controller"
	"github.com/Freeeeeet/onlycation/internal/evidence"
	"github.com/Freeeeeet/onlycation/internal/notify"
	"github.com/Freeeeeet/onlycation/internal/payment"
	"github.com/Freeeeeet/onlycation/internal/repository"
	"github.com/Freeeeeet/onlycation/internal/service"
	"github.com/Freeeeeet/onlycation/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	notifyTimeout   = 15 * time.Second
	shutdownTimeout = 20 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger("onlycation-api", cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Service stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// 1. База данных
	pool, err := pgxpool.New(ctx, cfg.GetDBDSN())
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}
	logger.Info("Connected to database")

	// 2. Миграции
	if cfg.MigrationsEnabled {
		migrator, err := app.NewMigrator(pool, migrations.FS, logger)
		if err != nil {
			return err
		}
		if err := migrator.Run(ctx); err != nil {
			migrator.Close()
			return err
		}
		migrator.Close()
	}

	store := repository.NewPgStore(pool)

	// 3. Внешние зависимости
	vault, err := evidence.NewVault(cfg.EvidenceKey)
	if err != nil {
		return err
	}
	processor := payment.NewStripeProcessor(cfg.StripeSecretKey, cfg.StripeWebhookSecret, logger)

	channels := []notify.Channel{notify.NewInAppChannel(store.Notifications())}
	if cfg.EmailEnabled() {
		channels = append(channels, notify.NewEmailChannel(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}))
	}
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegramChannel(cfg.TelegramToken)
		if err != nil {
			logger.Warn("Telegram notifications disabled", zap.Error(err))
		} else {
			channels = append(channels, tg)
		}
	}
	dispatcher := notify.NewDispatcher(store.Users(), logger, notifyTimeout, channels...)

	// 4. Сервисы
	clk := clock.System{}
	loc := clock.BusinessZone(cfg.BusinessTZOffsetHours)

	availabilityService := service.NewAvailabilityService(store, clk, loc, logger)
	bookingService := service.NewBookingService(store, processor, dispatcher, clk, cfg.Policy, loc, service.CheckoutURLs{
		Success: cfg.CheckoutSuccessURL,
		Cancel:  cfg.CheckoutCancelURL,
	}, logger)
	confirmationService := service.NewConfirmationService(store, vault, dispatcher, clk, cfg.Policy, logger)
	rescheduleService := service.NewRescheduleService(store, dispatcher, clk, cfg.Policy, loc, logger)
	refundService := service.NewRefundService(store, processor, dispatcher, clk, cfg.Policy, loc, logger)
	payoutService := service.NewPayoutService(store, processor, dispatcher, clk, logger)

	// 5. HTTP
	handler := controller.NewHandler(controller.Services{
		Availability: availabilityService,
		Bookings:     bookingService,
		Confirmation: confirmationService,
		Reschedule:   rescheduleService,
		Refunds:      refundService,
		Wallet:       payoutService,
	}, clk, loc, controller.DefaultMaxEvidenceSize, logger)

	router, err := controller.NewRouter(controller.RouterConfig{
		Environment:        cfg.Environment,
		JWTSecret:          cfg.JWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}, handler, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 6. Фоновые задачи
	scheduler := app.NewScheduler(refundService, payoutService, rescheduleService, logger)
	scheduler.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	scheduler.Stop()
	dispatcher.Wait()

	logger.Info("Service stopped")
	return serveErr
}
