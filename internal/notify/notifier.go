package notify

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/onlycation/internal/model"
	"go.uber.org/zap"
)

type Kind string

const (
	KindBookingConfirmed   Kind = "booking_confirmed"
	KindPaymentConfirmed   Kind = "payment_confirmed"
	KindNewBooking         Kind = "new_booking"
	KindRescheduleProposed Kind = "reschedule_proposed"
	KindRescheduleAnswered Kind = "reschedule_answered"
	KindBookingRescheduled Kind = "booking_rescheduled"
	KindRefundProcessed    Kind = "refund_processed"
	KindClassCompleted     Kind = "class_completed"
	KindPayoutTransferred  Kind = "payout_transferred"
)

type Notification struct {
	UserID int64
	Kind   Kind
	Title  string
	Body   string
}

// Notifier отправка уведомлений; ошибки никогда не возвращаются вызывающему
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Channel один канал доставки
type Channel interface {
	Name() string
	Send(ctx context.Context, user *model.User, n Notification) error
}

// UserLookup источник получателей
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// Dispatcher рассылает уведомление по всем каналам в отдельных горутинах с таймаутом на канал
type Dispatcher struct {
	users    UserLookup
	channels []Channel
	timeout  time.Duration
	logger   *zap.Logger
	wg       sync.WaitGroup
}

func NewDispatcher(users UserLookup, logger *zap.Logger, timeout time.Duration, channels ...Channel) *Dispatcher {
	return &Dispatcher{
		users:    users,
		channels: channels,
		timeout:  timeout,
		logger:   logger,
	}
}

func (d *Dispatcher) Notify(ctx context.Context, n Notification) {
	// уведомление не должно умирать вместе с HTTP-запросом
	base := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		lookupCtx, cancel := context.WithTimeout(base, d.timeout)
		user, err := d.users.GetByID(lookupCtx, n.UserID)
		cancel()
		if err != nil || user == nil {
			d.logger.Warn("Notification recipient not found",
				zap.Int64("user_id", n.UserID),
				zap.String("kind", string(n.Kind)),
				zap.Error(err))
			return
		}

		for _, ch := range d.channels {
			d.wg.Add(1)
			go func(ch Channel) {
				defer d.wg.Done()

				sendCtx, cancel := context.WithTimeout(base, d.timeout)
				defer cancel()

				if err := ch.Send(sendCtx, user, n); err != nil {
					d.logger.Warn("Failed to deliver notification",
						zap.String("channel", ch.Name()),
						zap.Int64("user_id", n.UserID),
						zap.String("kind", string(n.Kind)),
						zap.Error(err))
				}
			}(ch)
		}
	}()
}

// Wait дожидается отправки всех уведомлений (graceful shutdown и тесты)
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Nop ничего не отправляет
type Nop struct{}

func (Nop) Notify(context.Context, Notification) {}
