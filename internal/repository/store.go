package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/Freeeeeet/onlycation/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicate вставка нарушила уникальное ограничение
var ErrDuplicate = errors.New("duplicate record")

type Users interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	LockForUpdate(ctx context.Context, id int64) error
}

type Wallets interface {
	GetByTeacherID(ctx context.Context, teacherID int64) (*model.TeacherWallet, error)
	UpdateStatusByAccount(ctx context.Context, accountID string, status model.WalletStatus) (int64, error)
}

type Plans interface {
	GetActiveForTeacher(ctx context.Context, teacherID int64, at time.Time) (*model.SubscriptionPlan, error)
}

type Availabilities interface {
	Create(ctx context.Context, a *model.Availability) error
	GetByID(ctx context.Context, id int64) (*model.Availability, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*model.Availability, error)
	ListByTeacher(ctx context.Context, teacherID int64) ([]*model.Availability, error)
	Update(ctx context.Context, a *model.Availability) error
	Deactivate(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

type Prices interface {
	GetByID(ctx context.Context, id int64) (*model.Price, error)
}

type Bookings interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	SetRoomLink(ctx context.Context, id int64, link string) error
	UpdateStatus(ctx context.Context, id int64, status model.BookingStatus) error
	UpdateSlot(ctx context.Context, id, availabilityID int64, start, end time.Time) error
	HasOverlapOnAvailability(ctx context.Context, availabilityID int64, start, end time.Time, excludeID int64) (bool, error)
	HasOverlapForStudent(ctx context.Context, studentID int64, start, end time.Time, excludeID int64) (bool, error)
	CountByAvailability(ctx context.Context, availabilityID int64) (int, error)
	CountFutureByAvailability(ctx context.Context, availabilityID int64, now time.Time) (int, error)
	ListActiveForTeacherBetween(ctx context.Context, teacherID int64, from, to time.Time) ([]*model.Booking, error)
	ListByStudent(ctx context.Context, studentID int64) ([]*model.Booking, error)
	ListByTeacher(ctx context.Context, teacherID int64) ([]*model.Booking, error)
}

type PaymentBookings interface {
	Create(ctx context.Context, p *model.PaymentBooking) error
	GetByID(ctx context.Context, id int64) (*model.PaymentBooking, error)
	GetByBookingID(ctx context.Context, bookingID int64) (*model.PaymentBooking, error)
	GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*model.PaymentBooking, error)
	MarkRefunded(ctx context.Context, id int64, transferStatus model.TransferStatus) (bool, error)
	ListDueForPayout(ctx context.Context, now time.Time) ([]*model.PaymentBooking, error)
	MarkTransferred(ctx context.Context, id int64, transferID string) (bool, error)
	MarkTransferFailed(ctx context.Context, id int64) (bool, error)
}

type Confirmations interface {
	Create(ctx context.Context, c *model.Confirmation) error
	GetByID(ctx context.Context, id int64) (*model.Confirmation, error)
	GetByBookingID(ctx context.Context, bookingID int64) (*model.Confirmation, error)
	SetMark(ctx context.Context, id int64, mark model.ConfirmationMark) (bool, error)
	ListRefundCandidates(ctx context.Context, now time.Time) ([]*model.Confirmation, error)
}

type Reschedules interface {
	Create(ctx context.Context, r *model.RescheduleRequest) error
	GetByID(ctx context.Context, id int64) (*model.RescheduleRequest, error)
	HasPending(ctx context.Context, bookingID int64) (bool, error)
	Resolve(ctx context.Context, id int64, res model.RescheduleResolution) (bool, error)
	ExpireForBooking(ctx context.Context, bookingID int64, now time.Time) (int64, error)
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
	ListPendingForUser(ctx context.Context, userID int64) ([]*model.RescheduleRequest, error)
}

type Refunds interface {
	Create(ctx context.Context, r *model.RefundRequest) error
	ListByStudent(ctx context.Context, studentID int64) ([]*model.RefundRequest, error)
}

type Evidence interface {
	Create(ctx context.Context, f *model.EvidenceFile) error
}

type PaymentEvents interface {
	Record(ctx context.Context, e *model.PaymentEvent) (bool, error)
	MarkDone(ctx context.Context, eventID, status string, errMsg *string, at time.Time) error
}

type Notifications interface {
	Create(ctx context.Context, n *model.Notification) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Notification, error)
}

// Store единая точка доступа к репозиториям с поддержкой транзакций
type Store interface {
	Users() Users
	Wallets() Wallets
	Plans() Plans
	Availabilities() Availabilities
	Prices() Prices
	Bookings() Bookings
	PaymentBookings() PaymentBookings
	Confirmations() Confirmations
	Reschedules() Reschedules
	Refunds() Refunds
	Evidence() Evidence
	PaymentEvents() PaymentEvents
	Notifications() Notifications

	// InTx выполняет fn в одной транзакции; ошибка из fn откатывает всё
	InTx(ctx context.Context, fn func(tx Store) error) error
}

type PgStore struct {
	pool *pgxpool.Pool // nil внутри транзакции
	db   base.DB
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool, db: pool}
}

func (s *PgStore) Users() Users                     { return NewUserRepository(s.db) }
func (s *PgStore) Wallets() Wallets                 { return NewWalletRepository(s.db) }
func (s *PgStore) Plans() Plans                     { return NewPlanRepository(s.db) }
func (s *PgStore) Availabilities() Availabilities   { return NewAvailabilityRepository(s.db) }
func (s *PgStore) Prices() Prices                   { return NewPriceRepository(s.db) }
func (s *PgStore) Bookings() Bookings               { return NewBookingRepository(s.db) }
func (s *PgStore) PaymentBookings() PaymentBookings { return NewPaymentBookingRepository(s.db) }
func (s *PgStore) Confirmations() Confirmations     { return NewConfirmationRepository(s.db) }
func (s *PgStore) Reschedules() Reschedules         { return NewRescheduleRepository(s.db) }
func (s *PgStore) Refunds() Refunds                 { return NewRefundRepository(s.db) }
func (s *PgStore) Evidence() Evidence               { return NewEvidenceRepository(s.db) }
func (s *PgStore) PaymentEvents() PaymentEvents     { return NewPaymentEventRepository(s.db) }
func (s *PgStore) Notifications() Notifications     { return NewNotificationRepository(s.db) }

// InTx открывает READ COMMITTED транзакцию; сериализация достигается SELECT ... FOR UPDATE,
// поэтому каждый запрос после ожидания блокировки видит свежие коммиты
func (s *PgStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if s.pool == nil {
		return fn(s)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&PgStore{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func wrapInsert(op string, err error) error {
	if base.IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}
