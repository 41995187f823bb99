package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/Freeeeeet/onlycation/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

const paymentBookingSelect = `
	SELECT pb.id, pb.booking_id, pb.student_id, pb.price_id, pb.currency, pb.total_amount,
	       pb.commission_pct, pb.commission_amount, pb.teacher_amount, pb.platform_amount,
	       pb.transfer_date, pb.transfer_status, pb.teacher_connected_account_id,
	       pb.external_payment_intent_id, pb.external_checkout_session_id, pb.external_transfer_id,
	       pb.refund_state, pb.created_at, pb.updated_at
	FROM payment_bookings pb
`

type PaymentBookingRepository struct {
	db base.DB
}

func NewPaymentBookingRepository(db base.DB) *PaymentBookingRepository {
	return &PaymentBookingRepository{db: db}
}

func scanPaymentBooking(row pgx.Row) (*model.PaymentBooking, error) {
	var p model.PaymentBooking
	err := row.Scan(
		&p.ID,
		&p.BookingID,
		&p.StudentID,
		&p.PriceID,
		&p.Currency,
		&p.TotalAmount,
		&p.CommissionPct,
		&p.CommissionAmount,
		&p.TeacherAmount,
		&p.PlatformAmount,
		&p.TransferDate,
		&p.TransferStatus,
		&p.TeacherConnectedAccountID,
		&p.ExternalPaymentIntentID,
		&p.ExternalCheckoutSessionID,
		&p.ExternalTransferID,
		&p.RefundState,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentBookingRepository) getOne(ctx context.Context, op, where string, arg any) (*model.PaymentBooking, error) {
	p, err := scanPaymentBooking(r.db.QueryRow(ctx, paymentBookingSelect+where, arg))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// Create фиксирует платёж; external_payment_intent_id уникален
func (r *PaymentBookingRepository) Create(ctx context.Context, p *model.PaymentBooking) error {
	query := `
		INSERT INTO payment_bookings (
			booking_id, student_id, price_id, currency, total_amount, commission_pct,
			commission_amount, teacher_amount, platform_amount, transfer_date, transfer_status,
			teacher_connected_account_id, external_payment_intent_id, external_checkout_session_id,
			refund_state
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		p.BookingID,
		p.StudentID,
		p.PriceID,
		p.Currency,
		p.TotalAmount,
		p.CommissionPct,
		p.CommissionAmount,
		p.TeacherAmount,
		p.PlatformAmount,
		p.TransferDate,
		p.TransferStatus,
		p.TeacherConnectedAccountID,
		p.ExternalPaymentIntentID,
		p.ExternalCheckoutSessionID,
		p.RefundState,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		return wrapInsert("create payment booking", err)
	}
	return nil
}

func (r *PaymentBookingRepository) GetByID(ctx context.Context, id int64) (*model.PaymentBooking, error) {
	return r.getOne(ctx, "get payment booking by id", ` WHERE pb.id = $1`, id)
}

func (r *PaymentBookingRepository) GetByBookingID(ctx context.Context, bookingID int64) (*model.PaymentBooking, error) {
	return r.getOne(ctx, "get payment booking by booking", ` WHERE pb.booking_id = $1`, bookingID)
}

func (r *PaymentBookingRepository) GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*model.PaymentBooking, error) {
	return r.getOne(ctx, "get payment booking by intent", ` WHERE pb.external_payment_intent_id = $1`, paymentIntentID)
}

// MarkRefunded переводит refund_state none → processed; false если уже возвращено
func (r *PaymentBookingRepository) MarkRefunded(ctx context.Context, id int64, transferStatus model.TransferStatus) (bool, error) {
	query := `
		UPDATE payment_bookings
		SET refund_state = 'processed', transfer_status = $2, updated_at = NOW()
		WHERE id = $1 AND refund_state = 'none'
	`

	n, err := base.ExecAffected(ctx, r.db, query, id, transferStatus)
	if err != nil {
		return false, fmt.Errorf("mark payment refunded: %w", err)
	}
	return n == 1, nil
}

// ListDueForPayout платежи, по которым пора закрыть выплату учителю
func (r *PaymentBookingRepository) ListDueForPayout(ctx context.Context, now time.Time) ([]*model.PaymentBooking, error) {
	query := paymentBookingSelect + `
		JOIN bookings b ON b.id = pb.booking_id
		WHERE pb.transfer_status = 'pending'
		  AND pb.refund_state = 'none'
		  AND pb.transfer_date <= $1
		  AND b.status = 'completed'
		ORDER BY pb.transfer_date
	`

	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list due payouts: %w", err)
	}
	defer rows.Close()

	var result []*model.PaymentBooking
	for rows.Next() {
		p, err := scanPaymentBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment booking: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// MarkTransferred pending → transferred с ID перевода
func (r *PaymentBookingRepository) MarkTransferred(ctx context.Context, id int64, transferID string) (bool, error) {
	query := `
		UPDATE payment_bookings
		SET transfer_status = 'transferred', external_transfer_id = $2, updated_at = NOW()
		WHERE id = $1 AND transfer_status = 'pending' AND refund_state = 'none'
	`

	n, err := base.ExecAffected(ctx, r.db, query, id, transferID)
	if err != nil {
		return false, fmt.Errorf("mark transferred: %w", err)
	}
	return n == 1, nil
}

// MarkTransferFailed pending → failed после исчерпания повторов
func (r *PaymentBookingRepository) MarkTransferFailed(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE payment_bookings
		SET transfer_status = 'failed', updated_at = NOW()
		WHERE id = $1 AND transfer_status = 'pending'
	`

	n, err := base.ExecAffected(ctx, r.db, query, id)
	if err != nil {
		return false, fmt.Errorf("mark transfer failed: %w", err)
	}
	return n == 1, nil
}
