package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/Freeeeeet/onlycation/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

const confirmationSelect = `
	SELECT c.id, c.payment_booking_id, c.booking_id, c.teacher_id, c.student_id,
	       c.teacher_confirmed, c.student_confirmed, c.teacher_evidence_ref, c.student_evidence_ref,
	       c.teacher_description, c.student_description, c.teacher_confirmed_at, c.student_confirmed_at,
	       c.created_at
	FROM confirmations c
`

type ConfirmationRepository struct {
	db base.DB
}

func NewConfirmationRepository(db base.DB) *ConfirmationRepository {
	return &ConfirmationRepository{db: db}
}

func scanConfirmation(row pgx.Row) (*model.Confirmation, error) {
	var (
		c                model.Confirmation
		teacherConfirmed *bool
		studentConfirmed *bool
	)
	err := row.Scan(
		&c.ID,
		&c.PaymentBookingID,
		&c.BookingID,
		&c.TeacherID,
		&c.StudentID,
		&teacherConfirmed,
		&studentConfirmed,
		&c.TeacherEvidenceRef,
		&c.StudentEvidenceRef,
		&c.TeacherDescription,
		&c.StudentDescription,
		&c.TeacherConfirmedAt,
		&c.StudentConfirmedAt,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.TeacherConfirmed = model.AttendanceFromNullable(teacherConfirmed)
	c.StudentConfirmed = model.AttendanceFromNullable(studentConfirmed)
	return &c, nil
}

// Create создаёт пустое подтверждение (обе стороны не заданы)
func (r *ConfirmationRepository) Create(ctx context.Context, c *model.Confirmation) error {
	query := `
		INSERT INTO confirmations (payment_booking_id, booking_id, teacher_id, student_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query, c.PaymentBookingID, c.BookingID, c.TeacherID, c.StudentID).
		Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return wrapInsert("create confirmation", err)
	}
	return nil
}

func (r *ConfirmationRepository) GetByID(ctx context.Context, id int64) (*model.Confirmation, error) {
	c, err := scanConfirmation(r.db.QueryRow(ctx, confirmationSelect+` WHERE c.id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get confirmation by id: %w", err)
	}
	return c, nil
}

func (r *ConfirmationRepository) GetByBookingID(ctx context.Context, bookingID int64) (*model.Confirmation, error) {
	c, err := scanConfirmation(r.db.QueryRow(ctx, confirmationSelect+` WHERE c.booking_id = $1`, bookingID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get confirmation by booking: %w", err)
	}
	return c, nil
}

// SetMark записывает отметку стороны только если она ещё не задана; false если уже была
func (r *ConfirmationRepository) SetMark(ctx context.Context, id int64, mark model.ConfirmationMark) (bool, error) {
	var query string
	switch mark.Party {
	case model.PartyTeacher:
		query = `
			UPDATE confirmations
			SET teacher_confirmed = $2, teacher_description = $3, teacher_evidence_ref = $4, teacher_confirmed_at = $5
			WHERE id = $1 AND teacher_confirmed IS NULL
		`
	case model.PartyStudent:
		query = `
			UPDATE confirmations
			SET student_confirmed = $2, student_description = $3, student_evidence_ref = $4, student_confirmed_at = $5
			WHERE id = $1 AND student_confirmed IS NULL
		`
	default:
		return false, fmt.Errorf("unknown party %q", mark.Party)
	}

	n, err := base.ExecAffected(ctx, r.db, query, id, mark.Attendance.Nullable(), mark.Description, mark.EvidenceRef, mark.At)
	if err != nil {
		return false, fmt.Errorf("set %s confirmation: %w", mark.Party, err)
	}
	return n == 1, nil
}

// ListRefundCandidates подтверждения завершённых по времени занятий без возврата и без подтверждения учителя
func (r *ConfirmationRepository) ListRefundCandidates(ctx context.Context, now time.Time) ([]*model.Confirmation, error) {
	query := confirmationSelect + `
		JOIN bookings b ON b.id = c.booking_id
		JOIN payment_bookings pb ON pb.id = c.payment_booking_id
		WHERE b.end_time <= $1
		  AND b.status <> 'cancelled'
		  AND pb.refund_state = 'none'
		  AND (c.teacher_confirmed IS NULL OR c.teacher_confirmed = FALSE)
		  AND (c.student_confirmed IS NULL OR c.student_confirmed = TRUE)
		ORDER BY b.end_time
	`

	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list refund candidates: %w", err)
	}
	defer rows.Close()

	var result []*model.Confirmation
	for rows.Next() {
		c, err := scanConfirmation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan confirmation: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
