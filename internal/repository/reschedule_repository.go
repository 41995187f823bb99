package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/Freeeeeet/onlycation/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

const rescheduleSelect = `
	SELECT id, booking_id, teacher_id, student_id,
	       current_availability_id, current_start, current_end,
	       proposed_availability_id, proposed_start, proposed_end,
	       reason, student_message, note, status, created_at, expires_at, responded_at
	FROM reschedule_requests
`

type RescheduleRepository struct {
	db base.DB
}

func NewRescheduleRepository(db base.DB) *RescheduleRepository {
	return &RescheduleRepository{db: db}
}

func scanReschedule(row pgx.Row) (*model.RescheduleRequest, error) {
	var r model.RescheduleRequest
	err := row.Scan(
		&r.ID,
		&r.BookingID,
		&r.TeacherID,
		&r.StudentID,
		&r.CurrentAvailabilityID,
		&r.CurrentStart,
		&r.CurrentEnd,
		&r.ProposedAvailabilityID,
		&r.ProposedStart,
		&r.ProposedEnd,
		&r.Reason,
		&r.StudentMessage,
		&r.Note,
		&r.Status,
		&r.CreatedAt,
		&r.ExpiresAt,
		&r.RespondedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Create сохраняет предложение о переносе; на бронирование допускается один pending
func (r *RescheduleRepository) Create(ctx context.Context, req *model.RescheduleRequest) error {
	query := `
		INSERT INTO reschedule_requests (
			booking_id, teacher_id, student_id,
			current_availability_id, current_start, current_end,
			proposed_availability_id, proposed_start, proposed_end,
			reason, status, created_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`

	err := r.db.QueryRow(
		ctx, query,
		req.BookingID,
		req.TeacherID,
		req.StudentID,
		req.CurrentAvailabilityID,
		req.CurrentStart,
		req.CurrentEnd,
		req.ProposedAvailabilityID,
		req.ProposedStart,
		req.ProposedEnd,
		req.Reason,
		req.Status,
		req.CreatedAt,
		req.ExpiresAt,
	).Scan(&req.ID)

	if err != nil {
		return wrapInsert("create reschedule request", err)
	}
	return nil
}

func (r *RescheduleRepository) GetByID(ctx context.Context, id int64) (*model.RescheduleRequest, error) {
	req, err := scanReschedule(r.db.QueryRow(ctx, rescheduleSelect+` WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get reschedule request by id: %w", err)
	}
	return req, nil
}

// HasPending есть ли ожидающий ответа запрос по бронированию
func (r *RescheduleRepository) HasPending(ctx context.Context, bookingID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reschedule_requests WHERE booking_id = $1 AND status = 'pending')`,
		bookingID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending reschedule: %w", err)
	}
	return exists, nil
}

// Resolve закрывает pending-запрос указанным статусом; false если запрос уже не pending
func (r *RescheduleRepository) Resolve(ctx context.Context, id int64, res model.RescheduleResolution) (bool, error) {
	query := `
		UPDATE reschedule_requests
		SET status = $2,
		    student_message = COALESCE($3, student_message),
		    note = COALESCE($4, note),
		    responded_at = $5
		WHERE id = $1 AND status = 'pending'
	`

	n, err := base.ExecAffected(ctx, r.db, query, id, res.Status, res.Message, res.Note, res.At)
	if err != nil {
		return false, fmt.Errorf("resolve reschedule request: %w", err)
	}
	return n == 1, nil
}

// ExpireForBooking помечает просроченные pending-запросы бронирования как expired
func (r *RescheduleRepository) ExpireForBooking(ctx context.Context, bookingID int64, now time.Time) (int64, error) {
	query := `
		UPDATE reschedule_requests
		SET status = 'expired'
		WHERE booking_id = $1 AND status = 'pending' AND expires_at < $2
	`

	n, err := base.ExecAffected(ctx, r.db, query, bookingID, now)
	if err != nil {
		return 0, fmt.Errorf("expire booking reschedules: %w", err)
	}
	return n, nil
}

// ExpireStale фоновая зачистка всех просроченных запросов
func (r *RescheduleRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	n, err := base.ExecAffected(ctx, r.db,
		`UPDATE reschedule_requests SET status = 'expired' WHERE status = 'pending' AND expires_at < $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("expire stale reschedules: %w", err)
	}
	return n, nil
}

// ListPendingForUser pending-запросы, где пользователь учитель или студент
func (r *RescheduleRepository) ListPendingForUser(ctx context.Context, userID int64) ([]*model.RescheduleRequest, error) {
	query := rescheduleSelect + `
		WHERE (teacher_id = $1 OR student_id = $1) AND status = 'pending'
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending reschedules: %w", err)
	}
	defer rows.Close()

	var result []*model.RescheduleRequest
	for rows.Next() {
		req, err := scanReschedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reschedule request: %w", err)
		}
		result = append(result, req)
	}
	return result, rows.Err()
}
