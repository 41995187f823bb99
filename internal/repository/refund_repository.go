package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/Freeeeeet/onlycation/internal/repository/base"
)

type RefundRepository struct {
	db base.DB
}

func NewRefundRepository(db base.DB) *RefundRepository {
	return &RefundRepository{db: db}
}

// Create добавляет запись в журнал возвратов; второй processed на тот же платёж отклоняется индексом
func (r *RefundRepository) Create(ctx context.Context, req *model.RefundRequest) error {
	query := `
		INSERT INTO refund_requests (
			student_id, payment_booking_id, booking_id, confirmation_id, amount, type, status,
			external_refund_id, external_reversal_id, reason, processed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		req.StudentID,
		req.PaymentBookingID,
		req.BookingID,
		req.ConfirmationID,
		req.Amount,
		req.Type,
		req.Status,
		req.ExternalRefundID,
		req.ExternalReversalID,
		req.Reason,
		req.ProcessedAt,
	).Scan(&req.ID, &req.CreatedAt)

	if err != nil {
		return wrapInsert("create refund request", err)
	}
	return nil
}

// ListByStudent история возвратов студента
func (r *RefundRepository) ListByStudent(ctx context.Context, studentID int64) ([]*model.RefundRequest, error) {
	query := `
		SELECT id, student_id, payment_booking_id, booking_id, confirmation_id, amount, type, status,
		       external_refund_id, external_reversal_id, reason, processed_at, created_at
		FROM refund_requests
		WHERE student_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("list refunds by student: %w", err)
	}
	defer rows.Close()

	var result []*model.RefundRequest
	for rows.Next() {
		var req model.RefundRequest
		err := rows.Scan(
			&req.ID,
			&req.StudentID,
			&req.PaymentBookingID,
			&req.BookingID,
			&req.ConfirmationID,
			&req.Amount,
			&req.Type,
			&req.Status,
			&req.ExternalRefundID,
			&req.ExternalReversalID,
			&req.Reason,
			&req.ProcessedAt,
			&req.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan refund request: %w", err)
		}
		result = append(result, &req)
	}
	return result, rows.Err()
}
