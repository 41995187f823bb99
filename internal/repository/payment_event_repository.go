package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/Freeeeeet/onlycation/internal/repository/base"
)

type PaymentEventRepository struct {
	db base.DB
}

func NewPaymentEventRepository(db base.DB) *PaymentEventRepository {
	return &PaymentEventRepository{db: db}
}

// Record пишет событие один раз; false если event id уже встречался.
// Событие со статусом failed можно принять повторно
func (r *PaymentEventRepository) Record(ctx context.Context, e *model.PaymentEvent) (bool, error) {
	query := `
		INSERT INTO payment_events (event_id, type, payload, status, received_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO UPDATE
		SET status = EXCLUDED.status, error = NULL, received_at = EXCLUDED.received_at
		WHERE payment_events.status = 'failed'
	`

	n, err := base.ExecAffected(ctx, r.db, query, e.EventID, e.Type, e.Payload, e.Status, e.ReceivedAt)
	if err != nil {
		return false, fmt.Errorf("record payment event: %w", err)
	}
	return n == 1, nil
}

// MarkDone фиксирует результат обработки события
func (r *PaymentEventRepository) MarkDone(ctx context.Context, eventID, status string, errMsg *string, at time.Time) error {
	query := `
		UPDATE payment_events
		SET status = $2, error = $3, processed_at = $4
		WHERE event_id = $1
	`

	if _, err := r.db.Exec(ctx, query, eventID, status, errMsg, at); err != nil {
		return fmt.Errorf("mark payment event: %w", err)
	}
	return nil
}
