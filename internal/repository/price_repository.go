package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/Freeeeeet/onlycation/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

type PriceRepository struct {
	db base.DB
}

func NewPriceRepository(db base.DB) *PriceRepository {
	return &PriceRepository{db: db}
}

// GetByID получает тариф по ID вместе с названием модальности
func (r *PriceRepository) GetByID(ctx context.Context, id int64) (*model.Price, error) {
	query := `
		SELECT p.id, p.teacher_id, p.preference_id, cp.name, p.first_hour_price, p.extra_hour_price, p.is_active
		FROM prices p
		JOIN class_preferences cp ON cp.id = p.preference_id
		WHERE p.id = $1
	`

	var price model.Price
	err := r.db.QueryRow(ctx, query, id).Scan(
		&price.ID,
		&price.TeacherID,
		&price.PreferenceID,
		&price.PreferenceName,
		&price.FirstHourPrice,
		&price.ExtraHourPrice,
		&price.IsActive,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get price by id: %w", err)
	}

	return &price, nil
}
