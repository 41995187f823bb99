package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/Freeeeeet/onlycation/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

const availabilityColumns = `id, teacher_id, COALESCE(preference_id, 0), day_of_week, start_hour, end_hour, is_active, created_at, updated_at`

type AvailabilityRepository struct {
	db base.DB
}

func NewAvailabilityRepository(db base.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

func scanAvailability(row pgx.Row) (*model.Availability, error) {
	var a model.Availability
	err := row.Scan(
		&a.ID,
		&a.TeacherID,
		&a.PreferenceID,
		&a.DayOfWeek,
		&a.StartHour,
		&a.EndHour,
		&a.IsActive,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create создаёт окно доступности
func (r *AvailabilityRepository) Create(ctx context.Context, a *model.Availability) error {
	query := `
		INSERT INTO availabilities (teacher_id, preference_id, day_of_week, start_hour, end_hour, is_active)
		VALUES ($1, NULLIF($2, 0), $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		a.TeacherID,
		a.PreferenceID,
		a.DayOfWeek,
		a.StartHour,
		a.EndHour,
		a.IsActive,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create availability: %w", err)
	}

	return nil
}

// GetByID получает окно по ID
func (r *AvailabilityRepository) GetByID(ctx context.Context, id int64) (*model.Availability, error) {
	query := `SELECT ` + availabilityColumns + ` FROM availabilities WHERE id = $1`

	a, err := scanAvailability(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get availability by id: %w", err)
	}
	return a, nil
}

// GetByIDForUpdate блокирует строку окна до конца транзакции
func (r *AvailabilityRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.Availability, error) {
	query := `SELECT ` + availabilityColumns + ` FROM availabilities WHERE id = $1 FOR UPDATE`

	a, err := scanAvailability(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("lock availability: %w", err)
	}
	return a, nil
}

// ListByTeacher все окна учителя
func (r *AvailabilityRepository) ListByTeacher(ctx context.Context, teacherID int64) ([]*model.Availability, error) {
	query := `
		SELECT ` + availabilityColumns + `
		FROM availabilities
		WHERE teacher_id = $1
		ORDER BY day_of_week, start_hour
	`

	rows, err := r.db.Query(ctx, query, teacherID)
	if err != nil {
		return nil, fmt.Errorf("list availabilities: %w", err)
	}
	defer rows.Close()

	var result []*model.Availability
	for rows.Next() {
		a, err := scanAvailability(rows)
		if err != nil {
			return nil, fmt.Errorf("scan availability: %w", err)
		}
		result = append(result, a)
	}

	return result, rows.Err()
}

// Update сохраняет изменённые поля окна
func (r *AvailabilityRepository) Update(ctx context.Context, a *model.Availability) error {
	query := `
		UPDATE availabilities
		SET day_of_week = $2, start_hour = $3, end_hour = $4, is_active = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query, a.ID, a.DayOfWeek, a.StartHour, a.EndHour, a.IsActive).Scan(&a.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("availability not found")
		}
		return fmt.Errorf("update availability: %w", err)
	}
	return nil
}

// Deactivate мягкое удаление окна, на которое ссылаются бронирования
func (r *AvailabilityRepository) Deactivate(ctx context.Context, id int64) error {
	query := `UPDATE availabilities SET is_active = FALSE, updated_at = NOW() WHERE id = $1`

	n, err := base.ExecAffected(ctx, r.db, query, id)
	if err != nil {
		return fmt.Errorf("deactivate availability: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("availability not found")
	}
	return nil
}

// Delete физическое удаление
func (r *AvailabilityRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM availabilities WHERE id = $1`

	n, err := base.ExecAffected(ctx, r.db, query, id)
	if err != nil {
		return fmt.Errorf("delete availability: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("availability not found")
	}
	return nil
}
