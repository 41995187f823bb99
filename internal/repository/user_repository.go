package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/Freeeeeet/onlycation/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

type UserRepository struct {
	db base.DB
}

func NewUserRepository(db base.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID получает пользователя по ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `
		SELECT id, email, first_name, last_name, role, is_active, telegram_chat_id, created_at
		FROM users
		WHERE id = $1
	`

	var user model.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.IsActive,
		&user.TelegramChatID,
		&user.CreatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}

	return &user, nil
}

// LockForUpdate блокирует строку пользователя до конца транзакции
func (r *UserRepository) LockForUpdate(ctx context.Context, id int64) error {
	query := `SELECT id FROM users WHERE id = $1 FOR UPDATE`

	var locked int64
	err := r.db.QueryRow(ctx, query, id).Scan(&locked)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil
		}
		return fmt.Errorf("lock user: %w", err)
	}
	return nil
}
