package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/Freeeeeet/onlycation/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

type WalletRepository struct {
	db base.DB
}

func NewWalletRepository(db base.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// GetByTeacherID получает кошелёк учителя
func (r *WalletRepository) GetByTeacherID(ctx context.Context, teacherID int64) (*model.TeacherWallet, error) {
	query := `
		SELECT teacher_id, stripe_account_id, status, updated_at
		FROM teacher_wallets
		WHERE teacher_id = $1
	`

	var w model.TeacherWallet
	err := r.db.QueryRow(ctx, query, teacherID).Scan(&w.TeacherID, &w.StripeAccountID, &w.Status, &w.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet by teacher: %w", err)
	}

	return &w, nil
}

// UpdateStatusByAccount синхронизирует статус по вебхуку account.updated
func (r *WalletRepository) UpdateStatusByAccount(ctx context.Context, accountID string, status model.WalletStatus) (int64, error) {
	query := `
		UPDATE teacher_wallets
		SET status = $2, updated_at = NOW()
		WHERE stripe_account_id = $1 AND status <> $2
	`

	n, err := base.ExecAffected(ctx, r.db, query, accountID, status)
	if err != nil {
		return 0, fmt.Errorf("update wallet status: %w", err)
	}
	return n, nil
}
