package model

import "time"

type WalletStatus string

const (
	WalletStatusPending    WalletStatus = "pending"
	WalletStatusActive     WalletStatus = "active"
	WalletStatusRestricted WalletStatus = "restricted"
)

// TeacherWallet подключённый аккаунт учителя у платёжного провайдера
type TeacherWallet struct {
	TeacherID       int64        `json:"teacher_id"`
	StripeAccountID string       `json:"stripe_account_id"`
	Status          WalletStatus `json:"status"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// CanReceivePayouts готов ли аккаунт принимать split-платежи
func (w *TeacherWallet) CanReceivePayouts() bool {
	return w != nil && w.Status == WalletStatusActive && w.StripeAccountID != ""
}
