package model

import "github.com/shopspring/decimal"

// SubscriptionPlan активный тариф учителя; определяет комиссию платформы
type SubscriptionPlan struct {
	ID            int64               `json:"id"`
	Name          string              `json:"name"`
	IsPremium     bool                `json:"is_premium"`
	CommissionPct decimal.NullDecimal `json:"commission_pct"`
	Benefits      []string            `json:"benefits"`
}
