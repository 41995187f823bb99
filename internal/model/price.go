package model

import "github.com/shopspring/decimal"

// Price тариф учителя для модальности занятия, в основных единицах валюты
type Price struct {
	ID             int64           `json:"id"`
	TeacherID      int64           `json:"teacher_id"`
	PreferenceID   int64           `json:"preference_id"`
	PreferenceName string          `json:"preference_name"`
	FirstHourPrice decimal.Decimal `json:"first_hour_price"`
	ExtraHourPrice decimal.Decimal `json:"extra_hour_price"`
	IsActive       bool            `json:"is_active"`
}
