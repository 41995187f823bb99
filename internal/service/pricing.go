package service

import (
	"regexp"
	"strings"

	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/shopspring/decimal"
)

var (
	hundred      = decimal.NewFromInt(100)
	benefitPctRe = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*%`)
)

// Quote расчёт стоимости урока в минимальных единицах валюты
type Quote struct {
	Hours            int64           `json:"hours"`
	TotalAmount      int64           `json:"total_amount"`
	CommissionPct    decimal.Decimal `json:"commission_pct"`
	CommissionAmount int64           `json:"commission_amount"`
	TeacherAmount    int64           `json:"teacher_amount"`
}

// QuoteLesson total = first + (hours-1)*extra; комиссия округляется вниз
func QuoteLesson(price *model.Price, hours int64, pct decimal.Decimal) Quote {
	total := price.FirstHourPrice.Add(price.ExtraHourPrice.Mul(decimal.NewFromInt(hours - 1)))
	totalMinor := total.Mul(hundred).Round(0).IntPart()
	commission := decimal.NewFromInt(totalMinor).Mul(pct).Div(hundred).Floor().IntPart()

	return Quote{
		Hours:            hours,
		TotalAmount:      totalMinor,
		CommissionPct:    pct,
		CommissionAmount: commission,
		TeacherAmount:    totalMinor - commission,
	}
}

// CommissionPct процент платформы по тарифу учителя:
// явное поле → 0 для премиума → число перед '%' в названии преимущества → значение по умолчанию
func CommissionPct(plan *model.SubscriptionPlan, defaultPct int64) decimal.Decimal {
	def := decimal.NewFromInt(defaultPct)
	if plan == nil {
		return def
	}
	if plan.CommissionPct.Valid {
		return plan.CommissionPct.Decimal
	}
	if plan.IsPremium {
		return decimal.Zero
	}

	for _, benefit := range plan.Benefits {
		m := benefitPctRe.FindStringSubmatch(benefit)
		if m == nil {
			continue
		}
		pct, err := decimal.NewFromString(strings.Replace(m[1], ",", ".", 1))
		if err != nil || pct.GreaterThan(hundred) {
			continue
		}
		return pct
	}

	return def
}
