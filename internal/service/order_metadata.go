package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Ключи metadata сессии оплаты; верификация опирается только на них
const (
	metaStudentID        = "student_id"
	metaTeacherID        = "teacher_id"
	metaAvailabilityID   = "availability_id"
	metaPriceID          = "price_id"
	metaStart            = "start"
	metaEnd              = "end"
	metaCurrency         = "currency"
	metaTotalAmount      = "total_amount"
	metaCommissionPct    = "commission_pct"
	metaCommissionAmount = "commission_amount"
	metaTeacherAmount    = "teacher_amount"
	metaTeacherAccount   = "teacher_account_id"
)

// paidOrder содержимое оплаченной сессии
type paidOrder struct {
	StudentID      int64
	TeacherID      int64
	AvailabilityID int64
	PriceID        int64
	Start          time.Time
	End            time.Time
	Currency       string
	Quote          Quote
	TeacherAccount string
}

func (o paidOrder) metadata() map[string]string {
	return map[string]string{
		metaStudentID:        strconv.FormatInt(o.StudentID, 10),
		metaTeacherID:        strconv.FormatInt(o.TeacherID, 10),
		metaAvailabilityID:   strconv.FormatInt(o.AvailabilityID, 10),
		metaPriceID:          strconv.FormatInt(o.PriceID, 10),
		metaStart:            o.Start.UTC().Format(time.RFC3339),
		metaEnd:              o.End.UTC().Format(time.RFC3339),
		metaCurrency:         o.Currency,
		metaTotalAmount:      strconv.FormatInt(o.Quote.TotalAmount, 10),
		metaCommissionPct:    o.Quote.CommissionPct.String(),
		metaCommissionAmount: strconv.FormatInt(o.Quote.CommissionAmount, 10),
		metaTeacherAmount:    strconv.FormatInt(o.Quote.TeacherAmount, 10),
		metaTeacherAccount:   o.TeacherAccount,
	}
}

func parseOrder(md map[string]string) (paidOrder, error) {
	var (
		o   paidOrder
		err error
	)

	ints := []struct {
		key string
		dst *int64
	}{
		{metaStudentID, &o.StudentID},
		{metaTeacherID, &o.TeacherID},
		{metaAvailabilityID, &o.AvailabilityID},
		{metaPriceID, &o.PriceID},
		{metaTotalAmount, &o.Quote.TotalAmount},
		{metaCommissionAmount, &o.Quote.CommissionAmount},
		{metaTeacherAmount, &o.Quote.TeacherAmount},
	}
	for _, f := range ints {
		if *f.dst, err = strconv.ParseInt(md[f.key], 10, 64); err != nil {
			return o, fmt.Errorf("metadata %s: %w", f.key, err)
		}
	}

	if o.Start, err = time.Parse(time.RFC3339, md[metaStart]); err != nil {
		return o, fmt.Errorf("metadata start: %w", err)
	}
	if o.End, err = time.Parse(time.RFC3339, md[metaEnd]); err != nil {
		return o, fmt.Errorf("metadata end: %w", err)
	}
	if o.Quote.CommissionPct, err = decimal.NewFromString(md[metaCommissionPct]); err != nil {
		return o, fmt.Errorf("metadata commission_pct: %w", err)
	}
	if o.Quote.CommissionAmount+o.Quote.TeacherAmount != o.Quote.TotalAmount {
		return o, fmt.Errorf("metadata amounts do not add up")
	}

	o.Currency = md[metaCurrency]
	o.TeacherAccount = md[metaTeacherAccount]
	o.Quote.Hours = int64(o.End.Sub(o.Start) / time.Hour)
	return o, nil
}
