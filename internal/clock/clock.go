package clock

import (
	"fmt"
	"time"
)

// Clock источник текущего времени; в тестах подменяется фиксированным
type Clock interface {
	Now() time.Time
}

type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

// Fixed всегда возвращает одно и то же время
type Fixed struct {
	T time.Time
}

func (f *Fixed) Now() time.Time { return f.T }

// Advance сдвигает фиксированные часы вперёд
func (f *Fixed) Advance(d time.Duration) { f.T = f.T.Add(d) }

// BusinessZone фиксированная зона бизнеса (UTC-6 по умолчанию, без перехода на летнее время)
func BusinessZone(offsetHours int) *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", offsetHours), offsetHours*3600)
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseInstant принимает RFC3339 или локальное время без смещения (трактуется в зоне бизнеса)
func ParseInstant(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// ParseDate разбирает YYYY-MM-DD в полночь зоны бизнеса
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, loc)
}

// ISOWeekday 1=понедельник … 7=воскресенье
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// StartOfWeek полночь понедельника недели, в которую попадает t (в зоне loc)
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	day := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
	return day.AddDate(0, 0, -(ISOWeekday(lt) - 1))
}
