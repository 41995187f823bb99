package model

import (
	"fmt"
	"time"
)

// Availability еженедельное окно учителя: день недели + часы [StartHour, EndHour)
type Availability struct {
	ID           int64     `json:"id"`
	TeacherID    int64     `json:"teacher_id"`
	PreferenceID int64     `json:"preference_id"`
	DayOfWeek    int       `json:"day_of_week"` // 1 = понедельник … 7 = воскресенье
	StartHour    int       `json:"start_hour"`
	EndHour      int       `json:"end_hour"` // 24 = полночь следующего дня
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (a *Availability) Label() string {
	return fmt.Sprintf("%02d:00-%02d:00", a.StartHour, a.EndHour%24)
}

// Window конкретный интервал окна в день day (полночь в зоне бизнеса)
func (a *Availability) Window(day time.Time) (time.Time, time.Time) {
	return day.Add(time.Duration(a.StartHour) * time.Hour), day.Add(time.Duration(a.EndHour) * time.Hour)
}

// Contains лежит ли [start, end) целиком внутри окна в соответствующий день
func (a *Availability) Contains(start, end time.Time, loc *time.Location) bool {
	ls := start.In(loc)
	wd := int(ls.Weekday())
	if wd == 0 {
		wd = 7
	}
	if wd != a.DayOfWeek {
		return false
	}
	day := time.Date(ls.Year(), ls.Month(), ls.Day(), 0, 0, 0, 0, loc)
	ws, we := a.Window(day)
	return !start.Before(ws) && !end.After(we)
}

// OverlapsHours пересекаются ли часы двух окон одного дня
func (a *Availability) OverlapsHours(other *Availability) bool {
	return a.DayOfWeek == other.DayOfWeek && a.StartHour < other.EndHour && other.StartHour < a.EndHour
}

type AvailabilityDeleteResult struct {
	Action         string `json:"action"` // deleted | deactivated
	Message        string `json:"message"`
	FutureBookings int    `json:"future_bookings"`
}

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotOccupied  SlotStatus = "occupied"
)

type AgendaSlot struct {
	Hour           string     `json:"hour"` // "HH:00"
	Status         SlotStatus `json:"status"`
	AvailabilityID *int64     `json:"availability_id,omitempty"`
	BookingID      *int64     `json:"booking_id,omitempty"`
}

type AgendaDay struct {
	Date      time.Time    `json:"date"`
	DayOfWeek int          `json:"day_of_week"`
	Slots     []AgendaSlot `json:"slots"`
}

type WeeklyAgenda struct {
	TeacherID int64       `json:"teacher_id"`
	WeekStart time.Time   `json:"week_start"`
	Days      []AgendaDay `json:"days"`
}
