package model

import "time"

type BookingStatus string

const (
	BookingStatusActive    BookingStatus = "active"    // Оплачено, занятие впереди или идёт
	BookingStatusCompleted BookingStatus = "completed" // Обе стороны подтвердили посещение
	BookingStatusCancelled BookingStatus = "cancelled" // Отменено (возврат)
)

type Booking struct {
	ID             int64         `json:"id"`
	StudentID      int64         `json:"student_id"`
	TeacherID      int64         `json:"teacher_id"` // из availability
	AvailabilityID int64         `json:"availability_id"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
	RoomLink       string        `json:"room_link"`
	Status         BookingStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func (b *Booking) Duration() time.Duration {
	return b.EndTime.Sub(b.StartTime)
}

func (b *Booking) IsCancelled() bool {
	return b.Status == BookingStatusCancelled
}

// Overlaps полуоткрытые интервалы [start, end)
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
