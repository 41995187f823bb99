package model

import "time"

type RescheduleStatus string

const (
	RescheduleStatusPending  RescheduleStatus = "pending"
	RescheduleStatusApproved RescheduleStatus = "approved"
	RescheduleStatusRejected RescheduleStatus = "rejected"
	RescheduleStatusExpired  RescheduleStatus = "expired"
)

type RescheduleRequest struct {
	ID                     int64            `json:"id"`
	BookingID              int64            `json:"booking_id"`
	TeacherID              int64            `json:"teacher_id"`
	StudentID              int64            `json:"student_id"`
	CurrentAvailabilityID  int64            `json:"current_availability_id"`
	CurrentStart           time.Time        `json:"current_start"`
	CurrentEnd             time.Time        `json:"current_end"`
	ProposedAvailabilityID int64            `json:"proposed_availability_id"`
	ProposedStart          time.Time        `json:"proposed_start"`
	ProposedEnd            time.Time        `json:"proposed_end"`
	Reason                 *string          `json:"reason,omitempty"`
	StudentMessage         *string          `json:"student_message,omitempty"`
	Note                   *string          `json:"note,omitempty"` // системная пометка, например почему запрос истёк
	Status                 RescheduleStatus `json:"status"`
	CreatedAt              time.Time        `json:"created_at"`
	ExpiresAt              time.Time        `json:"expires_at"`
	RespondedAt            *time.Time       `json:"responded_at,omitempty"`
}

// ExpiredAt истёк ли запрос к моменту now
func (r *RescheduleRequest) ExpiredAt(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// RescheduleResolution ответ на запрос переноса
type RescheduleResolution struct {
	Status  RescheduleStatus
	Message *string
	Note    *string
	At      time.Time
}
