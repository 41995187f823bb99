package model

import (
	"encoding/json"
	"time"
)

// Attendance трёхзначное состояние подтверждения: не задано | подтверждено | отклонено
type Attendance int8

const (
	AttendanceUnset Attendance = iota
	AttendanceConfirmed
	AttendanceDenied
)

func AttendanceOf(attended bool) Attendance {
	if attended {
		return AttendanceConfirmed
	}
	return AttendanceDenied
}

// AttendanceFromNullable читает значение из nullable-колонки
func AttendanceFromNullable(v *bool) Attendance {
	if v == nil {
		return AttendanceUnset
	}
	return AttendanceOf(*v)
}

// Nullable значение для записи в БД
func (a Attendance) Nullable() *bool {
	switch a {
	case AttendanceConfirmed:
		v := true
		return &v
	case AttendanceDenied:
		v := false
		return &v
	default:
		return nil
	}
}

func (a Attendance) IsSet() bool { return a != AttendanceUnset }

func (a Attendance) String() string {
	switch a {
	case AttendanceConfirmed:
		return "confirmed"
	case AttendanceDenied:
		return "denied"
	default:
		return "unset"
	}
}

func (a Attendance) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Nullable())
}

func (a *Attendance) UnmarshalJSON(data []byte) error {
	var v *bool
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = AttendanceFromNullable(v)
	return nil
}

type Party string

const (
	PartyTeacher Party = "teacher"
	PartyStudent Party = "student"
)

type Confirmation struct {
	ID                 int64      `json:"id"`
	PaymentBookingID   int64      `json:"payment_booking_id"`
	BookingID          int64      `json:"booking_id"`
	TeacherID          int64      `json:"teacher_id"`
	StudentID          int64      `json:"student_id"`
	TeacherConfirmed   Attendance `json:"teacher_confirmed"`
	StudentConfirmed   Attendance `json:"student_confirmed"`
	TeacherEvidenceRef *string    `json:"teacher_evidence_ref,omitempty"`
	StudentEvidenceRef *string    `json:"student_evidence_ref,omitempty"`
	TeacherDescription *string    `json:"teacher_description,omitempty"`
	StudentDescription *string    `json:"student_description,omitempty"`
	TeacherConfirmedAt *time.Time `json:"teacher_confirmed_at,omitempty"`
	StudentConfirmedAt *time.Time `json:"student_confirmed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Of состояние подтверждения стороны
func (c *Confirmation) Of(p Party) Attendance {
	if p == PartyTeacher {
		return c.TeacherConfirmed
	}
	return c.StudentConfirmed
}

// ConfirmationMark одна отметка стороны (что пишется в conditional update)
type ConfirmationMark struct {
	Party       Party
	Attendance  Attendance
	Description string
	EvidenceRef string
	At          time.Time
}
