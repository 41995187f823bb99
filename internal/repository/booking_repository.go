package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/Freeeeeet/onlycation/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

const bookingSelect = `
	SELECT b.id, b.student_id, a.teacher_id, b.availability_id, b.start_time, b.end_time,
	       b.room_link, b.status, b.created_at, b.updated_at
	FROM bookings b
	JOIN availabilities a ON a.id = b.availability_id
`

type BookingRepository struct {
	db base.DB
}

func NewBookingRepository(db base.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID,
		&b.StudentID,
		&b.TeacherID,
		&b.AvailabilityID,
		&b.StartTime,
		&b.EndTime,
		&b.RoomLink,
		&b.Status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepository) list(ctx context.Context, op, query string, args ...any) ([]*model.Booking, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}

	return bookings, rows.Err()
}

// Create создаёт новое бронирование
func (r *BookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (student_id, availability_id, start_time, end_time, room_link, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		booking.StudentID,
		booking.AvailabilityID,
		booking.StartTime,
		booking.EndTime,
		booking.RoomLink,
		booking.Status,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)

	if err != nil {
		return wrapInsert("create booking", err)
	}

	return nil
}

// GetByID получает бронирование по ID
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, bookingSelect+` WHERE b.id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}
	return b, nil
}

// SetRoomLink назначает ссылку на видеокомнату
func (r *BookingRepository) SetRoomLink(ctx context.Context, id int64, link string) error {
	query := `UPDATE bookings SET room_link = $2, updated_at = NOW() WHERE id = $1`

	n, err := base.ExecAffected(ctx, r.db, query, id, link)
	if err != nil {
		return fmt.Errorf("set room link: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("booking not found")
	}
	return nil
}

// UpdateStatus обновляет статус бронирования
func (r *BookingRepository) UpdateStatus(ctx context.Context, id int64, status model.BookingStatus) error {
	query := `UPDATE bookings SET status = $2, updated_at = NOW() WHERE id = $1`

	n, err := base.ExecAffected(ctx, r.db, query, id, status)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("booking not found")
	}
	return nil
}

// UpdateSlot переносит бронирование на другое окно/время
func (r *BookingRepository) UpdateSlot(ctx context.Context, id, availabilityID int64, start, end time.Time) error {
	query := `
		UPDATE bookings
		SET availability_id = $2, start_time = $3, end_time = $4, updated_at = NOW()
		WHERE id = $1 AND status = 'active'
	`

	n, err := base.ExecAffected(ctx, r.db, query, id, availabilityID, start, end)
	if err != nil {
		return fmt.Errorf("update booking slot: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("booking not found")
	}
	return nil
}

// HasOverlapOnAvailability есть ли неотменённое бронирование окна, пересекающее [start, end)
func (r *BookingRepository) HasOverlapOnAvailability(ctx context.Context, availabilityID int64, start, end time.Time, excludeID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE availability_id = $1
			  AND status <> 'cancelled'
			  AND start_time < $3
			  AND end_time > $2
			  AND id <> $4
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, availabilityID, start, end, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check availability overlap: %w", err)
	}
	return exists, nil
}

// HasOverlapForStudent есть ли у студента другое неотменённое занятие в [start, end)
func (r *BookingRepository) HasOverlapForStudent(ctx context.Context, studentID int64, start, end time.Time, excludeID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE student_id = $1
			  AND status <> 'cancelled'
			  AND start_time < $3
			  AND end_time > $2
			  AND id <> $4
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, studentID, start, end, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check student overlap: %w", err)
	}
	return exists, nil
}

// CountByAvailability сколько бронирований ссылается на окно (любой статус)
func (r *BookingRepository) CountByAvailability(ctx context.Context, availabilityID int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM bookings WHERE availability_id = $1`, availabilityID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count bookings by availability: %w", err)
	}
	return n, nil
}

// CountFutureByAvailability будущие неотменённые бронирования окна
func (r *BookingRepository) CountFutureByAvailability(ctx context.Context, availabilityID int64, now time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM bookings
		WHERE availability_id = $1 AND status <> 'cancelled' AND start_time > $2
	`

	var n int
	if err := r.db.QueryRow(ctx, query, availabilityID, now).Scan(&n); err != nil {
		return 0, fmt.Errorf("count future bookings: %w", err)
	}
	return n, nil
}

// ListActiveForTeacherBetween неотменённые бронирования учителя, пересекающие [from, to)
func (r *BookingRepository) ListActiveForTeacherBetween(ctx context.Context, teacherID int64, from, to time.Time) ([]*model.Booking, error) {
	query := bookingSelect + `
		WHERE a.teacher_id = $1
		  AND b.status <> 'cancelled'
		  AND b.start_time < $3
		  AND b.end_time > $2
		ORDER BY b.start_time
	`
	return r.list(ctx, "list teacher bookings in range", query, teacherID, from, to)
}

// ListByStudent все бронирования студента
func (r *BookingRepository) ListByStudent(ctx context.Context, studentID int64) ([]*model.Booking, error) {
	return r.list(ctx, "get bookings by student", bookingSelect+` WHERE b.student_id = $1 ORDER BY b.start_time DESC`, studentID)
}

// ListByTeacher все бронирования учителя
func (r *BookingRepository) ListByTeacher(ctx context.Context, teacherID int64) ([]*model.Booking, error) {
	return r.list(ctx, "get bookings by teacher", bookingSelect+` WHERE a.teacher_id = $1 ORDER BY b.start_time DESC`, teacherID)
}
