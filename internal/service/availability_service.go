package service

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/Freeeeeet/onlycation/internal/clock"
	"github.com/Freeeeeet/onlycation/internal/domain"
	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/Freeeeeet/onlycation/internal/render"
	"github.com/Freeeeeet/onlycation/internal/repository"
	"go.uber.org/zap"
)

var hourRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

type AvailabilityService struct {
	store  repository.Store
	clock  clock.Clock
	loc    *time.Location
	logger *zap.Logger
}

func NewAvailabilityService(
	store repository.Store,
	clk clock.Clock,
	loc *time.Location,
	logger *zap.Logger,
) *AvailabilityService {
	return &AvailabilityService{
		store:  store,
		clock:  clk,
		loc:    loc,
		logger: logger,
	}
}

type AvailabilityInput struct {
	PreferenceID int64
	DayOfWeek    int
	Start        string // "HH:MM"
	End          string
}

type AvailabilityPatch struct {
	DayOfWeek *int
	Start     *string
	End       *string
	IsActive  *bool
}

// ParseHourBounds "09:00"-"12:00" → 9, 12; "24:00" и "00:00" в конце означают полночь следующего дня
func ParseHourBounds(start, end string) (int, int, error) {
	sh, ok := parseHour(start)
	if !ok || sh > 23 {
		return 0, 0, domain.ValidationError{Field: "start", Msg: ReasonInvalidInterval}
	}
	eh, ok := parseHour(end)
	if !ok {
		return 0, 0, domain.ValidationError{Field: "end", Msg: ReasonInvalidInterval}
	}
	if eh == 0 {
		eh = 24
	}
	if sh >= eh {
		return 0, 0, domain.ValidationError{Field: "end", Msg: ReasonInvalidInterval}
	}
	return sh, eh, nil
}

func parseHour(s string) (int, bool) {
	m := hourRe.FindStringSubmatch(s)
	if m == nil || m[2] != "00" {
		return 0, false
	}
	h, err := strconv.Atoi(m[1])
	if err != nil || h > 24 {
		return 0, false
	}
	return h, true
}

func validDay(day int) error {
	if day < 1 || day > 7 {
		return domain.ValidationError{Field: "day_of_week", Msg: "must be within 1..7"}
	}
	return nil
}

func requireTeacher(actor model.Actor) error {
	if !actor.IsTeacher() {
		return domain.NewForbidden("only teachers can manage availability")
	}
	return nil
}

// checkNoSiblingOverlap окна учителя в один день не должны пересекаться
func (s *AvailabilityService) checkNoSiblingOverlap(ctx context.Context, a *model.Availability) error {
	siblings, err := s.store.Availabilities().ListByTeacher(ctx, a.TeacherID)
	if err != nil {
		return err
	}
	for _, other := range siblings {
		if other.ID == a.ID || !other.IsActive {
			continue
		}
		if a.OverlapsHours(other) {
			return domain.NewConflict("availability", ReasonAvailabilityOverlap)
		}
	}
	return nil
}

// Create создаёт еженедельное окно доступности учителя
func (s *AvailabilityService) Create(ctx context.Context, actor model.Actor, in AvailabilityInput) (*model.Availability, error) {
	if err := requireTeacher(actor); err != nil {
		return nil, err
	}
	if err := validDay(in.DayOfWeek); err != nil {
		return nil, err
	}
	startHour, endHour, err := ParseHourBounds(in.Start, in.End)
	if err != nil {
		return nil, err
	}

	a := &model.Availability{
		TeacherID:    actor.UserID,
		PreferenceID: in.PreferenceID,
		DayOfWeek:    in.DayOfWeek,
		StartHour:    startHour,
		EndHour:      endHour,
		IsActive:     true,
	}

	if err := s.checkNoSiblingOverlap(ctx, a); err != nil {
		return nil, err
	}

	if err := s.store.Availabilities().Create(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info("Availability created",
		zap.Int64("availability_id", a.ID),
		zap.Int64("teacher_id", a.TeacherID),
		zap.Int("day_of_week", a.DayOfWeek),
		zap.String("hours", a.Label()))

	return a, nil
}

func (s *AvailabilityService) getOwned(ctx context.Context, actor model.Actor, id int64) (*model.Availability, error) {
	if err := requireTeacher(actor); err != nil {
		return nil, err
	}
	a, err := s.store.Availabilities().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, domain.NewNotFound("availability")
	}
	if a.TeacherID != actor.UserID {
		return nil, domain.NewForbidden("availability belongs to another teacher")
	}
	return a, nil
}

// Update частичное изменение окна
func (s *AvailabilityService) Update(ctx context.Context, actor model.Actor, id int64, patch AvailabilityPatch) (*model.Availability, error) {
	a, err := s.getOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if patch.DayOfWeek != nil {
		if err := validDay(*patch.DayOfWeek); err != nil {
			return nil, err
		}
		a.DayOfWeek = *patch.DayOfWeek
	}

	if patch.Start != nil || patch.End != nil {
		start := fmt.Sprintf("%02d:00", a.StartHour)
		end := fmt.Sprintf("%02d:00", a.EndHour)
		if patch.Start != nil {
			start = *patch.Start
		}
		if patch.End != nil {
			end = *patch.End
		}
		a.StartHour, a.EndHour, err = ParseHourBounds(start, end)
		if err != nil {
			return nil, err
		}
	}

	if patch.IsActive != nil {
		a.IsActive = *patch.IsActive
	}

	if a.IsActive {
		if err := s.checkNoSiblingOverlap(ctx, a); err != nil {
			return nil, err
		}
	}

	if err := s.store.Availabilities().Update(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info("Availability updated",
		zap.Int64("availability_id", a.ID),
		zap.String("hours", a.Label()),
		zap.Bool("is_active", a.IsActive))

	return a, nil
}

// Delete физически удаляет окно или деактивирует, если на него ссылаются бронирования
func (s *AvailabilityService) Delete(ctx context.Context, actor model.Actor, id int64) (*model.AvailabilityDeleteResult, error) {
	a, err := s.getOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	var result model.AvailabilityDeleteResult
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		total, err := tx.Bookings().CountByAvailability(ctx, a.ID)
		if err != nil {
			return err
		}

		if total == 0 {
			result = model.AvailabilityDeleteResult{Action: "deleted", Message: "availability deleted"}
			return tx.Availabilities().Delete(ctx, a.ID)
		}

		future, err := tx.Bookings().CountFutureByAvailability(ctx, a.ID, s.clock.Now())
		if err != nil {
			return err
		}
		result = model.AvailabilityDeleteResult{
			Action:         "deactivated",
			Message:        fmt.Sprintf("availability deactivated; %d future booking(s) remain scheduled", future),
			FutureBookings: future,
		}
		return tx.Availabilities().Deactivate(ctx, a.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Availability removed",
		zap.Int64("availability_id", a.ID),
		zap.String("action", result.Action),
		zap.Int("future_bookings", result.FutureBookings))

	return &result, nil
}

// List все окна учителя
func (s *AvailabilityService) List(ctx context.Context, teacherID int64) ([]*model.Availability, error) {
	return s.store.Availabilities().ListByTeacher(ctx, teacherID)
}

// WeeklyAgenda недельная сетка часовых слотов: окна дают available, бронирования всегда occupied
func (s *AvailabilityService) WeeklyAgenda(ctx context.Context, teacherID int64, week time.Time) (*model.WeeklyAgenda, error) {
	weekStart := clock.StartOfWeek(week, s.loc)
	weekEnd := weekStart.AddDate(0, 0, 7)

	availabilities, err := s.store.Availabilities().ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	bookings, err := s.store.Bookings().ListActiveForTeacherBetween(ctx, teacherID, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}

	// day index → hour → slot
	grid := make([]map[int]*model.AgendaSlot, 7)
	for i := range grid {
		grid[i] = make(map[int]*model.AgendaSlot)
	}

	for _, a := range availabilities {
		if !a.IsActive {
			continue
		}
		id := a.ID
		for h := a.StartHour; h < a.EndHour && h < 24; h++ {
			grid[a.DayOfWeek-1][h] = &model.AgendaSlot{
				Hour:           fmt.Sprintf("%02d:00", h),
				Status:         model.SlotAvailable,
				AvailabilityID: &id,
			}
		}
	}

	for _, b := range bookings {
		bookingID, availabilityID := b.ID, b.AvailabilityID
		ls := b.StartTime.In(s.loc)
		cursor := time.Date(ls.Year(), ls.Month(), ls.Day(), ls.Hour(), 0, 0, 0, s.loc)
		for ; cursor.Before(b.EndTime); cursor = cursor.Add(time.Hour) {
			if cursor.Before(weekStart) || !cursor.Before(weekEnd) {
				continue
			}
			day := int(cursor.Sub(weekStart) / (24 * time.Hour))
			h := cursor.Hour()
			slot, ok := grid[day][h]
			if !ok {
				slot = &model.AgendaSlot{Hour: fmt.Sprintf("%02d:00", h), AvailabilityID: &availabilityID}
				grid[day][h] = slot
			}
			slot.Status = model.SlotOccupied
			slot.BookingID = &bookingID
		}
	}

	agenda := &model.WeeklyAgenda{TeacherID: teacherID, WeekStart: weekStart}
	for i := 0; i < 7; i++ {
		day := model.AgendaDay{Date: weekStart.AddDate(0, 0, i), DayOfWeek: i + 1, Slots: []model.AgendaSlot{}}
		hours := make([]int, 0, len(grid[i]))
		for h := range grid[i] {
			hours = append(hours, h)
		}
		sort.Ints(hours)
		for _, h := range hours {
			day.Slots = append(day.Slots, *grid[i][h])
		}
		agenda.Days = append(agenda.Days, day)
	}

	return agenda, nil
}

// AgendaImage PNG-картинка недельной сетки
func (s *AvailabilityService) AgendaImage(ctx context.Context, teacherID int64, week time.Time) ([]byte, error) {
	agenda, err := s.WeeklyAgenda(ctx, teacherID, week)
	if err != nil {
		return nil, err
	}
	return render.AgendaPNG(agenda)
}
