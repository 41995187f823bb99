package service

import (
	"context"
	"strings"
	"time"

	"github.com/Freeeeeet/onlycation/internal/clock"
	"github.com/Freeeeeet/onlycation/internal/config"
	"github.com/Freeeeeet/onlycation/internal/domain"
	"github.com/Freeeeeet/onlycation/internal/evidence"
	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/Freeeeeet/onlycation/internal/notify"
	"github.com/Freeeeeet/onlycation/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ConfirmationService struct {
	store    repository.Store
	vault    *evidence.Vault
	notifier notify.Notifier
	clock    clock.Clock
	policy   config.Policy
	logger   *zap.Logger
}

func NewConfirmationService(
	store repository.Store,
	vault *evidence.Vault,
	notifier notify.Notifier,
	clk clock.Clock,
	policy config.Policy,
	logger *zap.Logger,
) *ConfirmationService {
	return &ConfirmationService{
		store:    store,
		vault:    vault,
		notifier: notifier,
		clock:    clk,
		policy:   policy,
		logger:   logger,
	}
}

// EvidenceUpload файл-доказательство в открытом виде
type EvidenceUpload struct {
	ContentType string
	Data        []byte
}

type ConfirmInput struct {
	BookingID   int64
	Attended    bool
	Description string
	Evidence    EvidenceUpload
}

func (s *ConfirmationService) ConfirmTeacher(ctx context.Context, actor model.Actor, in ConfirmInput) (*model.Confirmation, error) {
	return s.Confirm(ctx, actor, model.PartyTeacher, in)
}

func (s *ConfirmationService) ConfirmStudent(ctx context.Context, actor model.Actor, in ConfirmInput) (*model.Confirmation, error) {
	return s.Confirm(ctx, actor, model.PartyStudent, in)
}

// window окно подтверждения стороны после окончания урока
func (s *ConfirmationService) window(party model.Party) time.Duration {
	if party == model.PartyTeacher {
		return s.policy.TeacherConfirmWindow
	}
	return s.policy.StudentConfirmWindow
}

// Confirm записывает отметку стороны; каждая сторона отмечается не более одного раза
func (s *ConfirmationService) Confirm(ctx context.Context, actor model.Actor, party model.Party, in ConfirmInput) (*model.Confirmation, error) {
	booking, err := s.store.Bookings().GetByID(ctx, in.BookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, domain.NewNotFound("booking")
	}

	// Проверяем что актор и есть эта сторона бронирования
	owner := booking.StudentID
	if party == model.PartyTeacher {
		owner = booking.TeacherID
	}
	if actor.UserID != owner {
		return nil, domain.NewForbidden("not the " + string(party) + " of this booking")
	}
	if booking.IsCancelled() {
		return nil, domain.NewValidation(ReasonBookingNotActive)
	}

	now := s.clock.Now()
	if !now.After(booking.EndTime) {
		return nil, domain.NewValidation(ReasonClassNotEnded)
	}
	if now.After(booking.EndTime.Add(s.window(party))) {
		return nil, domain.NewValidation(ReasonWindowExpired)
	}

	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, domain.NewFieldValidation("description", "description is required")
	}
	if len(in.Evidence.Data) == 0 {
		return nil, domain.NewFieldValidation("evidence", "evidence file is required")
	}

	conf, err := s.store.Confirmations().GetByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	if conf == nil {
		return nil, domain.NewNotFound("confirmation")
	}
	if conf.Of(party).IsSet() {
		return nil, domain.NewConflict("confirmation", ReasonAlreadyConfirmed)
	}

	ref := uuid.New()
	nonce, ciphertext, err := s.vault.Seal(in.Evidence.Data, ref.String())
	if err != nil {
		return nil, domain.InternalError{Msg: "failed to encrypt evidence", Err: err}
	}

	completed := false
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		if err := tx.Evidence().Create(ctx, &model.EvidenceFile{
			ID:          ref,
			BookingID:   booking.ID,
			UploaderID:  actor.UserID,
			Party:       party,
			ContentType: in.Evidence.ContentType,
			Nonce:       nonce,
			Ciphertext:  ciphertext,
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		ok, err := tx.Confirmations().SetMark(ctx, conf.ID, model.ConfirmationMark{
			Party:       party,
			Attendance:  model.AttendanceOf(in.Attended),
			Description: description,
			EvidenceRef: ref.String(),
			At:          now,
		})
		if err != nil {
			return err
		}
		if !ok {
			// Параллельный запрос той же стороны успел раньше
			return domain.NewConflict("confirmation", ReasonAlreadyConfirmed)
		}

		conf, err = tx.Confirmations().GetByID(ctx, conf.ID)
		if err != nil {
			return err
		}
		if conf.TeacherConfirmed == model.AttendanceConfirmed && conf.StudentConfirmed == model.AttendanceConfirmed {
			if err := tx.Bookings().UpdateStatus(ctx, booking.ID, model.BookingStatusCompleted); err != nil {
				return err
			}
			completed = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Attendance confirmed",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("confirmation_id", conf.ID),
		zap.String("party", string(party)),
		zap.Bool("attended", in.Attended),
		zap.Bool("completed", completed))

	if completed {
		for _, userID := range []int64{booking.StudentID, booking.TeacherID} {
			s.notifier.Notify(ctx, notify.Notification{
				UserID: userID,
				Kind:   notify.KindClassCompleted,
				Title:  "Clase completada",
				Body:   "Ambas partes confirmaron la clase. ¡Gracias!",
			})
		}
	}

	return conf, nil
}

// Get подтверждение по бронированию; видно только участникам
func (s *ConfirmationService) Get(ctx context.Context, actor model.Actor, bookingID int64) (*model.Confirmation, error) {
	conf, err := s.store.Confirmations().GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if conf == nil {
		return nil, domain.NewNotFound("confirmation")
	}
	if actor.UserID != conf.StudentID && actor.UserID != conf.TeacherID && actor.Role != model.RoleAdmin {
		return nil, domain.NewForbidden("not a participant of this booking")
	}
	return conf, nil
}
