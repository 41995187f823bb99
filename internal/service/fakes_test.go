package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/onlycation/internal/clock"
	"github.com/Freeeeeet/onlycation/internal/config"
	"github.com/Freeeeeet/onlycation/internal/evidence"
	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/Freeeeeet/onlycation/internal/notify"
	"github.com/Freeeeeet/onlycation/internal/payment"
	"github.com/Freeeeeet/onlycation/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memData всё состояние in-memory хранилища; клонируется для отката транзакций
type memData struct {
	users          map[int64]model.User
	wallets        map[int64]model.TeacherWallet
	plans          map[int64]model.SubscriptionPlan
	availabilities map[int64]model.Availability
	prices         map[int64]model.Price
	bookings       map[int64]model.Booking
	payments       map[int64]model.PaymentBooking
	confirmations  map[int64]model.Confirmation
	reschedules    map[int64]model.RescheduleRequest
	refunds        []model.RefundRequest
	evidence       map[uuid.UUID]model.EvidenceFile
	events         map[string]model.PaymentEvent
	notifications  []model.Notification
}

func newMemData() *memData {
	return &memData{
		users:          map[int64]model.User{},
		wallets:        map[int64]model.TeacherWallet{},
		plans:          map[int64]model.SubscriptionPlan{},
		availabilities: map[int64]model.Availability{},
		prices:         map[int64]model.Price{},
		bookings:       map[int64]model.Booking{},
		payments:       map[int64]model.PaymentBooking{},
		confirmations:  map[int64]model.Confirmation{},
		reschedules:    map[int64]model.RescheduleRequest{},
		evidence:       map[uuid.UUID]model.EvidenceFile{},
		events:         map[string]model.PaymentEvent{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *memData) clone() *memData {
	return &memData{
		users:          cloneMap(d.users),
		wallets:        cloneMap(d.wallets),
		plans:          cloneMap(d.plans),
		availabilities: cloneMap(d.availabilities),
		prices:         cloneMap(d.prices),
		bookings:       cloneMap(d.bookings),
		payments:       cloneMap(d.payments),
		confirmations:  cloneMap(d.confirmations),
		reschedules:    cloneMap(d.reschedules),
		refunds:        append([]model.RefundRequest(nil), d.refunds...),
		evidence:       cloneMap(d.evidence),
		events:         cloneMap(d.events),
		notifications:  append([]model.Notification(nil), d.notifications...),
	}
}

// memStore реализация repository.Store поверх map'ов
type memStore struct {
	mu  sync.Mutex
	d   *memData
	seq int64

	userLocks []int64
}

func newMemStore() *memStore {
	return &memStore{d: newMemData()}
}

func (s *memStore) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *memStore) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	s.mu.Lock()
	snapshot := s.d.clone()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.d = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) Users() repository.Users                     { return memUsers{s} }
func (s *memStore) Wallets() repository.Wallets                 { return memWallets{s} }
func (s *memStore) Plans() repository.Plans                     { return memPlans{s} }
func (s *memStore) Availabilities() repository.Availabilities   { return memAvailabilities{s} }
func (s *memStore) Prices() repository.Prices                   { return memPrices{s} }
func (s *memStore) Bookings() repository.Bookings               { return memBookings{s} }
func (s *memStore) PaymentBookings() repository.PaymentBookings { return memPayments{s} }
func (s *memStore) Confirmations() repository.Confirmations     { return memConfirmations{s} }
func (s *memStore) Reschedules() repository.Reschedules         { return memReschedules{s} }
func (s *memStore) Refunds() repository.Refunds                 { return memRefunds{s} }
func (s *memStore) Evidence() repository.Evidence               { return memEvidence{s} }
func (s *memStore) PaymentEvents() repository.PaymentEvents     { return memEvents{s} }
func (s *memStore) Notifications() repository.Notifications     { return memNotifications{s} }

// --- users / wallets / plans / prices ---

type memUsers struct{ s *memStore }

func (r memUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.d.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r memUsers) LockForUpdate(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.userLocks = append(r.s.userLocks, id)
	return nil
}

type memWallets struct{ s *memStore }

func (r memWallets) GetByTeacherID(_ context.Context, teacherID int64) (*model.TeacherWallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.d.wallets[teacherID]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r memWallets) UpdateStatusByAccount(_ context.Context, accountID string, status model.WalletStatus) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, w := range r.s.d.wallets {
		if w.StripeAccountID == accountID && w.Status != status {
			w.Status = status
			r.s.d.wallets[id] = w
			n++
		}
	}
	return n, nil
}

type memPlans struct{ s *memStore }

func (r memPlans) GetActiveForTeacher(_ context.Context, teacherID int64, _ time.Time) (*model.SubscriptionPlan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.d.plans[teacherID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

type memPrices struct{ s *memStore }

func (r memPrices) GetByID(_ context.Context, id int64) (*model.Price, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.d.prices[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// --- availabilities ---

type memAvailabilities struct{ s *memStore }

func (r memAvailabilities) Create(_ context.Context, a *model.Availability) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a.ID = r.s.nextID()
	r.s.d.availabilities[a.ID] = *a
	return nil
}

func (r memAvailabilities) GetByID(_ context.Context, id int64) (*model.Availability, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.d.availabilities[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r memAvailabilities) GetByIDForUpdate(ctx context.Context, id int64) (*model.Availability, error) {
	return r.GetByID(ctx, id)
}

func (r memAvailabilities) ListByTeacher(_ context.Context, teacherID int64) ([]*model.Availability, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Availability
	for _, a := range r.s.d.availabilities {
		if a.TeacherID == teacherID {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].StartHour < out[j].StartHour
	})
	return out, nil
}

func (r memAvailabilities) Update(_ context.Context, a *model.Availability) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.d.availabilities[a.ID]; !ok {
		return fmt.Errorf("availability not found")
	}
	r.s.d.availabilities[a.ID] = *a
	return nil
}

func (r memAvailabilities) Deactivate(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a := r.s.d.availabilities[id]
	a.IsActive = false
	r.s.d.availabilities[id] = a
	return nil
}

func (r memAvailabilities) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.d.availabilities, id)
	return nil
}

// --- bookings ---

type memBookings struct{ s *memStore }

func (r memBookings) Create(_ context.Context, b *model.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b.ID = r.s.nextID()
	r.s.d.bookings[b.ID] = *b
	return nil
}

func (r memBookings) GetByID(_ context.Context, id int64) (*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.d.bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r memBookings) SetRoomLink(_ context.Context, id int64, link string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b := r.s.d.bookings[id]
	b.RoomLink = link
	r.s.d.bookings[id] = b
	return nil
}

func (r memBookings) UpdateStatus(_ context.Context, id int64, status model.BookingStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b := r.s.d.bookings[id]
	b.Status = status
	r.s.d.bookings[id] = b
	return nil
}

func (r memBookings) UpdateSlot(_ context.Context, id, availabilityID int64, start, end time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.d.bookings[id]
	if !ok || b.Status != model.BookingStatusActive {
		return fmt.Errorf("booking not found")
	}
	b.AvailabilityID, b.StartTime, b.EndTime = availabilityID, start, end
	r.s.d.bookings[id] = b
	return nil
}

func (r memBookings) anyOverlap(match func(b model.Booking) bool, start, end time.Time, excludeID int64) bool {
	for _, b := range r.s.d.bookings {
		if b.ID == excludeID || b.Status == model.BookingStatusCancelled || !match(b) {
			continue
		}
		if model.Overlaps(b.StartTime, b.EndTime, start, end) {
			return true
		}
	}
	return false
}

func (r memBookings) HasOverlapOnAvailability(_ context.Context, availabilityID int64, start, end time.Time, excludeID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.anyOverlap(func(b model.Booking) bool { return b.AvailabilityID == availabilityID }, start, end, excludeID), nil
}

func (r memBookings) HasOverlapForStudent(_ context.Context, studentID int64, start, end time.Time, excludeID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.anyOverlap(func(b model.Booking) bool { return b.StudentID == studentID }, start, end, excludeID), nil
}

func (r memBookings) CountByAvailability(_ context.Context, availabilityID int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, b := range r.s.d.bookings {
		if b.AvailabilityID == availabilityID {
			n++
		}
	}
	return n, nil
}

func (r memBookings) CountFutureByAvailability(_ context.Context, availabilityID int64, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, b := range r.s.d.bookings {
		if b.AvailabilityID == availabilityID && b.Status != model.BookingStatusCancelled && b.StartTime.After(now) {
			n++
		}
	}
	return n, nil
}

func (r memBookings) filter(keep func(b model.Booking) bool) []*model.Booking {
	var out []*model.Booking
	for _, b := range r.s.d.bookings {
		if keep(b) {
			b := b
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

func (r memBookings) ListActiveForTeacherBetween(_ context.Context, teacherID int64, from, to time.Time) ([]*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.filter(func(b model.Booking) bool {
		return b.TeacherID == teacherID && b.Status != model.BookingStatusCancelled && model.Overlaps(b.StartTime, b.EndTime, from, to)
	}), nil
}

func (r memBookings) ListByStudent(_ context.Context, studentID int64) ([]*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.filter(func(b model.Booking) bool { return b.StudentID == studentID }), nil
}

func (r memBookings) ListByTeacher(_ context.Context, teacherID int64) ([]*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.filter(func(b model.Booking) bool { return b.TeacherID == teacherID }), nil
}

// --- payment bookings ---

type memPayments struct{ s *memStore }

func (r memPayments) Create(_ context.Context, p *model.PaymentBooking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.d.payments {
		if other.ExternalPaymentIntentID == p.ExternalPaymentIntentID || other.BookingID == p.BookingID {
			return fmt.Errorf("create payment booking: %w", repository.ErrDuplicate)
		}
	}
	p.ID = r.s.nextID()
	r.s.d.payments[p.ID] = *p
	return nil
}

func (r memPayments) find(match func(p model.PaymentBooking) bool) *model.PaymentBooking {
	for _, p := range r.s.d.payments {
		if match(p) {
			p := p
			return &p
		}
	}
	return nil
}

func (r memPayments) GetByID(_ context.Context, id int64) (*model.PaymentBooking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.find(func(p model.PaymentBooking) bool { return p.ID == id }), nil
}

func (r memPayments) GetByBookingID(_ context.Context, bookingID int64) (*model.PaymentBooking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.find(func(p model.PaymentBooking) bool { return p.BookingID == bookingID }), nil
}

func (r memPayments) GetByPaymentIntentID(_ context.Context, paymentIntentID string) (*model.PaymentBooking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.find(func(p model.PaymentBooking) bool { return p.ExternalPaymentIntentID == paymentIntentID }), nil
}

func (r memPayments) update(id int64, guard func(p model.PaymentBooking) bool, apply func(p *model.PaymentBooking)) bool {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.d.payments[id]
	if !ok || !guard(p) {
		return false
	}
	apply(&p)
	r.s.d.payments[id] = p
	return true
}

func (r memPayments) MarkRefunded(_ context.Context, id int64, transferStatus model.TransferStatus) (bool, error) {
	return r.update(id,
		func(p model.PaymentBooking) bool { return p.RefundState == model.RefundStateNone },
		func(p *model.PaymentBooking) {
			p.RefundState = model.RefundStateProcessed
			p.TransferStatus = transferStatus
		}), nil
}

func (r memPayments) ListDueForPayout(_ context.Context, now time.Time) ([]*model.PaymentBooking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.PaymentBooking
	for _, p := range r.s.d.payments {
		b := r.s.d.bookings[p.BookingID]
		if p.TransferStatus == model.TransferStatusPending && p.RefundState == model.RefundStateNone &&
			!p.TransferDate.After(now) && b.Status == model.BookingStatusCompleted {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memPayments) MarkTransferred(_ context.Context, id int64, transferID string) (bool, error) {
	return r.update(id,
		func(p model.PaymentBooking) bool {
			return p.TransferStatus == model.TransferStatusPending && p.RefundState == model.RefundStateNone
		},
		func(p *model.PaymentBooking) {
			p.TransferStatus = model.TransferStatusTransferred
			p.ExternalTransferID = &transferID
		}), nil
}

func (r memPayments) MarkTransferFailed(_ context.Context, id int64) (bool, error) {
	return r.update(id,
		func(p model.PaymentBooking) bool { return p.TransferStatus == model.TransferStatusPending },
		func(p *model.PaymentBooking) { p.TransferStatus = model.TransferStatusFailed }), nil
}

// --- confirmations ---

type memConfirmations struct{ s *memStore }

func (r memConfirmations) Create(_ context.Context, c *model.Confirmation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.d.confirmations {
		if other.PaymentBookingID == c.PaymentBookingID {
			return fmt.Errorf("create confirmation: %w", repository.ErrDuplicate)
		}
	}
	c.ID = r.s.nextID()
	r.s.d.confirmations[c.ID] = *c
	return nil
}

func (r memConfirmations) GetByID(_ context.Context, id int64) (*model.Confirmation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.d.confirmations[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r memConfirmations) GetByBookingID(_ context.Context, bookingID int64) (*model.Confirmation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.d.confirmations {
		if c.BookingID == bookingID {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (r memConfirmations) SetMark(_ context.Context, id int64, mark model.ConfirmationMark) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.d.confirmations[id]
	if !ok || c.Of(mark.Party).IsSet() {
		return false, nil
	}
	desc, ref, at := mark.Description, mark.EvidenceRef, mark.At
	if mark.Party == model.PartyTeacher {
		c.TeacherConfirmed, c.TeacherDescription, c.TeacherEvidenceRef, c.TeacherConfirmedAt = mark.Attendance, &desc, &ref, &at
	} else {
		c.StudentConfirmed, c.StudentDescription, c.StudentEvidenceRef, c.StudentConfirmedAt = mark.Attendance, &desc, &ref, &at
	}
	r.s.d.confirmations[id] = c
	return true, nil
}

func (r memConfirmations) ListRefundCandidates(_ context.Context, now time.Time) ([]*model.Confirmation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Confirmation
	for _, c := range r.s.d.confirmations {
		b := r.s.d.bookings[c.BookingID]
		p := r.s.d.payments[c.PaymentBookingID]
		if b.EndTime.After(now) || b.Status == model.BookingStatusCancelled || p.RefundState != model.RefundStateNone {
			continue
		}
		if c.TeacherConfirmed == model.AttendanceConfirmed || c.StudentConfirmed == model.AttendanceDenied {
			continue
		}
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- reschedules ---

type memReschedules struct{ s *memStore }

func (r memReschedules) Create(_ context.Context, req *model.RescheduleRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.d.reschedules {
		if other.BookingID == req.BookingID && other.Status == model.RescheduleStatusPending {
			return fmt.Errorf("create reschedule request: %w", repository.ErrDuplicate)
		}
	}
	req.ID = r.s.nextID()
	r.s.d.reschedules[req.ID] = *req
	return nil
}

func (r memReschedules) GetByID(_ context.Context, id int64) (*model.RescheduleRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.d.reschedules[id]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

func (r memReschedules) HasPending(_ context.Context, bookingID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, req := range r.s.d.reschedules {
		if req.BookingID == bookingID && req.Status == model.RescheduleStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (r memReschedules) Resolve(_ context.Context, id int64, res model.RescheduleResolution) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.d.reschedules[id]
	if !ok || req.Status != model.RescheduleStatusPending {
		return false, nil
	}
	req.Status = res.Status
	if res.Message != nil {
		req.StudentMessage = res.Message
	}
	if res.Note != nil {
		req.Note = res.Note
	}
	at := res.At
	req.RespondedAt = &at
	r.s.d.reschedules[id] = req
	return true, nil
}

func (r memReschedules) expire(match func(req model.RescheduleRequest) bool) int64 {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, req := range r.s.d.reschedules {
		if req.Status == model.RescheduleStatusPending && match(req) {
			req.Status = model.RescheduleStatusExpired
			r.s.d.reschedules[id] = req
			n++
		}
	}
	return n
}

func (r memReschedules) ExpireForBooking(_ context.Context, bookingID int64, now time.Time) (int64, error) {
	return r.expire(func(req model.RescheduleRequest) bool {
		return req.BookingID == bookingID && req.ExpiresAt.Before(now)
	}), nil
}

func (r memReschedules) ExpireStale(_ context.Context, now time.Time) (int64, error) {
	return r.expire(func(req model.RescheduleRequest) bool { return req.ExpiresAt.Before(now) }), nil
}

func (r memReschedules) ListPendingForUser(_ context.Context, userID int64) ([]*model.RescheduleRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.RescheduleRequest
	for _, req := range r.s.d.reschedules {
		if req.Status == model.RescheduleStatusPending && (req.TeacherID == userID || req.StudentID == userID) {
			req := req
			out = append(out, &req)
		}
	}
	return out, nil
}

// --- refunds / evidence / events / notifications ---

type memRefunds struct{ s *memStore }

func (r memRefunds) Create(_ context.Context, req *model.RefundRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if req.Status == model.RefundStatusProcessed {
		for _, other := range r.s.d.refunds {
			if other.PaymentBookingID == req.PaymentBookingID && other.Status == model.RefundStatusProcessed {
				return fmt.Errorf("create refund request: %w", repository.ErrDuplicate)
			}
		}
	}
	req.ID = r.s.nextID()
	r.s.d.refunds = append(r.s.d.refunds, *req)
	return nil
}

func (r memRefunds) ListByStudent(_ context.Context, studentID int64) ([]*model.RefundRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.RefundRequest
	for _, req := range r.s.d.refunds {
		if req.StudentID == studentID {
			req := req
			out = append(out, &req)
		}
	}
	return out, nil
}

type memEvidence struct{ s *memStore }

func (r memEvidence) Create(_ context.Context, f *model.EvidenceFile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.d.evidence[f.ID] = *f
	return nil
}

type memEvents struct{ s *memStore }

func (r memEvents) Record(_ context.Context, e *model.PaymentEvent) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.d.events[e.EventID]; ok && existing.Status != "failed" {
		return false, nil
	}
	r.s.d.events[e.EventID] = *e
	return true, nil
}

func (r memEvents) MarkDone(_ context.Context, eventID, status string, errMsg *string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e := r.s.d.events[eventID]
	e.Status, e.Error, e.ProcessedAt = status, errMsg, &at
	r.s.d.events[eventID] = e
	return nil
}

type memNotifications struct{ s *memStore }

func (r memNotifications) Create(_ context.Context, n *model.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n.ID = r.s.nextID()
	r.s.d.notifications = append(r.s.d.notifications, *n)
	return nil
}

func (r memNotifications) ListByUser(_ context.Context, userID int64, limit int) ([]*model.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Notification
	for i := len(r.s.d.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		if n := r.s.d.notifications[i]; n.UserID == userID {
			out = append(out, &n)
		}
	}
	return out, nil
}

// --- payment processor ---

type fakeProcessor struct {
	mu sync.Mutex
	n  int

	sessions  map[string]*payment.Session
	checkouts []payment.CheckoutSpec
	refunds   []payment.RefundSpec
	reversals []payment.ReversalSpec

	refundErr     error
	reversalErr   error
	transfers     map[string]string
	transferErr   error
	transferCalls int
	balance       *payment.Balance
	events        map[string]*payment.Event
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		sessions:  map[string]*payment.Session{},
		transfers: map[string]string{},
		events:    map[string]*payment.Event{},
	}
}

func (p *fakeProcessor) CreateCheckoutSession(_ context.Context, spec payment.CheckoutSpec) (*payment.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	id := fmt.Sprintf("cs_test_%d", p.n)
	var total int64
	for _, li := range spec.LineItems {
		total += li.UnitAmount * li.Quantity
	}
	p.sessions[id] = &payment.Session{
		ID:              id,
		PaymentStatus:   payment.PaymentStatusUnpaid,
		PaymentIntentID: fmt.Sprintf("pi_test_%d", p.n),
		AmountTotal:     total,
		Metadata:        spec.Metadata,
	}
	p.checkouts = append(p.checkouts, spec)
	return &payment.CheckoutSession{ID: id, URL: "https://checkout.test/" + id}, nil
}

func (p *fakeProcessor) pay(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[sessionID].PaymentStatus = payment.PaymentStatusPaid
}

func (p *fakeProcessor) RetrieveSession(_ context.Context, sessionID string) (*payment.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[sessionID]
	if !ok {
		return nil, &payment.Error{Op: "retrieve session", Code: "resource_missing", Err: errors.New("no such session")}
	}
	cp := *s
	return &cp, nil
}

func (p *fakeProcessor) CreateRefund(_ context.Context, spec payment.RefundSpec) (*payment.Refund, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refundErr != nil {
		return nil, p.refundErr
	}
	p.refunds = append(p.refunds, spec)
	return &payment.Refund{ID: fmt.Sprintf("re_test_%d", len(p.refunds)), Status: "succeeded", Amount: spec.Amount}, nil
}

func (p *fakeProcessor) ReverseTransfer(_ context.Context, spec payment.ReversalSpec) (*payment.Reversal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reversalErr != nil {
		return nil, p.reversalErr
	}
	p.reversals = append(p.reversals, spec)
	return &payment.Reversal{ID: fmt.Sprintf("trr_test_%d", len(p.reversals)), Status: "succeeded", Amount: spec.Amount}, nil
}

func (p *fakeProcessor) RetrieveBalance(_ context.Context, accountID string) (*payment.Balance, error) {
	if p.balance == nil {
		return nil, &payment.Error{Op: "retrieve balance", Code: "account_invalid", Err: errors.New(accountID)}
	}
	return p.balance, nil
}

func (p *fakeProcessor) RetrievePaymentTransfer(_ context.Context, paymentIntentID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transferCalls++
	if p.transferErr != nil {
		return "", p.transferErr
	}
	id, ok := p.transfers[paymentIntentID]
	if !ok {
		return "", payment.ErrNoTransfer
	}
	return id, nil
}

func (p *fakeProcessor) VerifyWebhook(_ []byte, signature string) (*payment.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ev, ok := p.events[signature]
	if !ok {
		return nil, payment.ErrInvalidSignature
	}
	return ev, nil
}

// --- notifier ---

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) kinds(userID int64) []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Kind
	for _, n := range r.sent {
		if n.UserID == userID {
			out = append(out, n.Kind)
		}
	}
	return out
}

func (r *recordingNotifier) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

// --- fixture ---

const (
	teacherID      int64 = 10
	studentID      int64 = 20
	otherStudentID int64 = 21
	otherTeacherID int64 = 11
	accountID            = "acct_teacher"
)

var businessZone = clock.BusinessZone(-6)

// at момент в зоне бизнеса (UTC-6)
func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, businessZone).UTC()
}

type testEnv struct {
	t         *testing.T
	store     *memStore
	processor *fakeProcessor
	notifier  *recordingNotifier
	clock     *clock.Fixed
	policy    config.Policy

	availability  *AvailabilityService
	bookings      *BookingService
	confirmations *ConfirmationService
	reschedules   *RescheduleService
	refunds       *RefundService
	payouts       *PayoutService

	availabilityID int64
	priceID        int64
}

var (
	studentActor = model.Actor{UserID: studentID, Role: model.RoleStudent}
	teacherActor = model.Actor{UserID: teacherID, Role: model.RoleTeacher}
)

// newTestEnv учитель с окном по понедельникам 08:00-20:00 и тарифом 250/125
func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()

	st := newMemStore()
	d := st.d
	for _, u := range []model.User{
		{ID: teacherID, Email: "teacher@test.mx", FirstName: "Ana", LastName: "López", Role: model.RoleTeacher, IsActive: true},
		{ID: otherTeacherID, Email: "other@test.mx", FirstName: "Luis", Role: model.RoleTeacher, IsActive: true},
		{ID: studentID, Email: "student@test.mx", FirstName: "Pablo", Role: model.RoleStudent, IsActive: true},
		{ID: otherStudentID, Email: "student2@test.mx", FirstName: "Sara", Role: model.RoleStudent, IsActive: true},
	} {
		d.users[u.ID] = u
	}
	d.wallets[teacherID] = model.TeacherWallet{TeacherID: teacherID, StripeAccountID: accountID, Status: model.WalletStatusActive}
	st.seq = 100

	env := &testEnv{
		t:         t,
		store:     st,
		processor: newFakeProcessor(),
		notifier:  &recordingNotifier{},
		clock:     &clock.Fixed{T: now},
		policy:    config.DefaultPolicy(),
	}

	avail := &model.Availability{TeacherID: teacherID, PreferenceID: 1, DayOfWeek: 1, StartHour: 8, EndHour: 20, IsActive: true}
	require.NoError(t, st.Availabilities().Create(context.Background(), avail))
	env.availabilityID = avail.ID

	env.priceID = st.nextID()
	d.prices[env.priceID] = model.Price{
		ID:             env.priceID,
		TeacherID:      teacherID,
		PreferenceID:   1,
		PreferenceName: "Matemáticas",
		FirstHourPrice: decimal.NewFromInt(250),
		ExtraHourPrice: decimal.NewFromInt(125),
		IsActive:       true,
	}

	vault, err := evidence.NewVault("test-evidence-key")
	require.NoError(t, err)

	logger := zap.NewNop()
	urls := CheckoutURLs{Success: "https://app.test/ok", Cancel: "https://app.test/cancel"}

	env.availability = NewAvailabilityService(st, env.clock, businessZone, logger)
	env.bookings = NewBookingService(st, env.processor, env.notifier, env.clock, env.policy, businessZone, urls, logger)
	env.confirmations = NewConfirmationService(st, vault, env.notifier, env.clock, env.policy, logger)
	env.reschedules = NewRescheduleService(st, env.notifier, env.clock, env.policy, businessZone, logger)
	env.refunds = NewRefundService(st, env.processor, env.notifier, env.clock, env.policy, businessZone, logger)
	env.payouts = NewPayoutService(st, env.processor, env.notifier, env.clock, logger)
	env.payouts.retryBase = time.Millisecond

	return env
}

// book проходит checkout → оплата → verify и возвращает бронирование
func (e *testEnv) book(actor model.Actor, start, end time.Time) *model.Booking {
	e.t.Helper()
	ctx := context.Background()

	res, err := e.bookings.CreateCheckout(ctx, actor, CheckoutRequest{
		AvailabilityID: e.availabilityID,
		PriceID:        e.priceID,
		Start:          start,
		End:            end,
	})
	require.NoError(e.t, err)
	e.processor.pay(res.SessionID)

	b, err := e.bookings.Verify(ctx, actor, res.SessionID)
	require.NoError(e.t, err)
	return b
}

func (e *testEnv) payment(bookingID int64) *model.PaymentBooking {
	e.t.Helper()
	p, err := e.store.PaymentBookings().GetByBookingID(context.Background(), bookingID)
	require.NoError(e.t, err)
	require.NotNil(e.t, p)
	return p
}

func (e *testEnv) confirmation(bookingID int64) *model.Confirmation {
	e.t.Helper()
	c, err := e.store.Confirmations().GetByBookingID(context.Background(), bookingID)
	require.NoError(e.t, err)
	require.NotNil(e.t, c)
	return c
}

func (e *testEnv) booking(id int64) *model.Booking {
	e.t.Helper()
	b, err := e.store.Bookings().GetByID(context.Background(), id)
	require.NoError(e.t, err)
	require.NotNil(e.t, b)
	return b
}

func (e *testEnv) confirm(actor model.Actor, party model.Party, bookingID int64, attended bool) error {
	_, err := e.confirmations.Confirm(context.Background(), actor, party, ConfirmInput{
		BookingID:   bookingID,
		Attended:    attended,
		Description: "clase de álgebra",
		Evidence:    EvidenceUpload{ContentType: "image/png", Data: []byte("\x89PNG fake")},
	})
	return err
}

func mustParseUUID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	require.NoError(t, err)
	return id
}
