package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Freeeeeet/onlycation/internal/domain"
	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/Freeeeeet/onlycation/internal/notify"
	"github.com/Freeeeeet/onlycation/internal/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// completedBooking урок, который обе стороны подтвердили
func completedBooking(t *testing.T, env *testEnv) *model.Booking {
	t.Helper()
	b := env.book(studentActor, at(2025, 3, 3, 13, 0), at(2025, 3, 3, 14, 0))
	env.clock.T = at(2025, 3, 3, 14, 2)
	require.NoError(t, env.confirm(studentActor, model.PartyStudent, b.ID, true))
	require.NoError(t, env.confirm(teacherActor, model.PartyTeacher, b.ID, true))
	return b
}

func TestReconcileTransfersDuePayouts(t *testing.T) {
	env := newTestEnv(t, at(2025, 3, 3, 7, 0))
	b := completedBooking(t, env)
	p := env.payment(b.ID)
	env.processor.transfers[p.ExternalPaymentIntentID] = "tr_done"
	ctx := context.Background()

	// Ещё рано
	env.clock.T = p.TransferDate.Add(-time.Minute)
	report, err := env.payouts.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Due)

	env.clock.T = p.TransferDate
	report, err = env.payouts.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Transferred)

	p = env.payment(b.ID)
	assert.Equal(t, model.TransferStatusTransferred, p.TransferStatus)
	require.NotNil(t, p.ExternalTransferID)
	assert.Equal(t, "tr_done", *p.ExternalTransferID)
	assert.Contains(t, env.notifier.kinds(teacherID), notify.KindPayoutTransferred)

	report, err = env.payouts.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Due)
}

func TestReconcileSkipsUncompletedBookings(t *testing.T) {
	env := newTestEnv(t, at(2025, 3, 3, 7, 0))
	b := env.book(studentActor, at(2025, 3, 3, 13, 0), at(2025, 3, 3, 14, 0))

	env.clock.T = env.payment(b.ID).TransferDate.Add(time.Hour)
	report, err := env.payouts.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Due)
	assert.Zero(t, env.processor.transferCalls)
}

func TestReconcileMarksFailedAfterRetries(t *testing.T) {
	env := newTestEnv(t, at(2025, 3, 3, 7, 0))
	b := completedBooking(t, env)
	env.processor.transferErr = &payment.Error{Op: "retrieve payment intent", Code: "api_error", Err: errors.New("boom")}

	env.clock.T = env.payment(b.ID).TransferDate
	report, err := env.payouts.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1+payoutMaxRetries, env.processor.transferCalls)
	assert.Equal(t, model.TransferStatusFailed, env.payment(b.ID).TransferStatus)
}

func TestReconcileWaitsForTransfer(t *testing.T) {
	env := newTestEnv(t, at(2025, 3, 3, 7, 0))
	b := completedBooking(t, env)

	env.clock.T = env.payment(b.ID).TransferDate
	report, err := env.payouts.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Waiting)
	assert.Equal(t, 1, env.processor.transferCalls)
	assert.Equal(t, model.TransferStatusPending, env.payment(b.ID).TransferStatus)
}

func TestWalletBalance(t *testing.T) {
	env := newTestEnv(t, at(2025, 3, 3, 7, 0))
	ctx := context.Background()
	env.processor.balance = &payment.Balance{Available: []payment.Money{{Amount: 20000, Currency: "mxn"}}}

	bal, err := env.payouts.Balance(ctx, teacherActor)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), bal.Available[0].Amount)

	_, err = env.payouts.Balance(ctx, studentActor)
	assert.True(t, domain.IsForbidden(err))

	_, err = env.payouts.Balance(ctx, model.Actor{UserID: otherTeacherID, Role: model.RoleTeacher})
	assert.True(t, domain.IsNotFound(err))
}
