package controller

import (
	"net/http"
	"testing"
	"time"

	"github.com/Freeeeeet/onlycation/internal/domain"
	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/Freeeeeet/onlycation/internal/payment"
	"github.com/Freeeeeet/onlycation/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProposeReschedule(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/reschedule-requests", &teacher, gin.H{
		"booking_id":      4,
		"availability_id": 2,
		"start":           "2025-03-05T10:00:00-06:00",
		"end":             "2025-03-05T11:00:00-06:00",
		"reason":          "Tengo una junta",
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, api.reschedule.proposed)
	assert.Equal(t, int64(4), api.reschedule.proposed.BookingID)
	assert.Equal(t, int64(2), api.reschedule.proposed.AvailabilityID)
	assert.WithinDuration(t, time.Date(2025, 3, 5, 16, 0, 0, 0, time.UTC), api.reschedule.proposed.Start, 0)
	assert.Equal(t, "Tengo una junta", api.reschedule.proposed.Reason)

	rec = api.do(t, http.MethodPost, "/reschedule-requests", &student, gin.H{})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRespondRescheduleRequiresDecision(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/reschedule-requests/8/respond", &student, gin.H{"message": "ok"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/reschedule-requests/8/respond", &student, gin.H{"approve": false})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, api.reschedule.approve)
	assert.False(t, *api.reschedule.approve)
}

func TestRespondRescheduleExpired(t *testing.T) {
	api := newTestAPI(t)
	api.reschedule.err = domain.NewValidation(service.ReasonRescheduleExpired)

	rec := api.do(t, http.MethodPost, "/reschedule-requests/8/respond", &student, gin.H{"approve": true})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.ReasonRescheduleExpired, decodeError(t, rec).Error)
}

func TestRequestRefund(t *testing.T) {
	api := newTestAPI(t)
	api.refunds.outcome = &service.RefundOutcome{
		Decision: service.RefundDecision{Eligible: true, Type: model.RefundTypeTeacherDenied},
		Refund:   &model.RefundRequest{ID: 1},
	}

	rec := api.do(t, http.MethodPost, "/refunds/student", &student, gin.H{"confirmation_id": 3})
	assert.Equal(t, http.StatusCreated, rec.Code)

	api.refunds.outcome = &service.RefundOutcome{Decision: service.RefundDecision{Reason: "class too close"}}
	rec = api.do(t, http.MethodPost, "/refunds/student", &student, gin.H{"confirmation_id": 3})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"eligible":false`)

	rec = api.do(t, http.MethodPost, "/refunds/student", &student, gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWalletBalance(t *testing.T) {
	api := newTestAPI(t)
	api.wallet.balance = &payment.Balance{}

	rec := api.do(t, http.MethodGet, "/wallet/balance", &teacher, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	api.wallet.err = domain.NewNotFound("wallet")
	rec = api.do(t, http.MethodGet, "/wallet/balance", &teacher, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
