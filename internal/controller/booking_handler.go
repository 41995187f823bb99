package controller

import (
	"io"
	"net/http"
	"time"

	"github.com/Freeeeeet/onlycation/internal/clock"
	"github.com/Freeeeeet/onlycation/internal/domain"
	"github.com/Freeeeeet/onlycation/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookPayload = 1 << 16

type checkoutRequest struct {
	AvailabilityID int64  `json:"availability_id" binding:"required,gt=0"`
	PriceID        int64  `json:"price_id" binding:"required,gt=0"`
	Start          string `json:"start" binding:"required"`
	End            string `json:"end" binding:"required"`
}

type slotChangeRequest struct {
	BookingID      int64  `json:"booking_id" binding:"required,gt=0"`
	AvailabilityID int64  `json:"availability_id" binding:"required,gt=0"`
	Start          string `json:"start" binding:"required"`
	End            string `json:"end" binding:"required"`
}

// parseInterval RFC3339 или локальное время зоны бизнеса
func (h *Handler) parseInterval(start, end string) (time.Time, time.Time, bool) {
	s, err := clock.ParseInstant(start, h.loc)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	e, err := clock.ParseInstant(end, h.loc)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return s, e, true
}

func (h *Handler) slotChange(c *gin.Context, r slotChangeRequest) (service.SlotChange, bool) {
	start, end, ok := h.parseInterval(r.Start, r.End)
	if !ok {
		h.badRequest(c, "start and end must be RFC3339 or YYYY-MM-DDTHH:MM")
		return service.SlotChange{}, false
	}
	return service.SlotChange{
		BookingID:      r.BookingID,
		AvailabilityID: r.AvailabilityID,
		Start:          start,
		End:            end,
	}, true
}

// POST /bookings
func (h *Handler) CreateBooking(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}
	start, end, ok := h.parseInterval(req.Start, req.End)
	if !ok {
		h.badRequest(c, "start and end must be RFC3339 or YYYY-MM-DDTHH:MM")
		return
	}

	result, err := h.bookings.CreateCheckout(c.Request.Context(), mustActor(c), service.CheckoutRequest{
		AvailabilityID: req.AvailabilityID,
		PriceID:        req.PriceID,
		Start:          start,
		End:            end,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// GET /bookings/verify/:session_id
func (h *Handler) VerifyBooking(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		h.badRequest(c, "session_id is required")
		return
	}

	booking, err := h.bookings.Verify(c.Request.Context(), mustActor(c), sessionID)
	if err != nil {
		// Повторная верификация: клиенту нужен id уже созданного бронирования
		if domain.IsConflict(err) && booking != nil {
			c.AbortWithStatusJSON(http.StatusConflict, ErrorResponse{
				Error:     service.ReasonAlreadyVerified,
				Code:      "conflict",
				RequestID: requestID(c),
				BookingID: &booking.ID,
			})
			return
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// GET /bookings
func (h *Handler) ListBookings(c *gin.Context) {
	items, err := h.bookings.List(c.Request.Context(), mustActor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": items})
}

// GET /bookings/:id
func (h *Handler) GetBooking(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		h.badRequest(c, "invalid booking id")
		return
	}

	details, err := h.bookings.Get(c.Request.Context(), mustActor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// PUT /bookings/reschedule
func (h *Handler) StudentReschedule(c *gin.Context) {
	var req slotChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}

	change, ok := h.slotChange(c, req)
	if !ok {
		return
	}

	booking, err := h.reschedule.StudentReschedule(c.Request.Context(), mustActor(c), change)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// POST /webhooks/stripe
func (h *Handler) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookPayload))
	if err != nil {
		h.badRequest(c, "cannot read payload")
		return
	}

	if err := h.bookings.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		if !domain.IsValidation(err) {
			h.logger.Error("Webhook processing failed",
				zap.String("request_id", requestID(c)),
				zap.Error(err),
			)
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
