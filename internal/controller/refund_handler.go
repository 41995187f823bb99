package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type refundRequest struct {
	ConfirmationID int64 `json:"confirmation_id" binding:"required,gt=0"`
}

// POST /refunds/student
func (h *Handler) RequestRefund(c *gin.Context) {
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}

	outcome, err := h.refunds.RequestByStudent(c.Request.Context(), mustActor(c), req.ConfirmationID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if outcome.Refund == nil {
		// Возврат не положен: отдаём решение с причиной
		c.JSON(http.StatusOK, outcome)
		return
	}
	c.JSON(http.StatusCreated, outcome)
}

// GET /refunds
func (h *Handler) ListRefunds(c *gin.Context) {
	items, err := h.refunds.ListForStudent(c.Request.Context(), mustActor(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refunds": items})
}

// GET /wallet/balance
func (h *Handler) WalletBalance(c *gin.Context) {
	balance, err := h.wallet.Balance(c.Request.Context(), mustActor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}
