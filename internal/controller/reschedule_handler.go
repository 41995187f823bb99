package controller

import (
	"net/http"

	"github.com/Freeeeeet/onlycation/internal/service"
	"github.com/gin-gonic/gin"
)

type proposeRequest struct {
	slotChangeRequest
	Reason string `json:"reason" binding:"max=500"`
}

type respondRequest struct {
	Approve *bool  `json:"approve" binding:"required"`
	Message string `json:"message" binding:"max=500"`
}

// POST /reschedule-requests
func (h *Handler) ProposeReschedule(c *gin.Context) {
	var req proposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}

	change, ok := h.slotChange(c, req.slotChangeRequest)
	if !ok {
		return
	}

	created, err := h.reschedule.Propose(c.Request.Context(), mustActor(c), service.ProposeInput{
		SlotChange: change,
		Reason:     req.Reason,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GET /reschedule-requests
func (h *Handler) ListReschedules(c *gin.Context) {
	items, err := h.reschedule.ListPending(c.Request.Context(), mustActor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reschedule_requests": items})
}

// POST /reschedule-requests/:id/respond
func (h *Handler) RespondReschedule(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		h.badRequest(c, "invalid reschedule request id")
		return
	}

	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}

	updated, err := h.reschedule.Respond(c.Request.Context(), mustActor(c), id, *req.Approve, req.Message)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
