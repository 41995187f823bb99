package controller

import (
	"net/http"

	"github.com/Freeeeeet/onlycation/internal/service"
	"github.com/gin-gonic/gin"
)

type availabilityRequest struct {
	PreferenceID int64  `json:"preference_id" binding:"required,gt=0"`
	DayOfWeek    int    `json:"day_of_week" binding:"required,min=1,max=7"`
	Start        string `json:"start" binding:"required,hhmm"`
	End          string `json:"end" binding:"required,hhmm"`
}

type availabilityPatchRequest struct {
	DayOfWeek *int    `json:"day_of_week" binding:"omitempty,min=1,max=7"`
	Start     *string `json:"start" binding:"omitempty,hhmm"`
	End       *string `json:"end" binding:"omitempty,hhmm"`
	IsActive  *bool   `json:"is_active"`
}

// GET /availability
func (h *Handler) ListAvailability(c *gin.Context) {
	actor := mustActor(c)

	items, err := h.availability.List(c.Request.Context(), actor.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"availabilities": items})
}

// POST /availability
func (h *Handler) CreateAvailability(c *gin.Context) {
	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}

	created, err := h.availability.Create(c.Request.Context(), mustActor(c), service.AvailabilityInput{
		PreferenceID: req.PreferenceID,
		DayOfWeek:    req.DayOfWeek,
		Start:        req.Start,
		End:          req.End,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// PUT /availability/:id
func (h *Handler) UpdateAvailability(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		h.badRequest(c, "invalid availability id")
		return
	}

	var req availabilityPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}

	updated, err := h.availability.Update(c.Request.Context(), mustActor(c), id, service.AvailabilityPatch{
		DayOfWeek: req.DayOfWeek,
		Start:     req.Start,
		End:       req.End,
		IsActive:  req.IsActive,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DELETE /availability/:id
func (h *Handler) DeleteAvailability(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		h.badRequest(c, "invalid availability id")
		return
	}

	result, err := h.availability.Delete(c.Request.Context(), mustActor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GET /availability/agenda?week=YYYY-MM-DD
func (h *Handler) TeacherAgenda(c *gin.Context) {
	week, ok := h.weekQuery(c)
	if !ok {
		h.badRequest(c, "week must be YYYY-MM-DD")
		return
	}

	agenda, err := h.availability.WeeklyAgenda(c.Request.Context(), mustActor(c).UserID, week)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, agenda)
}

// GET /availability/public/:teacher_id/agenda
func (h *Handler) PublicAgenda(c *gin.Context) {
	teacherID, ok := paramID(c, "teacher_id")
	if !ok {
		h.badRequest(c, "invalid teacher id")
		return
	}
	week, ok := h.weekQuery(c)
	if !ok {
		h.badRequest(c, "week must be YYYY-MM-DD")
		return
	}

	agenda, err := h.availability.WeeklyAgenda(c.Request.Context(), teacherID, week)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, agenda)
}

// GET /availability/public/:teacher_id/agenda.png
func (h *Handler) PublicAgendaImage(c *gin.Context) {
	teacherID, ok := paramID(c, "teacher_id")
	if !ok {
		h.badRequest(c, "invalid teacher id")
		return
	}
	week, ok := h.weekQuery(c)
	if !ok {
		h.badRequest(c, "week must be YYYY-MM-DD")
		return
	}

	img, err := h.availability.AgendaImage(c.Request.Context(), teacherID, week)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", img)
}
