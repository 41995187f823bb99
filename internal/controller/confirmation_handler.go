package controller

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/Freeeeeet/onlycation/internal/service"
	"github.com/gin-gonic/gin"
)

// POST /confirmations/teacher
func (h *Handler) ConfirmTeacher(c *gin.Context) {
	h.confirm(c, model.PartyTeacher)
}

// POST /confirmations/student
func (h *Handler) ConfirmStudent(c *gin.Context) {
	h.confirm(c, model.PartyStudent)
}

// confirm multipart: booking_id, attended, description, evidence
func (h *Handler) confirm(c *gin.Context, party model.Party) {
	// Запас на остальные поля формы
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxEvidenceSize+1<<20)

	if _, err := c.MultipartForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.badRequest(c, "evidence file too large")
			return
		}
		h.badRequest(c, "multipart form expected")
		return
	}

	bookingID, err := strconv.ParseInt(c.PostForm("booking_id"), 10, 64)
	if err != nil || bookingID <= 0 {
		h.badRequest(c, "booking_id is required")
		return
	}
	attended, err := strconv.ParseBool(c.PostForm("attended"))
	if err != nil {
		h.badRequest(c, "attended must be true or false")
		return
	}

	evidence, ok := h.readEvidence(c)
	if !ok {
		return
	}

	in := service.ConfirmInput{
		BookingID:   bookingID,
		Attended:    attended,
		Description: c.PostForm("description"),
		Evidence:    evidence,
	}

	var conf *model.Confirmation
	if party == model.PartyTeacher {
		conf, err = h.confirmation.ConfirmTeacher(c.Request.Context(), mustActor(c), in)
	} else {
		conf, err = h.confirmation.ConfirmStudent(c.Request.Context(), mustActor(c), in)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conf)
}

func (h *Handler) readEvidence(c *gin.Context) (service.EvidenceUpload, bool) {
	header, err := c.FormFile("evidence")
	if err != nil {
		h.badRequest(c, "evidence file is required")
		return service.EvidenceUpload{}, false
	}
	if header.Size > h.maxEvidenceSize {
		h.badRequest(c, "evidence file too large")
		return service.EvidenceUpload{}, false
	}

	f, err := header.Open()
	if err != nil {
		h.badRequest(c, "cannot read evidence file")
		return service.EvidenceUpload{}, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxEvidenceSize+1))
	if err != nil {
		h.badRequest(c, "cannot read evidence file")
		return service.EvidenceUpload{}, false
	}
	if int64(len(data)) > h.maxEvidenceSize {
		h.badRequest(c, "evidence file too large")
		return service.EvidenceUpload{}, false
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	return service.EvidenceUpload{ContentType: contentType, Data: data}, true
}

// GET /confirmations/:booking_id
func (h *Handler) GetConfirmation(c *gin.Context) {
	bookingID, ok := paramID(c, "booking_id")
	if !ok {
		h.badRequest(c, "invalid booking id")
		return
	}

	conf, err := h.confirmation.Get(c.Request.Context(), mustActor(c), bookingID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conf)
}
