package controller

import (
	"errors"
	"net/http"

	"github.com/Freeeeeet/onlycation/internal/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
	BookingID *int64 `json:"booking_id,omitempty"`
}

func abortWithStatus(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     msg,
		Code:      code,
		RequestID: requestID(c),
	})
}

// statusOf маппинг доменной ошибки в HTTP статус, код и текст для клиента
func statusOf(err error) (int, string, string) {
	var (
		validationErr domain.ValidationError
		forbiddenErr  domain.ForbiddenError
		notFoundErr   domain.NotFoundError
		conflictErr   domain.ConflictError
		processorErr  domain.ProcessorError
	)

	switch {
	case errors.As(err, &validationErr):
		msg := validationErr.Msg
		if msg == "" {
			msg = validationErr.Error()
		}
		return http.StatusBadRequest, "validation_error", msg
	case errors.As(err, &forbiddenErr):
		return http.StatusForbidden, "forbidden", forbiddenErr.Error()
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound, "not_found", notFoundErr.Error()
	case errors.As(err, &conflictErr):
		msg := conflictErr.Msg
		if msg == "" {
			msg = conflictErr.Error()
		}
		return http.StatusConflict, "conflict", msg
	case errors.As(err, &processorErr):
		return http.StatusBadGateway, "payment_processor_error", "payment processor unavailable"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status, code, msg := statusOf(err)

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("request_id", requestID(c)),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     msg,
		Code:      code,
		RequestID: requestID(c),
	})
}

// badRequest ошибка разбора запроса до вызова сервиса
func (h *Handler) badRequest(c *gin.Context, msg string) {
	abortWithStatus(c, http.StatusBadRequest, "validation_error", msg)
}
