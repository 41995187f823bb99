package controller

import (
	"strconv"
	"time"

	"github.com/Freeeeeet/onlycation/internal/clock"
	"github.com/gin-gonic/gin"
)

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// weekQuery ?week=YYYY-MM-DD в бизнес-зоне; без параметра текущая неделя
func (h *Handler) weekQuery(c *gin.Context) (time.Time, bool) {
	raw := c.Query("week")
	if raw == "" {
		return h.clock.Now().In(h.loc), true
	}
	week, err := clock.ParseDate(raw, h.loc)
	if err != nil {
		return time.Time{}, false
	}
	return week, true
}
