package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// LivenessHandler answers the process-level probe. Model health lives under
// /monitoring/health.
type LivenessHandler struct {
	started time.Time
	now     func() time.Time
}

func NewLivenessHandler() *LivenessHandler {
	now := time.Now
	return &LivenessHandler{started: now(), now: now}
}

func (h *LivenessHandler) Health(c echo.Context) error {
	t := h.now().UTC()
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "ok",
		"service":        "agriloan",
		"time":           t.Format(time.RFC3339Nano),
		"uptime_seconds": int64(t.Sub(h.started).Seconds()),
	})
}
