package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gridquote/pricing-go/internal/services"
)

// SystemHandler exposes process resource usage for operators.
type SystemHandler struct {
	monitor *services.ResourceMonitor
}

// NewSystemHandler creates the system status handler.
func NewSystemHandler(monitor *services.ResourceMonitor) *SystemHandler {
	return &SystemHandler{
		monitor: monitor,
	}
}

// GetStatus handles GET /api/v1/system/status.
func (h *SystemHandler) GetStatus(c *gin.Context) {
	stats := h.monitor.GetSystemStats(c.Request.Context())
	c.JSON(http.StatusOK, stats)
}
