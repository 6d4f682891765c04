package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/service"
)

type DashboardHandler struct {
	svc *service.DashboardService
}

func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

// Stats GET /dashboard/stats?refresh=true
func (h *DashboardHandler) Stats(c *gin.Context) {
	if c.Query("refresh") == "true" {
		h.svc.Invalidate(c.Request.Context())
	}
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, stats)
}
