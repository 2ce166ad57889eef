package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"taxledger/internal/domain/dashboard"
)

// DashboardService serves admin totals.
type DashboardService interface {
	Get(ctx context.Context) (*dashboard.Totals, error)
}

// DashboardHandler handles GET /admin/dashboard.
type DashboardHandler struct {
	*BaseHandler
	service DashboardService
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(base *BaseHandler, service DashboardService) *DashboardHandler {
	return &DashboardHandler{BaseHandler: base, service: service}
}

// Get handles GET /admin/dashboard
func (h *DashboardHandler) Get(c *gin.Context) {
	totals, err := h.service.Get(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, totals)
}

// RegisterRoutes registers dashboard routes.
func (h *DashboardHandler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.GET("/dashboard", h.Get)
}
