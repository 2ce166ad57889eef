package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"taxledger/internal/core/id"
	"taxledger/internal/domain"
	"taxledger/internal/domain/taxpayer"
	"taxledger/internal/infrastructure/http/v1/dto"
)

// TaxpayerService is the part of taxpayer.Service the handlers use.
type TaxpayerService interface {
	Create(ctx context.Context, in taxpayer.CreateInput) (*taxpayer.Taxpayer, error)
	Get(ctx context.Context, taxpayerID id.ID) (*taxpayer.Taxpayer, error)
	List(ctx context.Context, filter taxpayer.Filter) (domain.ListResult[*taxpayer.Taxpayer], error)
}

// TaxpayerHandler handles admin taxpayer management.
type TaxpayerHandler struct {
	*BaseHandler
	service TaxpayerService
}

// NewTaxpayerHandler creates a new taxpayer handler.
func NewTaxpayerHandler(base *BaseHandler, service TaxpayerService) *TaxpayerHandler {
	return &TaxpayerHandler{BaseHandler: base, service: service}
}

// List handles GET /admin/taxpayers
func (h *TaxpayerHandler) List(c *gin.Context) {
	var q dto.TaxpayerListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	result, err := h.service.List(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Create handles POST /admin/taxpayers
func (h *TaxpayerHandler) Create(c *gin.Context) {
	var req dto.CreateTaxpayerRequest
	if !h.BindJSON(c, &req) {
		return
	}
	t, err := h.service.Create(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, t)
}

// Get handles GET /admin/taxpayers/:id
func (h *TaxpayerHandler) Get(c *gin.Context) {
	taxpayerID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	t, err := h.service.Get(c.Request.Context(), taxpayerID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, t)
}

// RegisterRoutes registers taxpayer routes on the admin group.
func (h *TaxpayerHandler) RegisterRoutes(admin *gin.RouterGroup) {
	g := admin.Group("/taxpayers")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
}
