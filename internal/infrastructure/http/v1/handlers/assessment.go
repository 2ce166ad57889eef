package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"taxledger/internal/core/id"
	"taxledger/internal/domain"
	"taxledger/internal/domain/assessment"
	"taxledger/internal/domain/payment"
	"taxledger/internal/infrastructure/http/v1/dto"
)

// AssessmentService is the part of assessment.Service the handlers use.
type AssessmentService interface {
	Create(ctx context.Context, in assessment.CreateInput) (*assessment.Assessment, error)
	Get(ctx context.Context, assessmentID id.ID) (*assessment.Assessment, error)
	List(ctx context.Context, filter assessment.Filter) (domain.ListResult[*assessment.Assessment], error)
	ListForTaxpayer(ctx context.Context, taxpayerID id.ID, filter assessment.Filter) (domain.ListResult[*assessment.Assessment], error)
}

// GatewayEventReader reads the gateway interaction log.
type GatewayEventReader interface {
	ForAssessment(ctx context.Context, assessmentID id.ID, limit int) ([]payment.GatewayEvent, error)
}

const gatewayEventsLimit = 100

// AssessmentHandler handles assessment endpoints.
type AssessmentHandler struct {
	*BaseHandler
	service AssessmentService
	events  GatewayEventReader
}

// NewAssessmentHandler creates a new assessment handler. events may be nil.
func NewAssessmentHandler(base *BaseHandler, service AssessmentService, events GatewayEventReader) *AssessmentHandler {
	return &AssessmentHandler{BaseHandler: base, service: service, events: events}
}

// List handles GET /admin/assessments
func (h *AssessmentHandler) List(c *gin.Context) {
	var q dto.AssessmentListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}
	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Create handles POST /admin/assessments
func (h *AssessmentHandler) Create(c *gin.Context) {
	var req dto.CreateAssessmentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}
	a, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, a)
}

// Get handles GET /admin/assessments/:id
func (h *AssessmentHandler) Get(c *gin.Context) {
	assessmentID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	a, err := h.service.Get(c.Request.Context(), assessmentID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, a)
}

// GatewayEvents handles GET /admin/assessments/:id/gateway-events
func (h *AssessmentHandler) GatewayEvents(c *gin.Context) {
	assessmentID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	events, err := h.events.ForAssessment(c.Request.Context(), assessmentID, gatewayEventsLimit)
	if err != nil {
		h.Error(c, err)
		return
	}
	if events == nil {
		events = []payment.GatewayEvent{}
	}
	h.OK(c, gin.H{"items": events})
}

// Mine handles GET /me/assessments
func (h *AssessmentHandler) Mine(c *gin.Context) {
	taxpayerID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}
	var q dto.AssessmentListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}
	result, err := h.service.ListForTaxpayer(c.Request.Context(), taxpayerID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// RegisterRoutes registers assessment routes.
func (h *AssessmentHandler) RegisterRoutes(admin, me *gin.RouterGroup) {
	g := admin.Group("/assessments")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	if h.events != nil {
		g.GET("/:id/gateway-events", h.GatewayEvents)
	}

	me.GET("/assessments", h.Mine)
}
