package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"taxledger/internal/core/id"
	"taxledger/internal/domain"
	"taxledger/internal/domain/reminder"
	"taxledger/internal/infrastructure/http/v1/dto"
)

// ReminderService is the part of reminder.Service the handlers use.
type ReminderService interface {
	Create(ctx context.Context, in reminder.CreateInput) (*reminder.Reminder, error)
	List(ctx context.Context, filter reminder.Filter) (domain.ListResult[*reminder.Reminder], error)
	ListForTaxpayer(ctx context.Context, taxpayerID id.ID, filter reminder.Filter) (domain.ListResult[*reminder.Reminder], error)
}

// ReminderHandler handles reminder endpoints.
type ReminderHandler struct {
	*BaseHandler
	service ReminderService
}

// NewReminderHandler creates a new reminder handler.
func NewReminderHandler(base *BaseHandler, service ReminderService) *ReminderHandler {
	return &ReminderHandler{BaseHandler: base, service: service}
}

func (h *ReminderHandler) bindFilter(c *gin.Context) (reminder.Filter, bool) {
	var q dto.ReminderListQuery
	if !h.BindQuery(c, &q) {
		return reminder.Filter{}, false
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return reminder.Filter{}, false
	}
	return filter, true
}

// List handles GET /admin/reminders
func (h *ReminderHandler) List(c *gin.Context) {
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}
	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Create handles POST /admin/reminders
func (h *ReminderHandler) Create(c *gin.Context) {
	var req dto.CreateReminderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}
	r, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, r)
}

// Mine handles GET /me/reminders
func (h *ReminderHandler) Mine(c *gin.Context) {
	taxpayerID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}
	result, err := h.service.ListForTaxpayer(c.Request.Context(), taxpayerID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// RegisterRoutes registers reminder routes.
func (h *ReminderHandler) RegisterRoutes(admin, me *gin.RouterGroup) {
	g := admin.Group("/reminders")
	g.GET("", h.List)
	g.POST("", h.Create)

	me.GET("/reminders", h.Mine)
}
