package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taxledger/internal/core/apperror"
	"taxledger/internal/core/id"
	"taxledger/internal/core/types"
	"taxledger/internal/domain"
	"taxledger/internal/domain/payment"
	"taxledger/internal/infrastructure/export"
	"taxledger/internal/infrastructure/http/v1/dto"
	"taxledger/pkg/logger"
)

// PaymentService is the part of payment.Service the handlers use.
type PaymentService interface {
	RecordManual(ctx context.Context, in payment.ManualInput) (*payment.Payment, error)
	CreateOrder(ctx context.Context, assessmentID id.ID) (*payment.OrderResult, error)
	VerifyOnline(ctx context.Context, in payment.VerifyInput) (*payment.Payment, error)
	Refund(ctx context.Context, paymentID id.ID, amount types.Money) (*payment.Payment, error)
	Get(ctx context.Context, paymentID id.ID) (*payment.Payment, error)
	List(ctx context.Context, filter payment.Filter) (domain.ListResult[*payment.Payment], error)
	ListForTaxpayer(ctx context.Context, taxpayerID id.ID, filter payment.Filter) (domain.ListResult[*payment.Payment], error)
	Export(ctx context.Context, filter payment.Filter, fn func(*payment.Payment) error) error
}

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	*BaseHandler
	service PaymentService
	issuer  export.Issuer
	now     func() time.Time
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(base *BaseHandler, service PaymentService, issuer export.Issuer) *PaymentHandler {
	return &PaymentHandler{BaseHandler: base, service: service, issuer: issuer, now: time.Now}
}

// List handles GET /admin/payments
func (h *PaymentHandler) List(c *gin.Context) {
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

func (h *PaymentHandler) bindFilter(c *gin.Context) (payment.Filter, bool) {
	var q dto.PaymentListQuery
	if !h.BindQuery(c, &q) {
		return payment.Filter{}, false
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return payment.Filter{}, false
	}
	return filter, true
}

// Export handles GET /admin/payments/export
// Same filters as List; pagination is ignored.
func (h *PaymentHandler) Export(c *gin.Context) {
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var buf bytes.Buffer
	rows, err := export.WritePayments(&buf, func(fn func(*payment.Payment) error) error {
		return h.service.Export(ctx, filter, fn)
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	logger.Info(ctx, "payments exported", "rows", rows)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", export.PaymentsFilename(h.now())))
	c.Data(http.StatusOK, export.XLSXContentType, buf.Bytes())
}

// RecordManual handles POST /admin/payments/manual
func (h *PaymentHandler) RecordManual(c *gin.Context) {
	var req dto.ManualPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}
	p, err := h.service.RecordManual(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, p)
}

// Get handles GET /admin/payments/:id
func (h *PaymentHandler) Get(c *gin.Context) {
	paymentID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	p, err := h.service.Get(c.Request.Context(), paymentID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// Refund handles POST /admin/payments/:id/refund
func (h *PaymentHandler) Refund(c *gin.Context) {
	paymentID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.RefundRequest
	if !h.BindJSON(c, &req) {
		return
	}
	p, err := h.service.Refund(c.Request.Context(), paymentID, *req.Amount)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// Receipt handles GET /payments/:id/receipt for the owner or an admin.
func (h *PaymentHandler) Receipt(c *gin.Context) {
	paymentID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	p, err := h.service.Get(c.Request.Context(), paymentID)
	if err != nil {
		h.Error(c, err)
		return
	}
	pdf, err := export.ReceiptPDF(p, h.issuer)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%s.pdf", p.ReceiptNumber))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// Mine handles GET /me/payments
func (h *PaymentHandler) Mine(c *gin.Context) {
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

// CreateOrder handles POST /me/payments/order
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	var req dto.CreateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	assessmentID, err := id.Parse(req.AssessmentID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid assessmentId").WithDetail("field", "assessmentId"))
		return
	}
	order, err := h.service.CreateOrder(c.Request.Context(), assessmentID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, order)
}

// Verify handles POST /me/payments/verify
func (h *PaymentHandler) Verify(c *gin.Context) {
	var req dto.VerifyPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}
	p, err := h.service.VerifyOnline(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// PaymentRoutes groups the route sets a payment handler serves.
type PaymentRoutes struct {
	Admin         *gin.RouterGroup
	Me            *gin.RouterGroup
	Authenticated *gin.RouterGroup
	// Idempotent wraps mutations that must survive client retries.
	Idempotent gin.HandlerFunc
}

// RegisterRoutes registers payment routes.
func (h *PaymentHandler) RegisterRoutes(r PaymentRoutes) {
	idem := r.Idempotent
	if idem == nil {
		idem = func(c *gin.Context) { c.Next() }
	}

	admin := r.Admin.Group("/payments")
	admin.GET("", h.List)
	admin.GET("/export", h.Export)
	admin.POST("/manual", idem, h.RecordManual)
	admin.GET("/:id", h.Get)
	admin.POST("/:id/refund", idem, h.Refund)

	me := r.Me.Group("/payments")
	me.GET("", h.Mine)
	me.POST("/order", h.CreateOrder)
	me.POST("/verify", idem, h.Verify)

	r.Authenticated.GET("/payments/:id/receipt", h.Receipt)
}
