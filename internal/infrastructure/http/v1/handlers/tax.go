package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"taxledger/internal/core/apperror"
	"taxledger/internal/core/types"
	"taxledger/internal/domain/tax"
	"taxledger/internal/infrastructure/http/v1/dto"
)

// TaxHandler serves the public slab table and calculator.
type TaxHandler struct {
	*BaseHandler
	now func() time.Time
}

// NewTaxHandler creates a new tax handler.
func NewTaxHandler(base *BaseHandler) *TaxHandler {
	return &TaxHandler{BaseHandler: base, now: time.Now}
}

// Slabs handles GET /tax/slabs
func (h *TaxHandler) Slabs(c *gin.Context) {
	h.OK(c, gin.H{"items": tax.Slabs()})
}

// Calculate handles GET /tax/calculate?income=
func (h *TaxHandler) Calculate(c *gin.Context) {
	var q dto.SlabPreviewQuery
	if !h.BindQuery(c, &q) {
		return
	}
	income, err := types.NewMoneyFromString(q.Income)
	if err != nil {
		h.Error(c, apperror.NewValidation("income must be a number").WithDetail("field", "income"))
		return
	}

	slab, err := tax.Calculate(income)
	if err != nil {
		h.Error(c, err)
		return
	}

	now := h.now()
	due := tax.DueDate(now)
	h.OK(c, dto.SlabPreviewResponse{
		HalfYearIncome: types.RoundMoney(income),
		SlabName:       slab.Label,
		Tax:            slab.Tax,
		DueDate:        due.Format(dto.DateLayout),
		Period:         tax.PeriodOf(due),
		FinancialYear:  tax.FinancialYearOf(due),
	})
}

// RegisterRoutes registers tax routes.
func (h *TaxHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/slabs", h.Slabs)
	rg.GET("/calculate", h.Calculate)
}
