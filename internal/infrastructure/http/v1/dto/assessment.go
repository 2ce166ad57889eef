package dto

import (
	"time"

	"taxledger/internal/core/apperror"
	"taxledger/internal/core/id"
	"taxledger/internal/core/types"
	"taxledger/internal/domain/assessment"
	"taxledger/internal/domain/tax"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// CreateAssessmentRequest is either slab-computed (halfYearIncome) or
// manual (amount and slabName).
type CreateAssessmentRequest struct {
	TaxpayerID     string       `json:"taxpayerId" binding:"required,uuid"`
	FinancialYear  string       `json:"financialYear" binding:"required,finyear"`
	Period         string       `json:"period" binding:"omitempty,oneof=H1 H2"`
	HalfYearIncome *types.Money `json:"halfYearIncome"`
	Amount         *types.Money `json:"amount"`
	SlabName       string       `json:"slabName"`
	DueDate        string       `json:"dueDate" binding:"omitempty,datetime=2006-01-02"`
}

// ToInput converts to the domain input.
func (r *CreateAssessmentRequest) ToInput() (assessment.CreateInput, error) {
	taxpayerID, err := id.Parse(r.TaxpayerID)
	if err != nil {
		return assessment.CreateInput{}, apperror.NewValidation("invalid taxpayerId").WithDetail("field", "taxpayerId")
	}
	in := assessment.CreateInput{
		TaxpayerID:     taxpayerID,
		FinancialYear:  r.FinancialYear,
		Period:         tax.Period(r.Period),
		HalfYearIncome: r.HalfYearIncome,
		Amount:         r.Amount,
		SlabName:       r.SlabName,
	}
	if r.DueDate != "" {
		due, err := time.Parse(DateLayout, r.DueDate)
		if err != nil {
			return assessment.CreateInput{}, apperror.NewValidation("invalid dueDate").WithDetail("field", "dueDate")
		}
		in.DueDate = &due
	}
	return in, nil
}

// AssessmentListQuery filters assessment lists.
type AssessmentListQuery struct {
	ListQuery
	Status        string `form:"status"`
	TaxpayerID    string `form:"taxpayerId"`
	FinancialYear string `form:"financialYear"`
	Period        string `form:"period" binding:"omitempty,oneof=H1 H2"`
}

// ToFilter converts to the domain filter. Legacy status spellings are accepted.
func (q AssessmentListQuery) ToFilter() (assessment.Filter, error) {
	f := assessment.Filter{ListFilter: q.ToListFilter(), FinancialYear: q.FinancialYear}
	if q.Status != "" {
		st, err := assessment.ParseStatus(q.Status)
		if err != nil {
			return f, err
		}
		f.Status = &st
	}
	taxpayerID, err := parseOptionalID("taxpayerId", q.TaxpayerID)
	if err != nil {
		return f, err
	}
	f.TaxpayerID = taxpayerID
	if q.Period != "" {
		p := tax.Period(q.Period)
		f.Period = &p
	}
	return f, nil
}

// SlabPreviewQuery is the income to preview a calculation for.
type SlabPreviewQuery struct {
	Income string `form:"income" binding:"required"`
}

// SlabPreviewResponse is a calculated slab for an income.
type SlabPreviewResponse struct {
	HalfYearIncome types.Money `json:"halfYearIncome"`
	SlabName       string      `json:"slabName"`
	Tax            types.Money `json:"tax"`
	DueDate        string      `json:"dueDate"`
	Period         tax.Period  `json:"period"`
	FinancialYear  string      `json:"financialYear"`
}
