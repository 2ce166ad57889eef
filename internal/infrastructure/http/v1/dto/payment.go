package dto

import (
	"time"

	"taxledger/internal/core/apperror"
	"taxledger/internal/core/id"
	"taxledger/internal/core/types"
	"taxledger/internal/domain/payment"
)

// ManualPaymentRequest records a counter payment.
type ManualPaymentRequest struct {
	AssessmentID string       `json:"assessmentId" binding:"required,uuid"`
	Amount       *types.Money `json:"amount" binding:"required"`
	Mode         string       `json:"mode" binding:"required,paymentmode"`
	Note         string       `json:"note" binding:"max=500"`
	PaidAt       *time.Time   `json:"paidAt"`
}

// ToInput converts to the domain input.
func (r *ManualPaymentRequest) ToInput() (payment.ManualInput, error) {
	assessmentID, err := id.Parse(r.AssessmentID)
	if err != nil {
		return payment.ManualInput{}, apperror.NewValidation("invalid assessmentId").WithDetail("field", "assessmentId")
	}
	return payment.ManualInput{
		AssessmentID: assessmentID,
		Amount:       *r.Amount,
		Mode:         payment.Mode(r.Mode),
		Note:         r.Note,
		PaidAt:       r.PaidAt,
	}, nil
}

// RefundRequest asks for part or all of an online payment back.
type RefundRequest struct {
	Amount *types.Money `json:"amount" binding:"required"`
}

// CreateOrderRequest opens a checkout for an assessment's balance.
type CreateOrderRequest struct {
	AssessmentID string `json:"assessmentId" binding:"required,uuid"`
}

// VerifyPaymentRequest is the checkout callback, with the gateway's own
// field names.
type VerifyPaymentRequest struct {
	AssessmentID string `json:"assessmentId" binding:"required,uuid"`
	OrderID      string `json:"razorpay_order_id" binding:"required"`
	PaymentID    string `json:"razorpay_payment_id" binding:"required"`
	Signature    string `json:"razorpay_signature" binding:"required"`
}

// ToInput converts to the domain input.
func (r *VerifyPaymentRequest) ToInput() (payment.VerifyInput, error) {
	assessmentID, err := id.Parse(r.AssessmentID)
	if err != nil {
		return payment.VerifyInput{}, apperror.NewValidation("invalid assessmentId").WithDetail("field", "assessmentId")
	}
	return payment.VerifyInput{
		AssessmentID:     assessmentID,
		OrderID:          r.OrderID,
		GatewayPaymentID: r.PaymentID,
		Signature:        r.Signature,
	}, nil
}

// PaymentListQuery filters payment lists and exports.
type PaymentListQuery struct {
	ListQuery
	Mode         string `form:"mode" binding:"omitempty,oneof=online cash cheque bank_transfer manual"`
	RefundStatus string `form:"refundStatus" binding:"omitempty,oneof=none partial full"`
	TaxpayerID   string `form:"taxpayerId"`
	AssessmentID string `form:"assessmentId"`
	From         string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To           string `form:"to" binding:"omitempty,datetime=2006-01-02"`
}

// ToFilter converts to the domain filter. The To date is inclusive.
func (q PaymentListQuery) ToFilter() (payment.Filter, error) {
	f := payment.Filter{ListFilter: q.ToListFilter()}
	if q.Mode != "" {
		m := payment.Mode(q.Mode)
		f.Mode = &m
	}
	if q.RefundStatus != "" {
		rs := payment.RefundStatus(q.RefundStatus)
		f.RefundStatus = &rs
	}

	var err error
	if f.TaxpayerID, err = parseOptionalID("taxpayerId", q.TaxpayerID); err != nil {
		return f, err
	}
	if f.AssessmentID, err = parseOptionalID("assessmentId", q.AssessmentID); err != nil {
		return f, err
	}

	if q.From != "" {
		from, err := time.Parse(DateLayout, q.From)
		if err != nil {
			return f, apperror.NewValidation("invalid from").WithDetail("field", "from")
		}
		f.From = &from
	}
	if q.To != "" {
		to, err := time.Parse(DateLayout, q.To)
		if err != nil {
			return f, apperror.NewValidation("invalid to").WithDetail("field", "to")
		}
		end := to.AddDate(0, 0, 1)
		f.To = &end
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return f, apperror.NewValidation("from must not be after to")
	}
	return f, nil
}
