// Package payment records money received against assessments, whether
// collected at the counter or through the online gateway, and refunds.
package payment

import (
	"time"

	"taxledger/internal/core/apperror"
	"taxledger/internal/core/id"
	"taxledger/internal/core/types"
)

// Mode is how a payment was made.
type Mode string

const (
	ModeOnline       Mode = "online"
	ModeCash         Mode = "cash"
	ModeCheque       Mode = "cheque"
	ModeBankTransfer Mode = "bank_transfer"
	ModeManual       Mode = "manual"
)

// Modes lists every accepted mode.
var Modes = []Mode{ModeOnline, ModeCash, ModeCheque, ModeBankTransfer, ModeManual}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	for _, v := range Modes {
		if m == v {
			return true
		}
	}
	return false
}

// RefundStatus tracks how much of a payment went back to the taxpayer.
type RefundStatus string

const (
	RefundNone    RefundStatus = "none"
	RefundPartial RefundStatus = "partial"
	RefundFull    RefundStatus = "full"
)

// Payment is money received against one assessment.
type Payment struct {
	ID               id.ID        `db:"id" json:"id"`
	AssessmentID     id.ID        `db:"assessment_id" json:"assessmentId"`
	TaxpayerID       id.ID        `db:"taxpayer_id" json:"taxpayerId"`
	Amount           types.Money  `db:"amount" json:"amount"`
	Mode             Mode         `db:"mode" json:"mode"`
	ReceiptNumber    string       `db:"receipt_number" json:"receiptNumber"`
	GatewayOrderID   *string      `db:"gateway_order_id" json:"gatewayOrderId,omitempty"`
	GatewayPaymentID *string      `db:"gateway_payment_id" json:"gatewayPaymentId,omitempty"`
	RefundAmount     types.Money  `db:"refund_amount" json:"refundAmount"`
	RefundStatus     RefundStatus `db:"refund_status" json:"refundStatus"`
	GatewayRefundID  *string      `db:"gateway_refund_id" json:"gatewayRefundId,omitempty"`
	RefundedAt       *time.Time   `db:"refunded_at" json:"refundedAt,omitempty"`
	Note             string       `db:"note" json:"note,omitempty"`
	RecordedBy       *id.ID       `db:"recorded_by" json:"recordedBy,omitempty"`
	PaidAt           time.Time    `db:"paid_at" json:"paidAt"`
	CreatedAt        time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updatedAt"`

	// Joined from users and assessments, never written.
	TaxpayerName  string `db:"taxpayer_name" write:"-" json:"taxpayerName,omitempty"`
	FinancialYear string `db:"financial_year" write:"-" json:"financialYear,omitempty"`
	Period        string `db:"period" write:"-" json:"period,omitempty"`
}

// Refundable returns what can still be refunded.
func (p *Payment) Refundable() types.Money {
	return types.NonNegative(p.Amount.Sub(p.RefundAmount))
}

// ApplyRefund books a refund of amount against the payment.
// Only gateway payments can be refunded, and never beyond what was paid.
func (p *Payment) ApplyRefund(amount types.Money, gatewayRefundID string, at time.Time) error {
	if err := p.CheckRefund(amount); err != nil {
		return err
	}
	p.RefundAmount = p.RefundAmount.Add(amount)
	if p.RefundAmount.GreaterThanOrEqual(p.Amount) {
		p.RefundStatus = RefundFull
	} else {
		p.RefundStatus = RefundPartial
	}
	if gatewayRefundID != "" {
		p.GatewayRefundID = &gatewayRefundID
	}
	p.RefundedAt = &at
	p.UpdatedAt = at
	return nil
}

// CheckRefund validates a refund request without changing the payment.
func (p *Payment) CheckRefund(amount types.Money) error {
	if p.Mode != ModeOnline || p.GatewayPaymentID == nil {
		return apperror.NewBusinessRule(apperror.CodeRefundNotAllowed, "only online payments can be refunded").
			WithDetail("mode", string(p.Mode))
	}
	if !amount.IsPositive() {
		return apperror.NewValidation("refund amount must be positive").WithDetail("field", "amount")
	}
	if amount.GreaterThan(p.Refundable()) {
		return apperror.NewBusinessRule(apperror.CodeRefundNotAllowed, "refund exceeds refundable amount").
			WithDetail("requested", amount.StringFixed(types.MoneyScale)).
			WithDetail("refundable", p.Refundable().StringFixed(types.MoneyScale))
	}
	return nil
}
