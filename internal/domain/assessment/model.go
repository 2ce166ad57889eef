// Package assessment owns the per-taxpayer tax ledger: how much was assessed,
// how much has been paid, and the derived balance and status.
package assessment

import (
	"context"
	"strings"
	"time"

	"taxledger/internal/core/apperror"
	"taxledger/internal/core/id"
	"taxledger/internal/core/types"
	"taxledger/internal/domain/tax"
)

// Status is the payment state of an assessment.
type Status string

const (
	StatusUnpaid        Status = "unpaid"
	StatusPartiallyPaid Status = "partially_paid"
	StatusPaid          Status = "paid"
)

// ParseStatus accepts the canonical values and the legacy spellings
// ("Paid", "Partially Paid", "Unpaid").
func ParseStatus(s string) (Status, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, " ", "_")
	switch Status(norm) {
	case StatusUnpaid, StatusPartiallyPaid, StatusPaid:
		return Status(norm), nil
	}
	return "", apperror.NewValidation("unknown assessment status").WithDetail("status", s)
}

// DeriveStatus computes the status from the assessed and paid amounts.
func DeriveStatus(amount, paid types.Money) Status {
	switch {
	case !amount.Sub(paid).IsPositive():
		return StatusPaid
	case paid.IsPositive():
		return StatusPartiallyPaid
	default:
		return StatusUnpaid
	}
}

// Assessment is one half-year professional tax demand on a taxpayer.
type Assessment struct {
	ID             id.ID        `db:"id" json:"id"`
	TaxpayerID     id.ID        `db:"taxpayer_id" json:"taxpayerId"`
	FinancialYear  string       `db:"financial_year" json:"financialYear"`
	Period         tax.Period   `db:"period" json:"period"`
	HalfYearIncome *types.Money `db:"half_year_income" json:"halfYearIncome,omitempty"`
	SlabName       string       `db:"slab_name" json:"slabName"`
	Amount         types.Money  `db:"amount" json:"amount"`
	PaidAmount     types.Money  `db:"paid_amount" json:"paidAmount"`
	Balance        types.Money  `db:"balance" json:"balance"`
	Status         Status       `db:"status" json:"status"`
	DueDate        time.Time    `db:"due_date" json:"dueDate"`
	CreatedAt      time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updatedAt"`

	// Joined from users, never written.
	TaxpayerName string `db:"taxpayer_name" write:"-" json:"taxpayerName,omitempty"`
}

// Validate checks the invariants of a new assessment.
func (a *Assessment) Validate(_ context.Context) error {
	if id.IsNil(a.TaxpayerID) {
		return apperror.NewValidation("taxpayer is required").WithDetail("field", "taxpayerId")
	}
	if err := tax.ValidateFinancialYear(a.FinancialYear); err != nil {
		return err
	}
	if !a.Period.Valid() {
		return apperror.NewValidation("period must be H1 or H2").WithDetail("field", "period")
	}
	if a.Amount.IsNegative() {
		return apperror.NewValidation("amount must not be negative").WithDetail("field", "amount")
	}
	if strings.TrimSpace(a.SlabName) == "" {
		return apperror.NewValidation("slab name is required").WithDetail("field", "slabName")
	}
	if a.DueDate.IsZero() {
		return apperror.NewValidation("due date is required").WithDetail("field", "dueDate")
	}
	return nil
}

// ApplyPayment adds a received amount to the ledger and re-derives the
// balance and status. Overpayment clamps the balance at zero.
func (a *Assessment) ApplyPayment(amount types.Money) error {
	if !amount.IsPositive() {
		return apperror.NewValidation("payment amount must be positive").
			WithDetail("amount", amount.String())
	}
	a.PaidAmount = a.PaidAmount.Add(amount)
	a.recompute()
	return nil
}

// Reconcile re-derives balance and status from amount and paid amount.
// It reports whether anything changed.
func (a *Assessment) Reconcile() bool {
	before := *a
	a.recompute()
	return !before.Balance.Equal(a.Balance) || before.Status != a.Status
}

func (a *Assessment) recompute() {
	a.Balance = types.NonNegative(a.Amount.Sub(a.PaidAmount))
	a.Status = DeriveStatus(a.Amount, a.PaidAmount)
}

// Overpaid reports whether more was collected than assessed.
func (a *Assessment) Overpaid() bool {
	return a.PaidAmount.GreaterThan(a.Amount)
}

// IsOverdue reports whether the due date has passed with money still owed.
func (a *Assessment) IsOverdue(asOf time.Time) bool {
	return a.Status != StatusPaid && a.DueDate.Before(asOf)
}
