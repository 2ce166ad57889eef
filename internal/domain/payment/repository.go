package payment

import (
	"context"
	"time"

	"taxledger/internal/core/id"
	"taxledger/internal/domain"
	"taxledger/internal/domain/assessment"
)

// Filter narrows payment lists and exports.
type Filter struct {
	domain.ListFilter

	Mode         *Mode
	RefundStatus *RefundStatus
	TaxpayerID   *id.ID
	AssessmentID *id.ID
	From         *time.Time
	To           *time.Time // exclusive
}

// Repository defines payment storage operations.
type Repository interface {
	// Create inserts a payment. A second payment with the same gateway
	// payment id fails with a duplicate error.
	Create(ctx context.Context, p *Payment) error

	GetByID(ctx context.Context, paymentID id.ID) (*Payment, error)

	// GetForUpdate retrieves and row-locks a payment.
	GetForUpdate(ctx context.Context, paymentID id.ID) (*Payment, error)

	GetByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*Payment, error)

	// UpdateRefund persists the refund columns.
	UpdateRefund(ctx context.Context, p *Payment) error

	List(ctx context.Context, filter Filter) (domain.ListResult[*Payment], error)

	// Each streams every payment matching filter, ignoring pagination.
	Each(ctx context.Context, filter Filter, fn func(*Payment) error) error
}

// Ledger is the part of the assessment store payments reconcile against.
type Ledger interface {
	GetByID(ctx context.Context, assessmentID id.ID) (*assessment.Assessment, error)
	GetForUpdate(ctx context.Context, assessmentID id.ID) (*assessment.Assessment, error)
	UpdateLedger(ctx context.Context, a *assessment.Assessment) error
}
