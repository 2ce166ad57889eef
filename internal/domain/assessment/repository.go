package assessment

import (
	"context"
	"time"

	"taxledger/internal/core/id"
	"taxledger/internal/domain"
	"taxledger/internal/domain/tax"
)

// Filter narrows assessment lists.
type Filter struct {
	domain.ListFilter

	Status        *Status
	TaxpayerID    *id.ID
	FinancialYear string
	Period        *tax.Period
}

// Repository defines assessment storage operations.
type Repository interface {
	// Create inserts a new assessment. A second assessment for the same
	// taxpayer, financial year and period fails with a duplicate error.
	Create(ctx context.Context, a *Assessment) error

	// GetByID retrieves an assessment with the taxpayer name joined.
	GetByID(ctx context.Context, assessmentID id.ID) (*Assessment, error)

	// GetForUpdate retrieves and row-locks an assessment.
	// Must be called inside a transaction.
	GetForUpdate(ctx context.Context, assessmentID id.ID) (*Assessment, error)

	// UpdateLedger persists paid amount, balance and status.
	UpdateLedger(ctx context.Context, a *Assessment) error

	// Exists checks for an assessment of the taxpayer for a financial year and period.
	Exists(ctx context.Context, taxpayerID id.ID, financialYear string, period tax.Period) (bool, error)

	// List retrieves assessments with filtering and pagination.
	List(ctx context.Context, filter Filter) (domain.ListResult[*Assessment], error)

	// ListDrifted returns rows whose stored balance or status disagree with
	// amount and paid amount.
	ListDrifted(ctx context.Context, limit int) ([]*Assessment, error)

	// ListOverdue returns assessments due before asOf that are not fully paid.
	ListOverdue(ctx context.Context, asOf time.Time) ([]*Assessment, error)
}

// TaxpayerChecker confirms that an id belongs to a taxpayer account.
type TaxpayerChecker interface {
	IsTaxpayer(ctx context.Context, userID id.ID) (bool, error)
}
