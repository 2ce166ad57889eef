package reminder

import (
	"context"
	"time"

	"taxledger/internal/core/id"
	"taxledger/internal/domain"
	"taxledger/internal/domain/assessment"
)

// Filter narrows reminder lists.
type Filter struct {
	domain.ListFilter

	Status       *Status
	TaxpayerID   *id.ID
	AssessmentID *id.ID
}

// Repository defines reminder storage operations.
type Repository interface {
	Create(ctx context.Context, r *Reminder) error

	// CreateMany bulk-inserts reminders. Must run inside a transaction.
	CreateMany(ctx context.Context, rs []*Reminder) (int64, error)

	List(ctx context.Context, filter Filter) (domain.ListResult[*Reminder], error)

	// MarkDueSent flips pending reminders dated at or before asOf to sent
	// and returns them.
	MarkDueSent(ctx context.Context, asOf time.Time) ([]*Reminder, error)

	// RemindedSince returns the assessments that already got a reminder
	// created at or after since.
	RemindedSince(ctx context.Context, since time.Time) (map[id.ID]bool, error)
}

// Assessments is the assessment lookup reminders need.
type Assessments interface {
	GetByID(ctx context.Context, assessmentID id.ID) (*assessment.Assessment, error)
	ListOverdue(ctx context.Context, asOf time.Time) ([]*assessment.Assessment, error)
}
