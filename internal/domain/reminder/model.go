// Package reminder schedules and dispatches payment reminders for
// outstanding assessments.
package reminder

import (
	"time"

	"taxledger/internal/core/id"
	"taxledger/internal/core/types"
)

// Status of a reminder.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
)

// Reminder is a notice to a taxpayer about an assessment.
type Reminder struct {
	ID           id.ID      `db:"id" json:"id"`
	TaxpayerID   id.ID      `db:"taxpayer_id" json:"taxpayerId"`
	AssessmentID id.ID      `db:"assessment_id" json:"assessmentId"`
	ReminderDate time.Time  `db:"reminder_date" json:"reminderDate"`
	Message      string     `db:"message" json:"message"`
	Status       Status     `db:"status" json:"status"`
	SentAt       *time.Time `db:"sent_at" json:"sentAt,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`

	// Joined, never written.
	TaxpayerName  string       `db:"taxpayer_name" write:"-" json:"taxpayerName,omitempty"`
	FinancialYear string       `db:"financial_year" write:"-" json:"financialYear,omitempty"`
	Balance       *types.Money `db:"balance" write:"-" json:"balance,omitempty"`
}

// New builds a reminder whose status follows its date: a future date
// waits for the dispatcher, anything else counts as sent immediately.
func New(taxpayerID, assessmentID id.ID, date time.Time, message string, now time.Time) *Reminder {
	r := &Reminder{
		ID:           id.New(),
		TaxpayerID:   taxpayerID,
		AssessmentID: assessmentID,
		ReminderDate: date,
		Message:      message,
		Status:       StatusPending,
		CreatedAt:    now,
	}
	if !date.After(now) {
		r.MarkSent(now)
	}
	return r
}

// MarkSent flags the reminder as delivered.
func (r *Reminder) MarkSent(at time.Time) {
	r.Status = StatusSent
	r.SentAt = &at
}
