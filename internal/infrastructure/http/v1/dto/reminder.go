package dto

import (
	"time"

	"taxledger/internal/core/apperror"
	"taxledger/internal/core/id"
	"taxledger/internal/domain/reminder"
)

// CreateReminderRequest schedules a reminder. A date today or in the past
// is recorded as already sent.
type CreateReminderRequest struct {
	TaxpayerID   string `json:"taxpayerId" binding:"required,uuid"`
	AssessmentID string `json:"assessmentId" binding:"required,uuid"`
	ReminderDate string `json:"reminderDate" binding:"required"`
	Message      string `json:"message" binding:"required,max=1000"`
}

// ToInput converts to the domain input. ReminderDate accepts a date or an
// RFC 3339 timestamp.
func (r *CreateReminderRequest) ToInput() (reminder.CreateInput, error) {
	taxpayerID, err := id.Parse(r.TaxpayerID)
	if err != nil {
		return reminder.CreateInput{}, apperror.NewValidation("invalid taxpayerId").WithDetail("field", "taxpayerId")
	}
	assessmentID, err := id.Parse(r.AssessmentID)
	if err != nil {
		return reminder.CreateInput{}, apperror.NewValidation("invalid assessmentId").WithDetail("field", "assessmentId")
	}
	date, err := parseDateOrTime(r.ReminderDate)
	if err != nil {
		return reminder.CreateInput{}, apperror.NewValidation("invalid reminderDate").WithDetail("field", "reminderDate")
	}
	return reminder.CreateInput{
		TaxpayerID:   taxpayerID,
		AssessmentID: assessmentID,
		ReminderDate: date,
		Message:      r.Message,
	}, nil
}

func parseDateOrTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(DateLayout, s)
}

// ReminderListQuery filters reminder lists.
type ReminderListQuery struct {
	ListQuery
	Status       string `form:"status" binding:"omitempty,oneof=pending sent"`
	TaxpayerID   string `form:"taxpayerId"`
	AssessmentID string `form:"assessmentId"`
}

// ToFilter converts to the domain filter.
func (q ReminderListQuery) ToFilter() (reminder.Filter, error) {
	f := reminder.Filter{ListFilter: q.ToListFilter()}
	if q.Status != "" {
		st := reminder.Status(q.Status)
		f.Status = &st
	}
	var err error
	if f.TaxpayerID, err = parseOptionalID("taxpayerId", q.TaxpayerID); err != nil {
		return f, err
	}
	if f.AssessmentID, err = parseOptionalID("assessmentId", q.AssessmentID); err != nil {
		return f, err
	}
	return f, nil
}
