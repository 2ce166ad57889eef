package reminder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taxledger/internal/core/apperror"
	"taxledger/internal/core/id"
	"taxledger/internal/core/tx"
	"taxledger/internal/core/types"
	"taxledger/internal/domain"
	"taxledger/pkg/logger"
)

// CreateInput is an admin-authored reminder.
type CreateInput struct {
	TaxpayerID   id.ID
	AssessmentID id.ID
	ReminderDate time.Time
	Message      string
}

// Service provides reminder business logic.
type Service struct {
	repo        Repository
	assessments Assessments
	txManager   tx.Manager
	now         func() time.Time
}

// NewService creates a new reminder service.
func NewService(repo Repository, assessments Assessments, txManager tx.Manager) *Service {
	return &Service{
		repo:        repo,
		assessments: assessments,
		txManager:   txManager,
		now:         time.Now,
	}
}

// Create schedules a reminder for an assessment of the given taxpayer.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Reminder, error) {
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return nil, apperror.NewValidation("message is required").WithDetail("field", "message")
	}
	if in.ReminderDate.IsZero() {
		return nil, apperror.NewValidation("reminder date is required").WithDetail("field", "reminderDate")
	}

	a, err := s.assessments.GetByID(ctx, in.AssessmentID)
	if err != nil {
		return nil, err
	}
	if a.TaxpayerID != in.TaxpayerID {
		return nil, apperror.NewValidation("assessment does not belong to taxpayer").
			WithDetail("assessmentId", in.AssessmentID.String()).
			WithDetail("taxpayerId", in.TaxpayerID.String())
	}

	r := New(in.TaxpayerID, in.AssessmentID, in.ReminderDate, msg, s.now())
	r.TaxpayerName = a.TaxpayerName
	r.FinancialYear = a.FinancialYear
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create reminder: %w", err)
	}

	logger.Info(ctx, "reminder created",
		"reminder_id", r.ID,
		"assessment_id", r.AssessmentID,
		"status", r.Status)
	return r, nil
}

// List returns reminders, newest first.
func (s *Service) List(ctx context.Context, filter Filter) (domain.ListResult[*Reminder], error) {
	filter.Normalize()
	if filter.OrderBy == "" {
		filter.OrderBy = "-created_at"
	}
	return s.repo.List(ctx, filter)
}

// ListForTaxpayer returns one taxpayer's reminders.
func (s *Service) ListForTaxpayer(ctx context.Context, taxpayerID id.ID, filter Filter) (domain.ListResult[*Reminder], error) {
	filter.TaxpayerID = &taxpayerID
	return s.List(ctx, filter)
}

// DispatchDue marks every pending reminder whose date has arrived as sent.
func (s *Service) DispatchDue(ctx context.Context) (int, error) {
	sent, err := s.repo.MarkDueSent(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("dispatch reminders: %w", err)
	}
	for _, r := range sent {
		logger.Info(ctx, "reminder sent",
			"reminder_id", r.ID,
			"taxpayer_id", r.TaxpayerID,
			"assessment_id", r.AssessmentID,
			"message", r.Message)
	}
	return len(sent), nil
}

// GenerateOverdue writes one reminder per overdue assessment per day.
func (s *Service) GenerateOverdue(ctx context.Context) (int, error) {
	now := s.now()
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	overdue, err := s.assessments.ListOverdue(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("list overdue: %w", err)
	}
	if len(overdue) == 0 {
		return 0, nil
	}

	var created int64
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		done, err := s.repo.RemindedSince(ctx, today)
		if err != nil {
			return err
		}

		batch := make([]*Reminder, 0, len(overdue))
		for _, a := range overdue {
			if done[a.ID] {
				continue
			}
			msg := fmt.Sprintf("Professional tax of INR %s for %s %s was due on %s and remains unpaid. Please pay to avoid penalties.",
				a.Balance.StringFixed(types.MoneyScale), a.FinancialYear, a.Period, a.DueDate.Format("02 Jan 2006"))
			batch = append(batch, New(a.TaxpayerID, a.ID, now, msg, now))
		}
		if len(batch) == 0 {
			return nil
		}
		created, err = s.repo.CreateMany(ctx, batch)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("generate overdue reminders: %w", err)
	}

	if created > 0 {
		logger.Info(ctx, "overdue reminders generated", "count", created)
	}
	return int(created), nil
}
