package assessment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taxledger/internal/core/apperror"
	appctx "taxledger/internal/core/context"
	"taxledger/internal/core/id"
	"taxledger/internal/core/tx"
	"taxledger/internal/core/types"
	"taxledger/internal/domain"
	"taxledger/internal/domain/tax"
	"taxledger/pkg/logger"
)

// CreateInput describes a new assessment. Exactly one of HalfYearIncome
// (slab-computed) or Amount (manual, with SlabName) must be set.
type CreateInput struct {
	TaxpayerID     id.ID
	FinancialYear  string
	Period         tax.Period
	HalfYearIncome *types.Money
	Amount         *types.Money
	SlabName       string
	DueDate        *time.Time
}

// Service provides assessment business logic.
type Service struct {
	repo      Repository
	taxpayers TaxpayerChecker
	txManager tx.Manager
	hooks     *domain.HookRegistry[*Assessment]
	now       func() time.Time
	batch     int
}

// NewService creates a new assessment service.
func NewService(repo Repository, taxpayers TaxpayerChecker, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		taxpayers: taxpayers,
		txManager: txManager,
		hooks:     domain.NewHookRegistry[*Assessment](),
		now:       time.Now,
		batch:     200,
	}
}

// Hooks returns the hook registry for external registration.
func (s *Service) Hooks() *domain.HookRegistry[*Assessment] {
	return s.hooks
}

// Create assesses a taxpayer for one half-year.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Assessment, error) {
	a, err := s.build(in)
	if err != nil {
		return nil, err
	}
	if err := a.Validate(ctx); err != nil {
		return nil, err
	}

	ok, err := s.taxpayers.IsTaxpayer(ctx, a.TaxpayerID)
	if err != nil {
		return nil, fmt.Errorf("check taxpayer: %w", err)
	}
	if !ok {
		return nil, apperror.NewNotFound("taxpayer", a.TaxpayerID.String())
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		exists, err := s.repo.Exists(ctx, a.TaxpayerID, a.FinancialYear, a.Period)
		if err != nil {
			return fmt.Errorf("check duplicate: %w", err)
		}
		if exists {
			return duplicateErr(a)
		}
		if err := s.repo.Create(ctx, a); err != nil {
			if apperror.HasCode(err, apperror.CodeDuplicate) {
				return duplicateErr(a)
			}
			return fmt.Errorf("create assessment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "assessment created",
		"assessment_id", a.ID,
		"taxpayer_id", a.TaxpayerID,
		"financial_year", a.FinancialYear,
		"period", a.Period,
		"amount", a.Amount.StringFixed(types.MoneyScale))

	if err := s.hooks.Run(ctx, domain.AfterCreate, a); err != nil {
		logger.Warn(ctx, "after-create hook failed", "assessment_id", a.ID, "error", err)
	}
	return a, nil
}

func (s *Service) build(in CreateInput) (*Assessment, error) {
	now := s.now()
	a := &Assessment{
		ID:            id.New(),
		TaxpayerID:    in.TaxpayerID,
		FinancialYear: strings.TrimSpace(in.FinancialYear),
		PaidAmount:    types.Zero(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	switch {
	case in.HalfYearIncome != nil && in.Amount != nil:
		return nil, apperror.NewValidation("give either halfYearIncome or amount, not both")
	case in.HalfYearIncome != nil:
		slab, err := tax.Calculate(*in.HalfYearIncome)
		if err != nil {
			return nil, err
		}
		income := types.RoundMoney(*in.HalfYearIncome)
		a.HalfYearIncome = &income
		a.Amount = slab.Tax
		a.SlabName = slab.Label
	case in.Amount != nil:
		a.Amount = types.RoundMoney(*in.Amount)
		a.SlabName = strings.TrimSpace(in.SlabName)
	default:
		return nil, apperror.NewValidation("halfYearIncome or amount is required")
	}

	if in.DueDate != nil {
		a.DueDate = *in.DueDate
	} else {
		a.DueDate = tax.DueDate(now)
	}

	a.Period = in.Period
	if a.Period == "" {
		a.Period = tax.PeriodOf(a.DueDate)
	}
	if a.FinancialYear == "" {
		return nil, apperror.NewValidation("financial year is required").WithDetail("field", "financialYear")
	}

	a.recompute()
	return a, nil
}

func duplicateErr(a *Assessment) error {
	return apperror.NewDuplicate("assessment", "financialYear", a.FinancialYear).
		WithDetail("taxpayerId", a.TaxpayerID.String()).
		WithDetail("period", string(a.Period))
}

// Get returns an assessment the caller is allowed to see.
func (s *Service) Get(ctx context.Context, assessmentID id.ID) (*Assessment, error) {
	a, err := s.repo.GetByID(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if !appctx.CanAccessTaxpayer(ctx, a.TaxpayerID.String()) {
		// Hide existence from other taxpayers.
		return nil, apperror.NewNotFound("assessment", assessmentID.String())
	}
	return a, nil
}

// List returns assessments across all taxpayers.
func (s *Service) List(ctx context.Context, filter Filter) (domain.ListResult[*Assessment], error) {
	filter.Normalize()
	if filter.OrderBy == "" {
		filter.OrderBy = "-created_at"
	}
	return s.repo.List(ctx, filter)
}

// ListForTaxpayer returns one taxpayer's assessments, newest due date first.
func (s *Service) ListForTaxpayer(ctx context.Context, taxpayerID id.ID, filter Filter) (domain.ListResult[*Assessment], error) {
	filter.TaxpayerID = &taxpayerID
	if filter.OrderBy == "" {
		filter.OrderBy = "-due_date"
	}
	return s.List(ctx, filter)
}

// ListOverdue returns unpaid assessments whose due date is before asOf.
func (s *Service) ListOverdue(ctx context.Context, asOf time.Time) ([]*Assessment, error) {
	return s.repo.ListOverdue(ctx, asOf)
}

// RefreshStatuses repairs rows whose balance or status drifted from their
// amounts, in batches. Returns the number of rows fixed.
//
// A listed row may already be clean once locked, when a concurrent payment
// recomputed it. Paging stops on a short batch or on a batch that fixed nothing.
func (s *Service) RefreshStatuses(ctx context.Context) (int, error) {
	fixed := 0
	for {
		listed, n := 0, 0
		err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			drifted, err := s.repo.ListDrifted(ctx, s.batch)
			if err != nil {
				return fmt.Errorf("list drifted: %w", err)
			}
			listed = len(drifted)
			for _, d := range drifted {
				a, err := s.repo.GetForUpdate(ctx, d.ID)
				if err != nil {
					return err
				}
				if !a.Reconcile() {
					continue
				}
				a.UpdatedAt = s.now()
				if err := s.repo.UpdateLedger(ctx, a); err != nil {
					return fmt.Errorf("update ledger %s: %w", a.ID, err)
				}
				n++
			}
			return nil
		})
		if err != nil {
			return fixed, err
		}
		fixed += n
		if listed < s.batch || n == 0 {
			return fixed, nil
		}
	}
}
