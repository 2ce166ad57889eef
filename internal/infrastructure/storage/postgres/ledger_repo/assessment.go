// Package ledger_repo provides PostgreSQL implementations of the
// assessment, payment and reminder repositories.
package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"taxledger/internal/core/apperror"
	"taxledger/internal/core/id"
	"taxledger/internal/domain"
	"taxledger/internal/domain/assessment"
	"taxledger/internal/domain/tax"
	"taxledger/internal/infrastructure/storage/postgres"
)

const assessmentsTable = "assessments"

var assessmentOrder = map[string]string{
	"created_at":     "a.created_at",
	"due_date":       "a.due_date",
	"amount":         "a.amount",
	"balance":        "a.balance",
	"status":         "a.status",
	"financial_year": "a.financial_year",
	"taxpayer_name":  "u.name",
}

// AssessmentRepo implements assessment.Repository.
type AssessmentRepo struct {
	txManager  *postgres.TxManager
	selectCols []string
}

// NewAssessmentRepo creates a new assessment repository.
func NewAssessmentRepo(txManager *postgres.TxManager) *AssessmentRepo {
	cols := postgres.Qualify("a", postgres.WritableColumns[assessment.Assessment]())
	cols = append(cols, "u.name AS taxpayer_name")
	return &AssessmentRepo{txManager: txManager, selectCols: cols}
}

func (r *AssessmentRepo) baseSelect() squirrel.SelectBuilder {
	return postgres.Builder().
		Select(r.selectCols...).
		From(assessmentsTable + " a").
		Join("users u ON u.id = a.taxpayer_id")
}

// Create inserts a new assessment.
func (r *AssessmentRepo) Create(ctx context.Context, a *assessment.Assessment) error {
	err := postgres.Insert(ctx, r.txManager.GetQuerier(ctx), assessmentsTable, a)
	if _, dup := postgres.UniqueViolation(err); dup {
		return apperror.NewDuplicate("assessment", "financialYear", a.FinancialYear).
			WithDetail("period", string(a.Period)).
			WithCause(err)
	}
	return err
}

// GetByID retrieves an assessment by ID.
func (r *AssessmentRepo) GetByID(ctx context.Context, assessmentID id.ID) (*assessment.Assessment, error) {
	return r.get(ctx, r.baseSelect().Where(squirrel.Eq{"a.id": assessmentID}), assessmentID)
}

// GetForUpdate retrieves and locks the assessment row until the
// surrounding transaction ends.
func (r *AssessmentRepo) GetForUpdate(ctx context.Context, assessmentID id.ID) (*assessment.Assessment, error) {
	if r.txManager.GetTx(ctx) == nil {
		return nil, fmt.Errorf("GetForUpdate requires transaction context")
	}
	q := r.baseSelect().
		Where(squirrel.Eq{"a.id": assessmentID}).
		Suffix("FOR UPDATE OF a")
	return r.get(ctx, q, assessmentID)
}

func (r *AssessmentRepo) get(ctx context.Context, q squirrel.SelectBuilder, assessmentID id.ID) (*assessment.Assessment, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var a assessment.Assessment
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &a, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("assessment", assessmentID.String())
		}
		return nil, fmt.Errorf("get assessment: %w", err)
	}
	return &a, nil
}

// UpdateLedger persists paid amount, balance and status.
func (r *AssessmentRepo) UpdateLedger(ctx context.Context, a *assessment.Assessment) error {
	sql, args, err := postgres.Builder().
		Update(assessmentsTable).
		Set("paid_amount", a.PaidAmount).
		Set("balance", a.Balance).
		Set("status", a.Status).
		Set("updated_at", a.UpdatedAt).
		Where(squirrel.Eq{"id": a.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update assessment ledger: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("assessment", a.ID.String())
	}
	return nil
}

// Exists checks for an assessment of the taxpayer for a financial year and period.
func (r *AssessmentRepo) Exists(ctx context.Context, taxpayerID id.ID, financialYear string, period tax.Period) (bool, error) {
	sql, args, err := postgres.Builder().
		Select("1").
		Prefix("SELECT EXISTS (").
		From(assessmentsTable).
		Where(squirrel.Eq{
			"taxpayer_id":    taxpayerID,
			"financial_year": financialYear,
			"period":         period,
		}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var exists bool
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("assessment exists: %w", err)
	}
	return exists, nil
}

// List retrieves assessments with filtering and pagination.
func (r *AssessmentRepo) List(ctx context.Context, filter assessment.Filter) (domain.ListResult[*assessment.Assessment], error) {
	order, err := postgres.OrderBy(filter.OrderBy, "-created_at", assessmentOrder)
	if err != nil {
		return domain.ListResult[*assessment.Assessment]{}, err
	}
	return postgres.Page[*assessment.Assessment](ctx, r.txManager.GetQuerier(ctx), r.listQuery(filter), filter.ListFilter, order)
}

func (r *AssessmentRepo) listQuery(filter assessment.Filter) squirrel.SelectBuilder {
	q := r.baseSelect()
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"a.status": *filter.Status})
	}
	if filter.TaxpayerID != nil {
		q = q.Where(squirrel.Eq{"a.taxpayer_id": *filter.TaxpayerID})
	}
	if filter.FinancialYear != "" {
		q = q.Where(squirrel.Eq{"a.financial_year": filter.FinancialYear})
	}
	if filter.Period != nil {
		q = q.Where(squirrel.Eq{"a.period": *filter.Period})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"u.name": pattern},
			squirrel.ILike{"u.username": pattern},
			squirrel.ILike{"u.business_name": pattern},
		})
	}
	return q
}

// derivedStatusSQL mirrors assessment.DeriveStatus.
const derivedStatusSQL = `CASE WHEN a.paid_amount >= a.amount THEN 'paid' WHEN a.paid_amount > 0 THEN 'partially_paid' ELSE 'unpaid' END`

// ListDrifted returns rows whose stored balance or status disagree with
// amount and paid amount.
func (r *AssessmentRepo) ListDrifted(ctx context.Context, limit int) ([]*assessment.Assessment, error) {
	q := r.baseSelect().
		Where(squirrel.Or{
			squirrel.Expr("a.balance <> GREATEST(a.amount - a.paid_amount, 0)"),
			squirrel.Expr("a.status <> " + derivedStatusSQL),
		}).
		OrderBy("a.id").
		Limit(uint64(limit))
	return r.selectAll(ctx, q)
}

// ListOverdue returns assessments due before asOf that are not fully paid.
func (r *AssessmentRepo) ListOverdue(ctx context.Context, asOf time.Time) ([]*assessment.Assessment, error) {
	q := r.baseSelect().
		Where(squirrel.NotEq{"a.status": assessment.StatusPaid}).
		Where(squirrel.Lt{"a.due_date": asOf}).
		OrderBy("a.due_date", "a.id")
	return r.selectAll(ctx, q)
}

func (r *AssessmentRepo) selectAll(ctx context.Context, q squirrel.SelectBuilder) ([]*assessment.Assessment, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []*assessment.Assessment
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select assessments: %w", err)
	}
	return items, nil
}

var _ assessment.Repository = (*AssessmentRepo)(nil)
