package auth_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"taxledger/internal/core/apperror"
	appctx "taxledger/internal/core/context"
	"taxledger/internal/core/id"
	"taxledger/internal/domain"
	"taxledger/internal/domain/auth"
	"taxledger/internal/domain/taxpayer"
	"taxledger/internal/infrastructure/storage/postgres"
)

var taxpayerOrder = map[string]string{
	"name":          "name",
	"username":      "username",
	"business_name": "business_name",
	"ward":          "ward",
	"created_at":    "created_at",
}

// TaxpayerRepo implements taxpayer.Repository over users with role taxpayer.
type TaxpayerRepo struct {
	txManager *postgres.TxManager
	cols      []string
}

// NewTaxpayerRepo creates a new taxpayer repository.
func NewTaxpayerRepo(txManager *postgres.TxManager) *TaxpayerRepo {
	return &TaxpayerRepo{
		txManager: txManager,
		cols:      postgres.ExtractDBColumns[taxpayer.Taxpayer](),
	}
}

// Create inserts the users row for a taxpayer.
func (r *TaxpayerRepo) Create(ctx context.Context, t *taxpayer.Taxpayer, passwordHash string) error {
	user := &auth.User{
		ID:           t.ID,
		Username:     t.Username,
		PasswordHash: passwordHash,
		Role:         appctx.RoleTaxpayer,
		Name:         t.Name,
		BusinessName: t.BusinessName,
		Ward:         t.Ward,
		Phone:        t.Phone,
		Address:      t.Address,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
	err := postgres.Insert(ctx, r.txManager.GetQuerier(ctx), usersTable, user)
	if _, dup := postgres.UniqueViolation(err); dup {
		return apperror.NewDuplicate("taxpayer", "username", t.Username).WithCause(err)
	}
	return err
}

func (r *TaxpayerRepo) baseSelect() squirrel.SelectBuilder {
	return postgres.Builder().
		Select(r.cols...).
		From(usersTable).
		Where(squirrel.Eq{"role": appctx.RoleTaxpayer})
}

// GetByID retrieves a taxpayer by ID.
func (r *TaxpayerRepo) GetByID(ctx context.Context, taxpayerID id.ID) (*taxpayer.Taxpayer, error) {
	sql, args, err := r.baseSelect().Where(squirrel.Eq{"id": taxpayerID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var t taxpayer.Taxpayer
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &t, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("taxpayer", taxpayerID.String())
		}
		return nil, fmt.Errorf("get taxpayer: %w", err)
	}
	return &t, nil
}

// List retrieves taxpayers with filtering and pagination.
func (r *TaxpayerRepo) List(ctx context.Context, filter taxpayer.Filter) (domain.ListResult[*taxpayer.Taxpayer], error) {
	order, err := postgres.OrderBy(filter.OrderBy, "name", taxpayerOrder)
	if err != nil {
		return domain.ListResult[*taxpayer.Taxpayer]{}, err
	}
	return postgres.Page[*taxpayer.Taxpayer](ctx, r.txManager.GetQuerier(ctx), r.listQuery(filter), filter.ListFilter, order)
}

func (r *TaxpayerRepo) listQuery(filter taxpayer.Filter) squirrel.SelectBuilder {
	q := r.baseSelect()
	if filter.Ward != "" {
		q = q.Where(squirrel.Eq{"ward": filter.Ward})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"username": pattern},
			squirrel.ILike{"business_name": pattern},
			squirrel.ILike{"ward": pattern},
		})
	}
	return q
}

// ExistsByUsername checks if a username is taken by any account.
func (r *TaxpayerRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return exists(ctx, r.txManager.GetQuerier(ctx), `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username)
}

// IsTaxpayer reports whether the id belongs to a taxpayer account.
func (r *TaxpayerRepo) IsTaxpayer(ctx context.Context, taxpayerID id.ID) (bool, error) {
	return exists(ctx, r.txManager.GetQuerier(ctx),
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND role = $2)`, taxpayerID, appctx.RoleTaxpayer)
}

var _ taxpayer.Repository = (*TaxpayerRepo)(nil)
