// Package auth_repo provides PostgreSQL implementations for account repositories.
package auth_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"taxledger/internal/core/apperror"
	"taxledger/internal/core/id"
	"taxledger/internal/domain/auth"
	"taxledger/internal/infrastructure/storage/postgres"
)

const usersTable = "users"

// UserRepo implements auth.UserRepository.
type UserRepo struct {
	txManager *postgres.TxManager
	cols      []string
}

// NewUserRepo creates a new user repository.
func NewUserRepo(txManager *postgres.TxManager) *UserRepo {
	return &UserRepo{
		txManager: txManager,
		cols:      postgres.ExtractDBColumns[auth.User](),
	}
}

// Create creates a new user.
func (r *UserRepo) Create(ctx context.Context, user *auth.User) error {
	err := postgres.Insert(ctx, r.txManager.GetQuerier(ctx), usersTable, user)
	if _, dup := postgres.UniqueViolation(err); dup {
		return apperror.NewDuplicate("user", "username", user.Username).WithCause(err)
	}
	return err
}

// GetByID retrieves user by ID.
func (r *UserRepo) GetByID(ctx context.Context, userID id.ID) (*auth.User, error) {
	return r.get(ctx, squirrel.Eq{"id": userID}, userID.String())
}

// GetByUsername retrieves user by normalized username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	return r.get(ctx, squirrel.Eq{"username": username}, username)
}

func (r *UserRepo) get(ctx context.Context, where squirrel.Sqlizer, ref string) (*auth.User, error) {
	sql, args, err := postgres.Builder().
		Select(r.cols...).
		From(usersTable).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var user auth.User
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &user, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("user", ref)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// Update writes password hash, lockout and login bookkeeping.
func (r *UserRepo) Update(ctx context.Context, user *auth.User) error {
	query := `
		UPDATE users SET
			password_hash = $2,
			failed_login_attempts = $3,
			locked_until = $4,
			last_login_at = $5,
			updated_at = $6
		WHERE id = $1
	`

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, query,
		user.ID, user.PasswordHash, user.FailedLoginAttempts,
		user.LockedUntil, user.LastLoginAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("user", user.ID.String())
	}
	return nil
}

// ExistsByUsername checks if a username is taken.
func (r *UserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return exists(ctx, r.txManager.GetQuerier(ctx), `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username)
}

func exists(ctx context.Context, q postgres.Querier, query string, args ...any) (bool, error) {
	var ok bool
	if err := q.QueryRow(ctx, query, args...).Scan(&ok); err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	return ok, nil
}

var _ auth.UserRepository = (*UserRepo)(nil)
