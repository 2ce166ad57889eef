package auth_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"taxledger/internal/core/apperror"
	"taxledger/internal/core/id"
	"taxledger/internal/domain/auth"
	"taxledger/internal/infrastructure/storage/postgres"
)

// TokenRepo implements auth.TokenRepository over password_reset_tokens.
type TokenRepo struct {
	txManager *postgres.TxManager
}

// NewTokenRepo creates a new token repository.
func NewTokenRepo(txManager *postgres.TxManager) *TokenRepo {
	return &TokenRepo{txManager: txManager}
}

// SaveResetToken saves a reset token.
func (r *TokenRepo) SaveResetToken(ctx context.Context, token *auth.ResetToken) error {
	query := `
		INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.txManager.GetQuerier(ctx).Exec(ctx, query,
		token.ID, token.UserID, token.TokenHash, token.ExpiresAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save reset token: %w", err)
	}
	return nil
}

// GetResetToken retrieves reset token by hash.
func (r *TokenRepo) GetResetToken(ctx context.Context, tokenHash string) (*auth.ResetToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, used_at, created_at
		FROM password_reset_tokens WHERE token_hash = $1
	`

	var token auth.ResetToken
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &token, query, tokenHash); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("reset token", "")
		}
		return nil, fmt.Errorf("get reset token: %w", err)
	}
	return &token, nil
}

// MarkResetTokenUsed redeems a reset token.
func (r *TokenRepo) MarkResetTokenUsed(ctx context.Context, tokenID id.ID, at time.Time) error {
	query := `UPDATE password_reset_tokens SET used_at = $2 WHERE id = $1 AND used_at IS NULL`

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, query, tokenID, at)
	if err != nil {
		return fmt.Errorf("mark reset token used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConflict("reset token already used")
	}
	return nil
}

// InvalidateUserResetTokens marks every open token of the user as used.
func (r *TokenRepo) InvalidateUserResetTokens(ctx context.Context, userID id.ID, at time.Time) error {
	query := `UPDATE password_reset_tokens SET used_at = $2 WHERE user_id = $1 AND used_at IS NULL`

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, query, userID, at); err != nil {
		return fmt.Errorf("invalidate reset tokens: %w", err)
	}
	return nil
}

// CleanupExpiredTokens removes expired or redeemed tokens.
func (r *TokenRepo) CleanupExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM password_reset_tokens WHERE expires_at < $1 OR used_at IS NOT NULL`

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("cleanup reset tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ auth.TokenRepository = (*TokenRepo)(nil)
