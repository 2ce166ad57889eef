package auth

import (
	"context"
	"time"

	"taxledger/internal/core/id"
)

// UserRepository defines user storage operations.
type UserRepository interface {
	// Create creates a new user.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves user by ID.
	GetByID(ctx context.Context, userID id.ID) (*User, error)

	// GetByUsername retrieves user by normalized username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// Update writes password hash, lockout and login bookkeeping.
	Update(ctx context.Context, user *User) error

	// ExistsByUsername checks if a username is taken.
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

// TokenRepository defines reset token storage operations.
type TokenRepository interface {
	SaveResetToken(ctx context.Context, token *ResetToken) error
	GetResetToken(ctx context.Context, tokenHash string) (*ResetToken, error)
	MarkResetTokenUsed(ctx context.Context, tokenID id.ID, at time.Time) error

	// InvalidateUserResetTokens marks every open token of the user as used.
	InvalidateUserResetTokens(ctx context.Context, userID id.ID, at time.Time) error

	// CleanupExpiredTokens removes expired or redeemed tokens.
	CleanupExpiredTokens(ctx context.Context, before time.Time) (int64, error)
}
