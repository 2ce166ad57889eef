// Package auth provides authentication and account-recovery logic for
// administrators and taxpayers.
package auth

import (
	"context"
	"strings"
	"time"

	"taxledger/internal/core/apperror"
	appctx "taxledger/internal/core/context"
	"taxledger/internal/core/id"
)

// User is an account row. Administrators and taxpayers share the table
// and are told apart by Role.
type User struct {
	ID                  id.ID      `db:"id" json:"id"`
	Username            string     `db:"username" json:"username"`
	PasswordHash        string     `db:"password_hash" json:"-"`
	Role                string     `db:"role" json:"role"`
	Name                string     `db:"name" json:"name"`
	BusinessName        string     `db:"business_name" json:"businessName,omitempty"`
	Ward                string     `db:"ward" json:"ward,omitempty"`
	Phone               string     `db:"phone" json:"phone,omitempty"`
	Address             string     `db:"address" json:"address,omitempty"`
	FailedLoginAttempts int        `db:"failed_login_attempts" json:"-"`
	LockedUntil         *time.Time `db:"locked_until" json:"-"`
	LastLoginAt         *time.Time `db:"last_login_at" json:"lastLoginAt,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updatedAt"`
}

// NewUser creates a new account.
func NewUser(username, passwordHash, role string) *User {
	now := time.Now()
	return &User{
		ID:           id.New(),
		Username:     NormalizeUsername(username),
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NormalizeUsername makes usernames case-insensitive.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Validate validates user data.
func (u *User) Validate(_ context.Context) error {
	if u.Username == "" {
		return apperror.NewValidation("username is required").WithDetail("field", "username")
	}
	if u.Role != appctx.RoleAdmin && u.Role != appctx.RoleTaxpayer {
		return apperror.NewValidation("unknown role").WithDetail("role", u.Role)
	}
	return nil
}

// IsLocked returns true if account is locked at the given instant.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// CanLogin checks if user can login.
func (u *User) CanLogin(now time.Time) error {
	if u.IsLocked(now) {
		return apperror.NewForbidden("account is temporarily locked").
			WithDetail("lockedUntil", u.LockedUntil.UTC().Format(time.RFC3339))
	}
	return nil
}

// RecordFailedLogin increments failed login counter.
func (u *User) RecordFailedLogin(now time.Time, maxAttempts int, lockDuration time.Duration) {
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= maxAttempts {
		lockUntil := now.Add(lockDuration)
		u.LockedUntil = &lockUntil
		u.FailedLoginAttempts = 0
	}
	u.UpdatedAt = now
}

// RecordSuccessfulLogin resets failed login counter.
func (u *User) RecordSuccessfulLogin(now time.Time) {
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now
	u.UpdatedAt = now
}

// ResetToken is a single-use password reset grant. Only the sha256 of
// the token handed to the user is stored.
type ResetToken struct {
	ID        id.ID      `db:"id"`
	UserID    id.ID      `db:"user_id"`
	TokenHash string     `db:"token_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	UsedAt    *time.Time `db:"used_at"`
	CreatedAt time.Time  `db:"created_at"`
}

// IsValid checks if the token can still be redeemed.
func (t *ResetToken) IsValid(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}

// Credentials for login.
type Credentials struct {
	Username string
	Password string
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	TokenType   string    `json:"tokenType"`
	User        *User     `json:"user"`
}
