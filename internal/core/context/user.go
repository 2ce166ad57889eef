// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// Roles known to the API.
const (
	RoleAdmin    = "admin"
	RoleTaxpayer = "taxpayer"
)

// UserContext contains authenticated user information.
type UserContext struct {
	UserID   string
	Username string
	Role     string
}

// IsAdmin reports whether the caller authenticated as an administrator.
func (u *UserContext) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// HasRole checks if user has specific role.
func HasRole(ctx context.Context, role string) bool {
	u := GetUser(ctx)
	return u != nil && u.Role == role
}

// CanAccessTaxpayer reports whether the caller may read data owned by taxpayerID.
// Admins see everything; taxpayers only their own records.
func CanAccessTaxpayer(ctx context.Context, taxpayerID string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	return u.IsAdmin() || u.UserID == taxpayerID
}
