package dto

import (
	"time"

	"taxledger/internal/domain/auth"
)

// --- Request DTOs ---

// LoginRequest for admin and taxpayer login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ToCredentials converts to domain credentials.
func (r *LoginRequest) ToCredentials() auth.Credentials {
	return auth.Credentials{
		Username: r.Username,
		Password: r.Password,
	}
}

// ChangePasswordRequest for changing the caller's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
}

// ForgotPasswordRequest starts a password reset.
type ForgotPasswordRequest struct {
	Username string `json:"username" binding:"required"`
}

// ResetPasswordRequest completes a password reset.
type ResetPasswordRequest struct {
	Username    string `json:"username" binding:"required"`
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=6"`
}

// --- Response DTOs ---

// UserResponse represents the public profile of an account.
type UserResponse struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Role         string     `json:"role"`
	Name         string     `json:"name"`
	BusinessName string     `json:"businessName,omitempty"`
	Ward         string     `json:"ward,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	Address      string     `json:"address,omitempty"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// FromUser converts domain user to response DTO.
func FromUser(u *auth.User) *UserResponse {
	if u == nil {
		return nil
	}
	return &UserResponse{
		ID:           u.ID.String(),
		Username:     u.Username,
		Role:         u.Role,
		Name:         u.Name,
		BusinessName: u.BusinessName,
		Ward:         u.Ward,
		Phone:        u.Phone,
		Address:      u.Address,
		LastLoginAt:  u.LastLoginAt,
		CreatedAt:    u.CreatedAt,
	}
}

// LoginResponse represents login response.
type LoginResponse struct {
	AccessToken string        `json:"accessToken"`
	TokenType   string        `json:"tokenType"`
	ExpiresAt   time.Time     `json:"expiresAt"`
	User        *UserResponse `json:"user"`
}

// FromLoginResult converts the domain login result.
func FromLoginResult(r *auth.LoginResult) LoginResponse {
	return LoginResponse{
		AccessToken: r.AccessToken,
		TokenType:   r.TokenType,
		ExpiresAt:   r.ExpiresAt,
		User:        FromUser(r.User),
	}
}

// ForgotPasswordResponse never reveals whether the username exists.
// ResetToken is only filled in development.
type ForgotPasswordResponse struct {
	Message    string `json:"message"`
	ResetToken string `json:"resetToken,omitempty"`
}
