package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	appctx "taxledger/internal/core/context"
	"taxledger/internal/domain/auth"
	"taxledger/internal/infrastructure/http/v1/dto"
)

// AuthService is the part of auth.Service the handlers use.
type AuthService interface {
	Login(ctx context.Context, creds auth.Credentials, role string) (*auth.LoginResult, error)
	Me(ctx context.Context) (*auth.User, error)
	ChangePassword(ctx context.Context, currentPassword, newPassword string) error
	ForgotPassword(ctx context.Context, username string) (string, error)
	ResetPassword(ctx context.Context, username, rawToken, newPassword string) error
}

const forgotPasswordMessage = "If the account exists, a reset token has been issued"

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	*BaseHandler
	service AuthService

	// exposeResetToken returns reset tokens in the response body.
	// Only enabled in development, where no mail delivery exists.
	exposeResetToken bool
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(base *BaseHandler, service AuthService, exposeResetToken bool) *AuthHandler {
	return &AuthHandler{
		BaseHandler:      base,
		service:          service,
		exposeResetToken: exposeResetToken,
	}
}

// AdminLogin handles POST /auth/admin/login
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	h.login(c, appctx.RoleAdmin)
}

// Login handles POST /auth/login (taxpayers)
func (h *AuthHandler) Login(c *gin.Context) {
	h.login(c, appctx.RoleTaxpayer)
}

func (h *AuthHandler) login(c *gin.Context, role string) {
	var req dto.LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Login(c.Request.Context(), req.ToCredentials(), role)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromLoginResult(result))
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.service.Me(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromUser(user))
}

// ChangePassword handles POST /auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req dto.ChangePasswordRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), req.CurrentPassword, req.NewPassword); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "password changed")
}

// ForgotPassword handles POST /auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req dto.ForgotPasswordRequest
	if !h.BindJSON(c, &req) {
		return
	}

	token, err := h.service.ForgotPassword(c.Request.Context(), req.Username)
	if err != nil {
		h.Error(c, err)
		return
	}

	resp := dto.ForgotPasswordResponse{Message: forgotPasswordMessage}
	if h.exposeResetToken {
		resp.ResetToken = token
	}
	h.OK(c, resp)
}

// ResetPassword handles POST /auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.ResetPassword(c.Request.Context(), req.Username, req.Token, req.NewPassword); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "password reset")
}

// RegisterRoutes registers auth routes.
func (h *AuthHandler) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.POST("/admin/login", h.AdminLogin)
	public.POST("/login", h.Login)
	public.POST("/forgot-password", h.ForgotPassword)
	public.POST("/reset-password", h.ResetPassword)

	protected.GET("/me", h.Me)
	protected.POST("/change-password", h.ChangePassword)
}
