package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"taxledger/internal/core/apperror"
	appctx "taxledger/internal/core/context"
	"taxledger/internal/core/id"
	"taxledger/internal/core/tx"
	"taxledger/pkg/logger"
)

// ServiceConfig holds auth service configuration.
type ServiceConfig struct {
	MaxLoginAttempts  int
	LockDuration      time.Duration
	PasswordMinLength int
	ResetTokenExpiry  time.Duration
	BcryptCost        int
}

// DefaultServiceConfig returns default configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxLoginAttempts:  5,
		LockDuration:      15 * time.Minute,
		PasswordMinLength: 6,
		ResetTokenExpiry:  time.Hour,
		BcryptCost:        bcrypt.DefaultCost,
	}
}

// Service provides authentication logic.
type Service struct {
	userRepo   UserRepository
	tokenRepo  TokenRepository
	txManager  tx.Manager
	jwtService *JWTService
	config     ServiceConfig
	now        func() time.Time
}

// NewService creates a new auth service.
func NewService(
	userRepo UserRepository,
	tokenRepo TokenRepository,
	txManager tx.Manager,
	jwtService *JWTService,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:   userRepo,
		tokenRepo:  tokenRepo,
		txManager:  txManager,
		jwtService: jwtService,
		config:     config,
		now:        time.Now,
	}
}

// Login authenticates a user of the given role. An account of the other
// role is rejected exactly like a wrong password.
func (s *Service) Login(ctx context.Context, creds Credentials, role string) (*LoginResult, error) {
	username := NormalizeUsername(creds.Username)
	if username == "" || creds.Password == "" {
		return nil, apperror.NewValidation("username and password are required")
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewUnauthorized("invalid credentials")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user.Role != role {
		return nil, apperror.NewUnauthorized("invalid credentials")
	}

	now := s.now()
	if err := user.CanLogin(now); err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		user.RecordFailedLogin(now, s.config.MaxLoginAttempts, s.config.LockDuration)
		if err := s.userRepo.Update(ctx, user); err != nil {
			logger.Warn(ctx, "failed to record failed login", "user_id", user.ID, "error", err)
		}
		if user.LockedUntil != nil {
			logger.Warn(ctx, "account locked", "user_id", user.ID, "until", user.LockedUntil)
		}
		return nil, apperror.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.jwtService.GenerateAccessToken(user.ID.String(), user.Username, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	user.RecordSuccessfulLogin(now)
	if err := s.userRepo.Update(ctx, user); err != nil {
		logger.Warn(ctx, "failed to record login", "user_id", user.ID, "error", err)
	}

	logger.Info(ctx, "user logged in",
		"user_id", user.ID,
		"role", user.Role)

	return &LoginResult{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		TokenType:   "Bearer",
		User:        user,
	}, nil
}

// Me returns the profile of the authenticated caller.
func (s *Service) Me(ctx context.Context) (*User, error) {
	userID, err := s.currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, userID)
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	userID, err := s.currentUserID(ctx)
	if err != nil {
		return err
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return apperror.NewValidation("current password is incorrect").WithDetail("field", "currentPassword")
	}

	hash, err := s.HashPassword(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	logger.Info(ctx, "password changed", "user_id", user.ID)
	return nil
}

// ForgotPassword issues a reset token. Unknown usernames yield an empty
// token and no error so callers can answer identically in both cases.
func (s *Service) ForgotPassword(ctx context.Context, username string) (string, error) {
	user, err := s.userRepo.GetByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		if apperror.IsNotFound(err) {
			logger.Info(ctx, "password reset requested for unknown user")
			return "", nil
		}
		return "", fmt.Errorf("load user: %w", err)
	}

	raw, err := generateRandomToken(32)
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	now := s.now()
	token := &ResetToken{
		ID:        id.New(),
		UserID:    user.ID,
		TokenHash: hashToken(raw),
		ExpiresAt: now.Add(s.config.ResetTokenExpiry),
		CreatedAt: now,
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.tokenRepo.InvalidateUserResetTokens(ctx, user.ID, now); err != nil {
			return err
		}
		return s.tokenRepo.SaveResetToken(ctx, token)
	})
	if err != nil {
		return "", fmt.Errorf("save reset token: %w", err)
	}

	logger.Info(ctx, "password reset token issued",
		"user_id", user.ID,
		"expires_at", token.ExpiresAt)
	return raw, nil
}

// ResetPassword redeems a reset token and sets a new password.
func (s *Service) ResetPassword(ctx context.Context, username, rawToken, newPassword string) error {
	invalid := apperror.NewValidation("invalid or expired reset token").WithDetail("field", "token")
	if rawToken == "" {
		return invalid
	}

	hash, err := s.HashPassword(newPassword)
	if err != nil {
		return err
	}

	user, err := s.userRepo.GetByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		if apperror.IsNotFound(err) {
			return invalid
		}
		return fmt.Errorf("load user: %w", err)
	}

	now := s.now()
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		token, err := s.tokenRepo.GetResetToken(ctx, hashToken(rawToken))
		if err != nil {
			if apperror.IsNotFound(err) {
				return invalid
			}
			return fmt.Errorf("load reset token: %w", err)
		}
		if token.UserID != user.ID || !token.IsValid(now) {
			return invalid
		}

		user.PasswordHash = hash
		user.FailedLoginAttempts = 0
		user.LockedUntil = nil
		user.UpdatedAt = now
		if err := s.userRepo.Update(ctx, user); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if err := s.tokenRepo.MarkResetTokenUsed(ctx, token.ID, now); err != nil {
			return fmt.Errorf("redeem reset token: %w", err)
		}

		logger.Info(ctx, "password reset", "user_id", user.ID)
		return nil
	})
}

// CleanupExpiredTokens removes reset tokens that can no longer be redeemed.
func (s *Service) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	return s.tokenRepo.CleanupExpiredTokens(ctx, s.now())
}

// HashPassword checks the length policy and returns a bcrypt hash.
func (s *Service) HashPassword(password string) (string, error) {
	if len(password) < s.config.PasswordMinLength {
		return "", apperror.NewValidation(
			fmt.Sprintf("password must be at least %d characters", s.config.PasswordMinLength),
		).WithDetail("field", "password")
	}
	cost := s.config.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (s *Service) currentUserID(ctx context.Context) (id.ID, error) {
	u := appctx.GetUser(ctx)
	if u == nil {
		return id.ID{}, apperror.NewUnauthorized("authentication required")
	}
	userID, err := id.Parse(u.UserID)
	if err != nil {
		return id.ID{}, apperror.NewUnauthorized("invalid token subject")
	}
	return userID, nil
}

// hashToken creates SHA256 hash of token.
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// generateRandomToken generates a random token string.
func generateRandomToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
