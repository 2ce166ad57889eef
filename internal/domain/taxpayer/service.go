package taxpayer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taxledger/internal/core/apperror"
	"taxledger/internal/core/id"
	"taxledger/internal/domain"
	"taxledger/internal/domain/auth"
	"taxledger/pkg/logger"
)

// PasswordHasher enforces the password policy and hashes.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
}

// CreateInput is an admin registration of a taxpayer.
type CreateInput struct {
	Name         string
	Username     string
	Password     string
	BusinessName string
	Ward         string
	Phone        string
	Address      string
}

// Service provides taxpayer business logic.
type Service struct {
	repo   Repository
	hasher PasswordHasher
	now    func() time.Time
}

// NewService creates a new taxpayer service.
func NewService(repo Repository, hasher PasswordHasher) *Service {
	return &Service{repo: repo, hasher: hasher, now: time.Now}
}

// Create registers a taxpayer account.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Taxpayer, error) {
	now := s.now()
	t := &Taxpayer{
		ID:           id.New(),
		Username:     auth.NormalizeUsername(in.Username),
		Name:         strings.TrimSpace(in.Name),
		BusinessName: strings.TrimSpace(in.BusinessName),
		Ward:         strings.TrimSpace(in.Ward),
		Phone:        strings.TrimSpace(in.Phone),
		Address:      strings.TrimSpace(in.Address),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := t.Validate(ctx); err != nil {
		return nil, err
	}

	hash, err := s.hasher.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByUsername(ctx, t.Username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return nil, apperror.NewDuplicate("taxpayer", "username", t.Username)
	}

	if err := s.repo.Create(ctx, t, hash); err != nil {
		return nil, err
	}

	logger.Info(ctx, "taxpayer registered",
		"taxpayer_id", t.ID,
		"username", t.Username,
		"ward", t.Ward)
	return t, nil
}

// Get returns a taxpayer by id.
func (s *Service) Get(ctx context.Context, taxpayerID id.ID) (*Taxpayer, error) {
	return s.repo.GetByID(ctx, taxpayerID)
}

// List returns taxpayers sorted by name.
func (s *Service) List(ctx context.Context, filter Filter) (domain.ListResult[*Taxpayer], error) {
	filter.Normalize()
	if filter.OrderBy == "" {
		filter.OrderBy = "name"
	}
	return s.repo.List(ctx, filter)
}

// IsTaxpayer reports whether the id belongs to a taxpayer account.
func (s *Service) IsTaxpayer(ctx context.Context, taxpayerID id.ID) (bool, error) {
	return s.repo.IsTaxpayer(ctx, taxpayerID)
}
