// Package dashboard aggregates ledger totals for the admin overview.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"taxledger/internal/core/types"
	"taxledger/internal/domain"
	"taxledger/pkg/logger"
)

// CacheKey is the single key the totals are cached under.
const CacheKey = "taxledger:dashboard:totals"

// Totals is the admin dashboard summary.
type Totals struct {
	TotalAssessed  types.Money      `json:"totalAssessed"`
	TotalCollected types.Money      `json:"totalCollected"`
	TotalUnpaid    types.Money      `json:"totalUnpaid"`
	TotalRefunded  types.Money      `json:"totalRefunded"`
	TotalTaxpayers int64            `json:"totalTaxpayers"`
	Assessments    int64            `json:"assessments"`
	Payments       int64            `json:"payments"`
	ByStatus       map[string]int64 `json:"byStatus"`
	GeneratedAt    time.Time        `json:"generatedAt"`
}

// Repository computes totals from the ledger tables.
type Repository interface {
	Totals(ctx context.Context) (*Totals, error)
}

// Cache stores serialized totals. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Service serves totals, through the cache when one is configured.
type Service struct {
	repo  Repository
	cache Cache
	ttl   time.Duration
}

// NewService creates a dashboard service. cache may be nil.
func NewService(repo Repository, cache Cache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{repo: repo, cache: cache, ttl: ttl}
}

// Get returns the totals. Cache failures degrade to a direct computation.
func (s *Service) Get(ctx context.Context) (*Totals, error) {
	if s.cache != nil {
		raw, ok, err := s.cache.Get(ctx, CacheKey)
		switch {
		case err != nil:
			logger.Warn(ctx, "dashboard cache read failed", "error", err)
		case ok:
			var t Totals
			if err := json.Unmarshal(raw, &t); err == nil {
				return &t, nil
			}
			logger.Warn(ctx, "dashboard cache entry corrupt", "key", CacheKey)
		}
	}

	t, err := s.repo.Totals(ctx)
	if err != nil {
		return nil, fmt.Errorf("dashboard totals: %w", err)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(t); err == nil {
			if err := s.cache.Set(ctx, CacheKey, raw, s.ttl); err != nil {
				logger.Warn(ctx, "dashboard cache write failed", "error", err)
			}
		}
	}
	return t, nil
}

// Invalidate drops the cached totals.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Delete(ctx, CacheKey); err != nil {
		return fmt.Errorf("invalidate dashboard: %w", err)
	}
	return nil
}

// InvalidateOn registers cache invalidation on create and update of T.
func InvalidateOn[T any](s *Service, hooks *domain.HookRegistry[T]) {
	drop := func(ctx context.Context, _ T) error { return s.Invalidate(ctx) }
	hooks.OnAfterCreate(drop)
	hooks.OnAfterUpdate(drop)
}
