package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxledger/internal/core/types"
	"taxledger/internal/domain"
)

type countingRepo struct {
	calls int
	err   error
}

func (r *countingRepo) Totals(context.Context) (*Totals, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &Totals{
		TotalAssessed:  types.MustMoney("1500"),
		TotalCollected: types.MustMoney("600"),
		TotalUnpaid:    types.MustMoney("900"),
		TotalRefunded:  types.Zero(),
		TotalTaxpayers: 3,
		ByStatus:       map[string]int64{"paid": 1, "unpaid": 2},
	}, nil
}

type mapCache struct {
	data    map[string][]byte
	getErr  error
	deleted int
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	if c.data == nil {
		c.data = map[string][]byte{}
	}
	c.data[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	delete(c.data, key)
	c.deleted++
	return nil
}

func TestGet_CachesUntilInvalidated(t *testing.T) {
	repo := &countingRepo{}
	cache := &mapCache{}
	svc := NewService(repo, cache, time.Minute)
	ctx := context.Background()

	first, err := svc.Get(ctx)
	require.NoError(t, err)
	second, err := svc.Get(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.calls)
	assert.True(t, first.TotalUnpaid.Equal(second.TotalUnpaid))
	assert.Equal(t, int64(2), second.ByStatus["unpaid"])

	require.NoError(t, svc.Invalidate(ctx))
	_, err = svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)
}

func TestGet_WithoutCache(t *testing.T) {
	repo := &countingRepo{}
	svc := NewService(repo, nil, 0)

	for i := 0; i < 3; i++ {
		_, err := svc.Get(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 3, repo.calls)
	assert.NoError(t, svc.Invalidate(context.Background()))
}

func TestGet_CacheFailureFallsBack(t *testing.T) {
	repo := &countingRepo{}
	svc := NewService(repo, &mapCache{getErr: errors.New("connection refused")}, time.Minute)

	totals, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), totals.TotalTaxpayers)
}

func TestGet_RepositoryError(t *testing.T) {
	svc := NewService(&countingRepo{err: errors.New("db down")}, nil, 0)
	_, err := svc.Get(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestInvalidateOn(t *testing.T) {
	cache := &mapCache{}
	svc := NewService(&countingRepo{}, cache, time.Minute)
	hooks := domain.NewHookRegistry[string]()
	InvalidateOn(svc, hooks)

	ctx := context.Background()
	require.NoError(t, hooks.Run(ctx, domain.AfterCreate, "x"))
	require.NoError(t, hooks.Run(ctx, domain.AfterUpdate, "x"))
	assert.Equal(t, 2, cache.deleted)
}
