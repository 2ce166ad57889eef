package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedis_RequiresAddr(t *testing.T) {
	_, err := NewRedis(context.Background(), RedisConfig{})
	assert.Error(t, err)
}

func TestRedisCache_UnreachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedis(ctx, RedisConfig{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:1")

	c := NewRedisFromClient(redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	}))
	defer c.Close()

	_, ok, err := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.ErrorContains(t, err, "redis get k")
	assert.ErrorContains(t, c.Set(ctx, "k", []byte("v"), time.Second), "redis set k")
	assert.ErrorContains(t, c.Delete(ctx, "k"), "redis del k")
}
