package service

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/mercadito/storefront-backend/internal/app/model"
	"github.com/mercadito/storefront-backend/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real server when REDIS_TEST_ADDR is set.
func TestRedisCartCache_SetAfterInvalidateIsIgnored(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	defer rdb.Close()

	store := redis.NewStore(rdb, fmt.Sprintf("test-cart-%d", time.Now().UnixNano()))
	cache := NewRedisCartCache(store, time.Minute)
	ctx := context.Background()
	rows := []model.CartItem{{CartID: 1, ClientID: 7, ProductID: 1, Quantity: 1}}

	_, version, found, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Invalidate(ctx, 7))
	require.NoError(t, cache.Set(ctx, 7, version, rows))

	_, _, found, err = cache.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, found, "rows read before the invalidation must not be served")

	_, version, _, err = cache.Get(ctx, 7)
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, 7, version, rows))

	items, _, found, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, items, 1)
	assert.Equal(t, uint(1), items[0].ProductID)
}
