package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Key(t *testing.T) {
	assert.Equal(t, "cart:42", NewStore(nil, "cart").Key("42"))
	assert.Equal(t, "42", NewStore(nil, "").Key("42"))
}

func TestStore_DeleteNothing(t *testing.T) {
	assert.NoError(t, NewStore(nil, "cart").Delete(context.Background()))
}

// Runs against a real server when REDIS_TEST_ADDR is set.
func TestStore_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	store := NewStore(rdb, "test-cart")
	ctx := context.Background()

	type payload struct {
		Count int `json:"count"`
	}

	require.NoError(t, store.SetJSON(ctx, "1", payload{Count: 3}, time.Minute))

	var got payload
	found, err := store.GetJSON(ctx, "1", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 3, got.Count)

	require.NoError(t, store.Delete(ctx, "1"))
	found, err = store.GetJSON(ctx, "1", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_Counter(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	store := NewStore(rdb, "test-counter")
	ctx := context.Background()
	require.NoError(t, store.Delete(ctx, "7"))

	v, err := store.GetInt(ctx, "7")
	require.NoError(t, err)
	assert.Zero(t, v)

	v, err = store.Incr(ctx, "7", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	ttl, err := rdb.TTL(ctx, store.Key("7")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	v, err = store.GetInt(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}
