package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mercadito/storefront-backend/internal/app/model"
	"github.com/mercadito/storefront-backend/pkg/redis"
)

type redisCartCache struct {
	store *redis.Store
	ttl   time.Duration
}

// NewRedisCartCache caches raw procedure rows per client for ttl.
//
// Rows live under a key that embeds the client's cache version. Invalidate
// bumps the version, so a fill that started before the bump writes a key no
// reader looks up and simply expires.
func NewRedisCartCache(store *redis.Store, ttl time.Duration) CartCache {
	return &redisCartCache{store: store, ttl: ttl}
}

func versionKey(clientID uint) string {
	return fmt.Sprintf("%d:version", clientID)
}

func rowsKey(clientID uint, version int64) string {
	return fmt.Sprintf("%d:v%d", clientID, version)
}

// The version key outlives every rows key written under it.
func (c *redisCartCache) versionTTL() time.Duration {
	return 2 * c.ttl
}

func (c *redisCartCache) Get(ctx context.Context, clientID uint) ([]model.CartItem, int64, bool, error) {
	version, err := c.store.GetInt(ctx, versionKey(clientID))
	if err != nil {
		return nil, 0, false, err
	}

	var items []model.CartItem
	found, err := c.store.GetJSON(ctx, rowsKey(clientID, version), &items)
	if err != nil || !found {
		return nil, version, false, err
	}
	if items == nil {
		items = []model.CartItem{}
	}
	return items, version, true, nil
}

func (c *redisCartCache) Set(ctx context.Context, clientID uint, version int64, items []model.CartItem) error {
	if err := c.store.SetJSON(ctx, rowsKey(clientID, version), items, c.ttl); err != nil {
		return err
	}
	return c.store.Expire(ctx, versionKey(clientID), c.versionTTL())
}

func (c *redisCartCache) Invalidate(ctx context.Context, clientID uint) error {
	_, err := c.store.Incr(ctx, versionKey(clientID), c.versionTTL())
	return err
}
