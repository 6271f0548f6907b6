package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mercadito/storefront-backend/config"
	"github.com/mercadito/storefront-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// Init initializes Redis connection
func Init(cfg *config.RedisConfig) error {
	logger.Info("Initializing Redis connection", map[string]interface{}{
		"host": cfg.Host,
		"port": cfg.Port,
		"db":   cfg.DB,
	})

	client = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", err, map[string]interface{}{
			"host": cfg.Host,
			"port": cfg.Port,
		})
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established successfully", nil)
	return nil
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	return client
}

// Close closes the Redis connection
func Close() error {
	if client != nil {
		logger.Info("Closing Redis connection", nil)
		return client.Close()
	}
	return nil
}

// Store keeps JSON values under a key prefix.
type Store struct {
	client redis.Cmdable
	prefix string
}

func NewStore(client redis.Cmdable, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Key returns the namespaced form of key.
func (s *Store) Key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

// GetJSON decodes the value at key into dest. It reports false when the key
// does not exist.
func (s *Store) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := s.client.Get(ctx, s.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		logger.Error("Failed to read cache entry", err, map[string]interface{}{
			"key": s.Key(key),
		})
		return false, err
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		logger.Warn("Discarding undecodable cache entry", map[string]interface{}{
			"key":   s.Key(key),
			"error": err.Error(),
		})
		_ = s.client.Del(ctx, s.Key(key)).Err()
		return false, nil
	}
	return true, nil
}

func (s *Store) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := s.client.Set(ctx, s.Key(key), raw, ttl).Err(); err != nil {
		logger.Error("Failed to write cache entry", err, map[string]interface{}{
			"key": s.Key(key),
		})
		return err
	}
	return nil
}

// GetInt returns the integer at key, or 0 when the key does not exist.
func (s *Store) GetInt(ctx context.Context, key string) (int64, error) {
	v, err := s.client.Get(ctx, s.Key(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		logger.Error("Failed to read counter", err, map[string]interface{}{
			"key": s.Key(key),
		})
		return 0, err
	}
	return v, nil
}

// Incr increments the counter at key and resets its expiry to ttl in one
// transaction.
func (s *Store) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, s.Key(key))
		if ttl > 0 {
			pipe.Expire(ctx, s.Key(key), ttl)
		}
		return nil
	})
	if err != nil {
		logger.Error("Failed to increment counter", err, map[string]interface{}{
			"key": s.Key(key),
		})
		return 0, err
	}
	return incr.Val(), nil
}

// Expire sets the expiry of key. Missing keys are ignored.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, s.Key(key), ttl).Err()
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = s.Key(key)
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		logger.Error("Failed to delete cache entries", err, map[string]interface{}{
			"keys": full,
		})
		return err
	}
	return nil
}
