// Package redis implements the session cache on a Redis server. Keys are
// plain strings so operators can inspect sessions with redis-cli.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/moviestream/auth/internal/auth/cache"

	"github.com/redis/go-redis/v9"
)

const (
	refreshPrefix       = "refresh:"
	invalidAccessPrefix = "invalid-access-token:"
)

type Cache struct {
	client redis.UniversalClient
}

// New connects to the Redis server at addr and verifies the connection.
func New(ctx context.Context, addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Cache{client: client}, nil
}

// NewWithClient wraps an existing client. Used by tests with miniredis.
func NewWithClient(client redis.UniversalClient) *Cache {
	return &Cache{client: client}
}

func (c *Cache) PutRefresh(ctx context.Context, token, userID string, ttl time.Duration) error {
	return c.client.Set(ctx, refreshPrefix+token, userID, ttl).Err()
}

func (c *Cache) TakeRefresh(ctx context.Context, token string) (string, error) {
	userID, err := c.client.GetDel(ctx, refreshPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", cache.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (c *Cache) InvalidateAccess(ctx context.Context, token, userID string, ttl time.Duration) error {
	if ttl <= 0 {
		// Token already expired on its own; nothing to revoke.
		return nil
	}
	return c.client.Set(ctx, invalidAccessPrefix+token, userID, ttl).Err()
}

func (c *Cache) IsAccessInvalid(ctx context.Context, token string) (bool, error) {
	n, err := c.client.Exists(ctx, invalidAccessPrefix+token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *Cache) IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
