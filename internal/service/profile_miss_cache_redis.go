package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisProfileMissCache struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisProfileMissCache(client redis.UniversalClient, prefix string) *RedisProfileMissCache {
	if prefix == "" {
		prefix = "profile_miss"
	}
	return &RedisProfileMissCache{
		client: client,
		prefix: prefix,
	}
}

func (c *RedisProfileMissCache) IsMissing(ctx context.Context, username string) (bool, error) {
	if c.client == nil {
		return false, nil
	}
	_, err := c.client.Get(ctx, c.key(username)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisProfileMissCache) MarkMissing(ctx context.Context, username string, ttl time.Duration) error {
	if c.client == nil || ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, c.key(username), "1", ttl).Err()
}

func (c *RedisProfileMissCache) Forget(ctx context.Context, username string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, c.key(username)).Err()
}

func (c *RedisProfileMissCache) key(username string) string {
	sum := sha256.Sum256([]byte(normalizeCacheKey(username)))
	return fmt.Sprintf("%s:%s", c.prefix, hex.EncodeToString(sum[:8]))
}
