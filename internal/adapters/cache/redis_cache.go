package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mikey/mailguard/internal/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisKeyPrefix is the key prefix of stored verdicts
const RedisKeyPrefix = "mailguard:verdict:"

var _ core.CacheRepository = (*RedisCache)(nil)

// RedisCache is a Redis implementation of the CacheRepository interface.
// Expiry is delegated to Redis key TTLs.
type RedisCache struct {
	client *redis.Client
	logger *zap.Logger
}

type redisEntry struct {
	Label      core.Label `json:"label"`
	Confidence float64    `json:"confidence"`
	ModelUsed  string     `json:"model"`
	StoredAt   int64      `json:"stored_at"`
	ExpiresAt  int64      `json:"expires_at"`
}

// NewRedisCache connects to Redis and checks the connection
func NewRedisCache(ctx context.Context, addr, password string, db int, logger *zap.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheWithClient(client, logger), nil
}

// NewRedisCacheWithClient wraps an existing client
func NewRedisCacheWithClient(client *redis.Client, logger *zap.Logger) *RedisCache {
	return &RedisCache{client: client, logger: logger}
}

// Get retrieves a live entry by digest
func (c *RedisCache) Get(ctx context.Context, digest string) (*core.CacheEntry, error) {
	data, err := c.client.Get(ctx, RedisKeyPrefix+digest).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	var stored redisEntry
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}

	return &core.CacheEntry{
		Digest:     digest,
		Label:      stored.Label,
		Confidence: stored.Confidence,
		ModelUsed:  stored.ModelUsed,
		StoredAt:   time.Unix(stored.StoredAt, 0),
		ExpiresAt:  time.Unix(stored.ExpiresAt, 0),
	}, nil
}

// Set stores a cache entry until its expiry time
func (c *RedisCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(redisEntry{
		Label:      entry.Label,
		Confidence: entry.Confidence,
		ModelUsed:  entry.ModelUsed,
		StoredAt:   entry.StoredAt.Unix(),
		ExpiresAt:  entry.ExpiresAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	if err := c.client.Set(ctx, RedisKeyPrefix+entry.Digest, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Delete removes a cache entry
func (c *RedisCache) Delete(ctx context.Context, digest string) error {
	if err := c.client.Del(ctx, RedisKeyPrefix+digest).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Cleanup is a no-op, Redis expires keys itself
func (c *RedisCache) Cleanup(ctx context.Context) error {
	return nil
}

// Stop closes the Redis connection
func (c *RedisCache) Stop() {
	if err := c.client.Close(); err != nil {
		c.logger.Error("Failed to close Redis client", zap.Error(err))
	}
}
