package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisSessionCache implements SessionCache using Redis. Suitable for
// distributed deployments where multiple instances share provider sessions.
type RedisSessionCache struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisSessionCache creates a new Redis-backed session cache
func NewRedisSessionCache(cfg RedisConfig) (*RedisSessionCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisSessionCache{
		client:    client,
		keyPrefix: "provider:session:",
	}, nil
}

// NewRedisSessionCacheWithClient creates a cache with an existing Redis
// client. Useful for testing or when sharing a client across components.
func NewRedisSessionCacheWithClient(client *redis.Client, keyPrefix string) *RedisSessionCache {
	if keyPrefix == "" {
		keyPrefix = "provider:session:"
	}
	return &RedisSessionCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Get returns the cached session code, or false when none is cached
func (c *RedisSessionCache) Get(ctx context.Context, tenantID uuid.UUID, channel string) (string, bool, error) {
	code, err := c.client.Get(ctx, c.keyPrefix+sessionKey(tenantID, channel)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read session: %w", err)
	}
	return code, true, nil
}

// Set stores a session code with a TTL
func (c *RedisSessionCache) Set(ctx context.Context, tenantID uuid.UUID, channel, sessionCode string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.keyPrefix+sessionKey(tenantID, channel), sessionCode, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Delete evicts a session
func (c *RedisSessionCache) Delete(ctx context.Context, tenantID uuid.UUID, channel string) error {
	if err := c.client.Del(ctx, c.keyPrefix+sessionKey(tenantID, channel)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (c *RedisSessionCache) Close() error {
	return c.client.Close()
}

// Ensure RedisSessionCache implements SessionCache
var _ SessionCache = (*RedisSessionCache)(nil)
