package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/autoerp/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisToleranceCache caches resolved tolerances in Redis so multiple
// instances share state. Cache failures degrade to misses, the resolver
// reads from the database either way.
type RedisToleranceCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisToleranceCache creates a new Redis-backed tolerance cache
func NewRedisToleranceCache(cfg RedisConfig, ttl time.Duration, logger *zap.Logger) (*RedisToleranceCache, error) {
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

	return NewRedisToleranceCacheWithClient(client, "", ttl, logger), nil
}

// NewRedisToleranceCacheWithClient creates a cache with an existing Redis client
func NewRedisToleranceCacheWithClient(client *redis.Client, keyPrefix string, ttl time.Duration, logger *zap.Logger) *RedisToleranceCache {
	if keyPrefix == "" {
		keyPrefix = "tolerance:effective:"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisToleranceCache{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		logger:    logger,
	}
}

// Get returns the cached tolerance for a company, if present
func (c *RedisToleranceCache) Get(ctx context.Context, companyID uuid.UUID) (*billing.EffectiveTolerance, bool) {
	data, err := c.client.Get(ctx, c.key(companyID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("tolerance cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var tolerance billing.EffectiveTolerance
	if err := json.Unmarshal(data, &tolerance); err != nil {
		c.logger.Warn("tolerance cache entry corrupt, dropping", zap.Error(err))
		c.client.Del(ctx, c.key(companyID))
		return nil, false
	}
	return &tolerance, true
}

// Set stores the resolved tolerance for a company with the configured TTL
func (c *RedisToleranceCache) Set(ctx context.Context, companyID uuid.UUID, tolerance *billing.EffectiveTolerance) {
	if tolerance == nil {
		return
	}
	data, err := json.Marshal(tolerance)
	if err != nil {
		c.logger.Warn("tolerance cache marshal failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.key(companyID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("tolerance cache write failed", zap.Error(err))
	}
}

// Invalidate drops the cached tolerance for a company
func (c *RedisToleranceCache) Invalidate(ctx context.Context, companyID uuid.UUID) {
	if err := c.client.Del(ctx, c.key(companyID)).Err(); err != nil {
		c.logger.Warn("tolerance cache invalidation failed", zap.Error(err))
	}
}

// Close closes the Redis client
func (c *RedisToleranceCache) Close() error {
	return c.client.Close()
}

func (c *RedisToleranceCache) key(companyID uuid.UUID) string {
	return c.keyPrefix + companyID.String()
}
