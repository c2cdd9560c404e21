package cache

import (
	"fmt"
	"time"

	appbilling "github.com/autoerp/backend/internal/application/billing"
	"github.com/autoerp/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// ToleranceCacheFactory creates tolerance caches based on configuration
type ToleranceCacheFactory struct {
	redisConfig           config.RedisConfig
	ttl                   time.Duration
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// ToleranceCacheFactoryOption is a functional option for configuring the factory
type ToleranceCacheFactoryOption func(*ToleranceCacheFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) ToleranceCacheFactoryOption {
	return func(f *ToleranceCacheFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to an in-memory cache
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) ToleranceCacheFactoryOption {
	return func(f *ToleranceCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewToleranceCacheFactory creates a new factory
func NewToleranceCacheFactory(cfg config.RedisConfig, ttl time.Duration, opts ...ToleranceCacheFactoryOption) *ToleranceCacheFactory {
	f := &ToleranceCacheFactory{
		redisConfig:           cfg,
		ttl:                   ttl,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateRedisCache creates a Redis-backed tolerance cache
func (f *ToleranceCacheFactory) CreateRedisCache() (appbilling.ToleranceCache, error) {
	cache, err := NewRedisToleranceCache(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	}, f.ttl, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis tolerance cache: %w", err)
	}
	return cache, nil
}

// CreateInMemoryCache creates a process-local tolerance cache.
// Instances do not share invalidations, so a tolerance update on one node
// can serve stale caps elsewhere until the TTL lapses.
func (f *ToleranceCacheFactory) CreateInMemoryCache() appbilling.ToleranceCache {
	return NewInMemoryToleranceCache(f.ttl)
}

// CreateCache creates a tolerance cache, preferring Redis when enabled and
// reachable and falling back to in-memory when allowed.
func (f *ToleranceCacheFactory) CreateCache() (appbilling.ToleranceCache, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory tolerance cache")
		return f.CreateInMemoryCache(), nil
	}

	cache, err := f.CreateRedisCache()
	if err == nil {
		f.logger.Info("using Redis tolerance cache")
		return cache, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for tolerance cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory tolerance cache. "+
		"Tolerance updates on other instances will only take effect after the TTL lapses.",
		zap.Error(err),
	)
	return f.CreateInMemoryCache(), nil
}
