package cache

import (
	"fmt"
	"time"

	"github.com/erp/erli-connector/internal/domain/integration"
	"github.com/erp/erli-connector/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Factory creates the attribute index cache and the run lock based on configuration
type Factory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	cleanupInterval       time.Duration
	client                *redis.Client
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory components when Redis is unavailable
// Default is true (allow fallback)
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// WithCleanupInterval sets how often the in-memory cache purges expired entries
func WithCleanupInterval(d time.Duration) FactoryOption {
	return func(f *Factory) {
		f.cleanupInterval = d
	}
}

// NewFactory creates a new factory
func NewFactory(cfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		cleanupInterval:       10 * time.Minute,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// redisClient connects lazily and reuses the client for every component
func (f *Factory) redisClient() (*redis.Client, error) {
	if f.client != nil {
		return f.client, nil
	}
	if !f.redisConfig.Enabled {
		return nil, fmt.Errorf("redis disabled in configuration")
	}
	client, err := NewRedisClient(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err != nil {
		return nil, err
	}
	f.client = client
	return client, nil
}

// CreateAttributeIndexCache returns a Redis-backed cache, or the in-memory
// cache when Redis is unavailable and fallback is allowed
func (f *Factory) CreateAttributeIndexCache() (integration.AttributeIndexCache, error) {
	client, err := f.redisClient()
	if err == nil {
		f.logger.Info("using Redis attribute index cache")
		return NewRedisAttributeIndexCache(client, "", f.logger), nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for attribute index cache but unavailable: %w", err)
	}

	f.logger.Info("using in-memory attribute index cache", zap.String("reason", err.Error()))
	return NewInMemoryAttributeIndexCache(f.cleanupInterval), nil
}

// CreateRunLock returns a Redis run lock, or an in-process lock when Redis is
// unavailable and fallback is allowed
func (f *Factory) CreateRunLock() (integration.RunLock, error) {
	client, err := f.redisClient()
	if err == nil {
		f.logger.Info("using Redis run lock")
		return NewRedisRunLock(client, ""), nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for run lock but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-process run lock. "+
		"Several connector instances may poll the inbox concurrently.",
		zap.Error(err),
	)
	return NewInMemoryRunLock(), nil
}

// Close releases the Redis client if one was opened
func (f *Factory) Close() error {
	if f.client == nil {
		return nil
	}
	return f.client.Close()
}
