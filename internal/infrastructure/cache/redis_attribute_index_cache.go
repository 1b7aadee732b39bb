package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erp/erli-connector/internal/domain/integration"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultAttributeIndexPrefix = "erli:attr-index:"

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisAttributeIndexCache implements AttributeIndexCache using Redis.
// Several connector instances share the same indexes.
// Cache failures are logged and treated as misses.
type RedisAttributeIndexCache struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisAttributeIndexCache creates a cache on an existing client
func NewRedisAttributeIndexCache(client *redis.Client, keyPrefix string, logger *zap.Logger) *RedisAttributeIndexCache {
	if keyPrefix == "" {
		keyPrefix = defaultAttributeIndexPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisAttributeIndexCache{
		client:    client,
		keyPrefix: keyPrefix,
		logger:    logger,
	}
}

func (c *RedisAttributeIndexCache) key(productID, langID int64) string {
	return c.keyPrefix + attributeIndexKey(productID, langID)
}

// Get returns the cached index of (productID, langID)
func (c *RedisAttributeIndexCache) Get(ctx context.Context, productID, langID int64) (*integration.AttributeGroupIndex, bool) {
	data, err := c.client.Get(ctx, c.key(productID, langID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("attribute index cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var idx integration.AttributeGroupIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		c.logger.Warn("attribute index cache entry is corrupt", zap.Error(err))
		return nil, false
	}
	return &idx, true
}

// Set stores the index. A ttl <= 0 keeps it until invalidated.
func (c *RedisAttributeIndexCache) Set(ctx context.Context, index *integration.AttributeGroupIndex, ttl time.Duration) {
	if index == nil {
		return
	}
	data, err := json.Marshal(index)
	if err != nil {
		c.logger.Warn("attribute index cannot be encoded", zap.Error(err))
		return
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, c.key(index.ProductID, index.LanguageID), data, ttl).Err(); err != nil {
		c.logger.Warn("attribute index cache write failed", zap.Error(err))
	}
}

// Invalidate drops the index of (productID, langID)
func (c *RedisAttributeIndexCache) Invalidate(ctx context.Context, productID, langID int64) {
	if err := c.client.Del(ctx, c.key(productID, langID)).Err(); err != nil {
		c.logger.Warn("attribute index cache delete failed", zap.Error(err))
	}
}

// Flush drops every key under the cache prefix
func (c *RedisAttributeIndexCache) Flush(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, c.keyPrefix+"*", 200).Iterator()
	keys := make([]string, 0, 200)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == cap(keys) {
			c.client.Del(ctx, keys...)
			keys = keys[:0]
		}
	}
	if len(keys) > 0 {
		c.client.Del(ctx, keys...)
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("attribute index cache flush failed", zap.Error(err))
	}
}

var _ integration.AttributeIndexCache = (*RedisAttributeIndexCache)(nil)
