package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/erli-connector/internal/domain/integration"
	gocache "github.com/patrickmn/go-cache"
)

// attributeIndexKey returns the cache key of a (product, language) pair
func attributeIndexKey(productID, langID int64) string {
	return fmt.Sprintf("%d|%d", productID, langID)
}

// InMemoryAttributeIndexCache implements AttributeIndexCache on top of go-cache.
// It is suitable for a single connector instance and for tests.
type InMemoryAttributeIndexCache struct {
	store *gocache.Cache
}

// NewInMemoryAttributeIndexCache creates an in-process cache.
// cleanupInterval controls how often expired entries are purged.
func NewInMemoryAttributeIndexCache(cleanupInterval time.Duration) *InMemoryAttributeIndexCache {
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}
	return &InMemoryAttributeIndexCache{
		store: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

// Get returns the cached index of (productID, langID)
func (c *InMemoryAttributeIndexCache) Get(ctx context.Context, productID, langID int64) (*integration.AttributeGroupIndex, bool) {
	v, ok := c.store.Get(attributeIndexKey(productID, langID))
	if !ok {
		return nil, false
	}
	idx, ok := v.(*integration.AttributeGroupIndex)
	return idx, ok
}

// Set stores the index. A ttl <= 0 keeps it until invalidated.
func (c *InMemoryAttributeIndexCache) Set(ctx context.Context, index *integration.AttributeGroupIndex, ttl time.Duration) {
	if index == nil {
		return
	}
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	c.store.Set(attributeIndexKey(index.ProductID, index.LanguageID), index, ttl)
}

// Invalidate drops the index of (productID, langID)
func (c *InMemoryAttributeIndexCache) Invalidate(ctx context.Context, productID, langID int64) {
	c.store.Delete(attributeIndexKey(productID, langID))
}

// Flush drops every cached index
func (c *InMemoryAttributeIndexCache) Flush(ctx context.Context) {
	c.store.Flush()
}

// Len returns the number of cached indexes
func (c *InMemoryAttributeIndexCache) Len() int {
	return c.store.ItemCount()
}

var _ integration.AttributeIndexCache = (*InMemoryAttributeIndexCache)(nil)
