package integration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/erp/erli-connector/internal/domain/integration"
)

// DefaultAttributeIndexTTL bounds how long an index survives in the cache
const DefaultAttributeIndexTTL = 10 * time.Minute

// colorToken marks colour groups by name when the catalog flag is not set
const colorToken = "kolor"

// AttributeIndexerConfig holds the dependencies of the AttributeIndexer
type AttributeIndexerConfig struct {
	Catalog integration.CatalogReader
	// Cache is optional; without it every call reads the catalog
	Cache  integration.AttributeIndexCache
	TTL    time.Duration
	Logger *zap.Logger
}

// AttributeIndexer assigns stable ordinal indexes to the variant attribute
// groups of a product.
type AttributeIndexer struct {
	catalog integration.CatalogReader
	cache   integration.AttributeIndexCache
	ttl     time.Duration
	logger  *zap.Logger
}

// NewAttributeIndexer creates an AttributeIndexer.
func NewAttributeIndexer(config AttributeIndexerConfig) *AttributeIndexer {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.TTL <= 0 {
		config.TTL = DefaultAttributeIndexTTL
	}
	return &AttributeIndexer{
		catalog: config.Catalog,
		cache:   config.Cache,
		ttl:     config.TTL,
		logger:  config.Logger,
	}
}

// IndexGroups returns the attribute group index of a product in one language.
// A product without variant attributes yields an empty index.
func (x *AttributeIndexer) IndexGroups(ctx context.Context, productID, langID int64) (*integration.AttributeGroupIndex, error) {
	if x.cache != nil {
		if idx, ok := x.cache.Get(ctx, productID, langID); ok {
			return idx, nil
		}
	}

	groups, err := x.catalog.ProductAttributeGroups(ctx, productID, langID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attribute groups of product %d: %w", productID, err)
	}

	idx := integration.NewAttributeGroupIndex(productID, langID, groups, isColorGroup)
	if x.cache != nil {
		x.cache.Set(ctx, idx, x.ttl)
	}
	x.logger.Debug("Indexed attribute groups",
		zap.Int64("product_id", productID),
		zap.Int64("language_id", langID),
		zap.Int("groups", len(idx.Groups)),
	)
	return idx, nil
}

// Invalidate drops the cached index of a product.
func (x *AttributeIndexer) Invalidate(ctx context.Context, productID, langID int64) {
	if x.cache != nil {
		x.cache.Invalidate(ctx, productID, langID)
	}
}

// Flush drops every cached index.
func (x *AttributeIndexer) Flush(ctx context.Context) {
	if x.cache != nil {
		x.cache.Flush(ctx)
	}
}

func isColorGroup(g integration.AttributeGroup) bool {
	if g.IsColorGroup {
		return true
	}
	fold := cases.Fold()
	return strings.Contains(fold.String(g.Name), fold.String(colorToken))
}
