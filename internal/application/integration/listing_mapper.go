package integration

import (
	"context"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/erp/erli-connector/internal/domain/integration"
	"github.com/erp/erli-connector/internal/infrastructure/telemetry"
)

const (
	minNameLength      = 3
	variantNameSep     = " - "
	packSectionHeading = "\n\n<h3>Zawartość zestawu</h3><ul>"
)

// ListingMapperConfig holds the dependencies of the ListingMapper
type ListingMapperConfig struct {
	Catalog    integration.CatalogReader
	Indexer    *AttributeIndexer
	Images     integration.ImageURLBuilder
	Categories integration.CategoryMapper
	Shipping   integration.ShippingMapper
	Config     integration.ConfigStore
	// SecureDomain prefixes host-relative image URLs
	SecureDomain string
	Validate     *validator.Validate
	Logger       *zap.Logger
}

// ListingMapper projects catalog products and variants onto marketplace listings.
type ListingMapper struct {
	catalog    integration.CatalogReader
	indexer    *AttributeIndexer
	images     *imageResolver
	categories integration.CategoryMapper
	shipping   integration.ShippingMapper
	config     integration.ConfigStore
	validate   *validator.Validate
	logger     *zap.Logger
}

// NewListingMapper creates a ListingMapper.
func NewListingMapper(config ListingMapperConfig) *ListingMapper {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Validate == nil {
		config.Validate = validator.New()
	}
	if config.Indexer == nil {
		config.Indexer = NewAttributeIndexer(AttributeIndexerConfig{Catalog: config.Catalog, Logger: config.Logger})
	}
	return &ListingMapper{
		catalog:    config.Catalog,
		indexer:    config.Indexer,
		images:     newImageResolver(config.Catalog, config.Images, config.SecureDomain, config.Logger),
		categories: config.Categories,
		shipping:   config.Shipping,
		config:     config.Config,
		validate:   config.Validate,
		logger:     config.Logger,
	}
}

// Map builds the listing payload of a product, or of one of its variants when
// variantID is set. The payload is validated before it is returned.
func (m *ListingMapper) Map(ctx context.Context, productID, langID int64, variantID *int64) (*integration.ListingPayload, error) {
	var vid int64
	if variantID != nil && *variantID > 0 {
		vid = *variantID
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "listing_mapper", "map",
		telemetry.WithAttribute(telemetry.SpanAttrProductID, productID),
		telemetry.WithAttribute(telemetry.SpanAttrVariantID, vid),
	)
	defer span.End()

	product, err := m.catalog.LoadProduct(ctx, productID, langID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load product %d: %w", productID, err)
	}

	baseName := baseListingName(product)
	payload := &integration.ListingPayload{
		ExternalID:  integration.ListingExternalID(productID, variantID),
		Name:        baseName,
		Description: product.Description,
		EAN:         product.EAN13,
		SKU:         product.Reference,
	}

	var (
		index  *integration.AttributeGroupIndex
		values []integration.VariantAttributeValue
	)
	if vid > 0 {
		m.applyVariantCodes(ctx, payload, vid)
		index, values = m.variantAttributes(ctx, productID, vid, langID)
		payload.Name = variantListingName(baseName, index, values)
	}

	payload.Images = m.images.Images(ctx, product, vid, langID)
	if len(payload.Images) == 0 {
		err := fmt.Errorf("%w: listing %s has no images", integration.ErrValidation, payload.ExternalID)
		telemetry.RecordError(span, err)
		return nil, err
	}

	stock, err := m.catalog.AvailableQuantity(ctx, productID, vid)
	if err != nil {
		return nil, fmt.Errorf("failed to read stock of %s: %w", payload.ExternalID, err)
	}
	if stock < 0 {
		stock = 0
	}
	payload.Stock = stock
	payload.Status = integration.ListingStatusInactive
	if product.Active && stock > 0 {
		payload.Status = integration.ListingStatusActive
	}

	gross, err := m.catalog.GrossPrice(ctx, productID, vid)
	if err != nil {
		return nil, fmt.Errorf("failed to read price of %s: %w", payload.ExternalID, err)
	}
	payload.Price = GrossToMinor(gross)
	payload.Weight = KilogramsToGrams(product.WeightKg)
	payload.DispatchTime = integration.DispatchTime{Period: m.dispatchPeriod(ctx)}

	if m.categories != nil {
		categories, err := m.categories.MapProductCategories(ctx, productID, langID)
		if err != nil {
			m.logger.Warn("Failed to map categories", zap.Int64("product_id", productID), zap.Error(err))
		} else {
			payload.ExternalCategories = categories
		}
	}
	if m.shipping != nil {
		payload.DeliveryPriceList = m.deliveryPriceList(ctx, productID, langID)
	}

	if product.IsPack {
		payload.Description += m.packSection(ctx, productID, langID)
	}

	if vid > 0 && !index.IsEmpty() && len(values) > 0 {
		payload.ExternalAttributes = index.ExternalAttributes(values)
		payload.ExternalVariantGroup = index.VariantGroup()
	}

	if err := m.validate.StructCtx(ctx, payload); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%w: listing %s: %v", integration.ErrValidation, payload.ExternalID, err)
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrExternalID, payload.ExternalID)
	telemetry.SetOK(span)
	return payload, nil
}

// applyVariantCodes overrides EAN and SKU with the non-empty codes of the variant.
func (m *ListingMapper) applyVariantCodes(ctx context.Context, payload *integration.ListingPayload, variantID int64) {
	variant, err := m.catalog.LoadVariant(ctx, variantID)
	if err != nil {
		m.logger.Warn("Failed to load variant, keeping product codes",
			zap.Int64("variant_id", variantID),
			zap.Error(err),
		)
		return
	}
	if ean := strings.TrimSpace(variant.EAN13); ean != "" {
		payload.EAN = ean
	}
	if ref := strings.TrimSpace(variant.Reference); ref != "" {
		payload.SKU = ref
	}
}

func (m *ListingMapper) variantAttributes(ctx context.Context, productID, variantID, langID int64) (*integration.AttributeGroupIndex, []integration.VariantAttributeValue) {
	index, err := m.indexer.IndexGroups(ctx, productID, langID)
	if err != nil {
		m.logger.Warn("Failed to index attribute groups", zap.Int64("product_id", productID), zap.Error(err))
		index = nil
	}
	values, err := m.catalog.VariantAttributeValues(ctx, variantID, langID)
	if err != nil {
		m.logger.Warn("Failed to load variant attributes", zap.Int64("variant_id", variantID), zap.Error(err))
		return index, nil
	}
	return index, values
}

func (m *ListingMapper) dispatchPeriod(ctx context.Context) int {
	if m.config == nil {
		return 1
	}
	days, err := m.config.GetInt(ctx, integration.ConfigDispatchTimeDays)
	if err != nil || days < 1 {
		return 1
	}
	return int(days)
}

func (m *ListingMapper) deliveryPriceList(ctx context.Context, productID, langID int64) string {
	tags, err := m.shipping.MapTagsForProduct(ctx, productID, langID)
	if err != nil {
		m.logger.Warn("Failed to map delivery price lists", zap.Int64("product_id", productID), zap.Error(err))
		return ""
	}
	for _, tag := range tags {
		if t := strings.TrimSpace(tag); t != "" {
			return t
		}
	}
	return ""
}

// packSection renders the bundle contents; lookup failures yield no section.
func (m *ListingMapper) packSection(ctx context.Context, productID, langID int64) string {
	items, err := m.catalog.PackItems(ctx, productID, langID)
	if err != nil {
		m.logger.Warn("Failed to load pack items", zap.Int64("product_id", productID), zap.Error(err))
		return ""
	}
	var b strings.Builder
	for _, item := range items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		b.WriteString("<li>")
		b.WriteString(html.EscapeString(fmt.Sprintf("%dx %s", qty, name)))
		b.WriteString("</li>")
	}
	if b.Len() == 0 {
		return ""
	}
	return packSectionHeading + b.String() + "</ul>"
}

// baseListingName picks the product title, replacing names shorter than
// three characters with the reference or a generated label.
func baseListingName(p *integration.CatalogProduct) string {
	name := strings.TrimSpace(p.LocalizedName)
	if name == "" {
		name = strings.TrimSpace(p.FallbackName)
	}
	if utf8.RuneCountInString(name) >= minNameLength {
		return name
	}
	if ref := strings.TrimSpace(p.Reference); utf8.RuneCountInString(ref) >= minNameLength {
		return ref
	}
	return fmt.Sprintf("Produkt #%d", p.ID)
}

// variantListingName appends the attribute values of a variant in group order.
func variantListingName(base string, index *integration.AttributeGroupIndex, values []integration.VariantAttributeValue) string {
	parts := make([]string, 0, len(values))
	if index.IsEmpty() {
		for _, v := range values {
			if s := strings.TrimSpace(v.Value); s != "" {
				parts = append(parts, s)
			}
		}
	} else {
		for _, attr := range index.ExternalAttributes(values) {
			if len(attr.Values) == 0 {
				continue
			}
			if s := strings.TrimSpace(attr.Values[0]); s != "" {
				parts = append(parts, s)
			}
		}
	}
	if len(parts) == 0 {
		return base
	}
	name := base + variantNameSep + strings.Join(parts, variantNameSep)
	if utf8.RuneCountInString(strings.TrimSpace(name)) < minNameLength {
		return base
	}
	return name
}
