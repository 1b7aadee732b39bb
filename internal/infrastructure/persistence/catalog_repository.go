package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/erp/erli-connector/internal/domain/integration"
	"github.com/erp/erli-connector/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

// GormCatalogRepository implements integration.CatalogReader over the storefront catalog tables
type GormCatalogRepository struct {
	db *gorm.DB
}

// NewGormCatalogRepository creates a new GormCatalogRepository
func NewGormCatalogRepository(db *gorm.DB) *GormCatalogRepository {
	return &GormCatalogRepository{db: db}
}

// ---------------------------------------------------------------------------
// Products and variants
// ---------------------------------------------------------------------------

// LoadProduct loads a product with its texts in langID
func (r *GormCatalogRepository) LoadProduct(ctx context.Context, productID, langID int64) (*integration.CatalogProduct, error) {
	var product models.ProductModel
	if err := r.db.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrNotFound
		}
		return nil, err
	}

	var translations []models.ProductTranslationModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("language_id ASC").
		Find(&translations).Error; err != nil {
		return nil, err
	}

	out := &integration.CatalogProduct{
		ID:        product.ID,
		Reference: strings.TrimSpace(product.Reference),
		EAN13:     strings.TrimSpace(product.EAN13),
		Active:    product.Active,
		WeightKg:  product.Weight,
		IsPack:    product.IsPack,
	}
	for _, t := range translations {
		if t.LanguageID == langID {
			out.LocalizedName = strings.TrimSpace(t.Name)
			out.Description = t.Description
			out.LinkRewrite = t.LinkRewrite
			continue
		}
		if out.FallbackName == "" && strings.TrimSpace(t.Name) != "" {
			out.FallbackName = strings.TrimSpace(t.Name)
		}
		if out.LinkRewrite == "" {
			out.LinkRewrite = t.LinkRewrite
		}
	}
	return out, nil
}

// LoadVariant loads a variant
func (r *GormCatalogRepository) LoadVariant(ctx context.Context, variantID int64) (*integration.CatalogVariant, error) {
	var variant models.ProductVariantModel
	if err := r.db.WithContext(ctx).First(&variant, "id = ?", variantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrNotFound
		}
		return nil, err
	}
	return &integration.CatalogVariant{
		ID:        variant.ID,
		ProductID: variant.ProductID,
		Reference: strings.TrimSpace(variant.Reference),
		EAN13:     strings.TrimSpace(variant.EAN13),
	}, nil
}

// ListActiveProductIDs returns ids of active products in id order
func (r *GormCatalogRepository) ListActiveProductIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("active = ?", true).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ListVariantIDs returns the variant ids of a product in id order
func (r *GormCatalogRepository) ListVariantIDs(ctx context.Context, productID int64) ([]int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).
		Model(&models.ProductVariantModel{}).
		Where("product_id = ?", productID).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ---------------------------------------------------------------------------
// Attributes
// ---------------------------------------------------------------------------

type attributeGroupRow struct {
	ID           int64
	Position     int
	IsColorGroup bool
	Name         string
}

// ProductAttributeGroups returns the distinct groups used by the variants of a product
func (r *GormCatalogRepository) ProductAttributeGroups(ctx context.Context, productID, langID int64) ([]integration.AttributeGroup, error) {
	var rows []attributeGroupRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT DISTINCT ag.id, ag.position, ag.is_color_group, COALESCE(agt.name, '') AS name
		FROM product_variants pv
		JOIN variant_attributes va ON va.variant_id = pv.id
		JOIN attributes a ON a.id = va.attribute_id
		JOIN attribute_groups ag ON ag.id = a.attribute_group_id
		LEFT JOIN attribute_group_translations agt
			ON agt.attribute_group_id = ag.id AND agt.language_id = ?
		WHERE pv.product_id = ?
		ORDER BY ag.position ASC, ag.id ASC`, langID, productID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	groups := make([]integration.AttributeGroup, len(rows))
	for i, row := range rows {
		groups[i] = integration.AttributeGroup{
			ID:           row.ID,
			Name:         row.Name,
			Position:     row.Position,
			IsColorGroup: row.IsColorGroup,
		}
	}
	return groups, nil
}

type attributeValueRow struct {
	GroupID int64
	Value   string
}

// VariantAttributeValues returns the localized attribute values of a variant
func (r *GormCatalogRepository) VariantAttributeValues(ctx context.Context, variantID, langID int64) ([]integration.VariantAttributeValue, error) {
	var rows []attributeValueRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT a.attribute_group_id AS group_id, COALESCE(atr.name, '') AS value
		FROM variant_attributes va
		JOIN attributes a ON a.id = va.attribute_id
		LEFT JOIN attribute_translations atr
			ON atr.attribute_id = a.id AND atr.language_id = ?
		WHERE va.variant_id = ?
		ORDER BY a.attribute_group_id ASC`, langID, variantID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	values := make([]integration.VariantAttributeValue, len(rows))
	for i, row := range rows {
		values[i] = integration.VariantAttributeValue{GroupID: row.GroupID, Value: row.Value}
	}
	return values, nil
}

// ---------------------------------------------------------------------------
// Images
// ---------------------------------------------------------------------------

// VariantImageIDs returns the images directly associated with a variant
func (r *GormCatalogRepository) VariantImageIDs(ctx context.Context, variantID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT i.id
		FROM variant_images vi
		JOIN images i ON i.id = vi.image_id
		WHERE vi.variant_id = ?
		ORDER BY i.position ASC, i.id ASC`, variantID).
		Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// CombinationImageIDs returns the variant images through the product's combination list
func (r *GormCatalogRepository) CombinationImageIDs(ctx context.Context, productID, variantID, _ int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT vi.image_id
		FROM variant_images vi
		JOIN product_variants pv ON pv.id = vi.variant_id
		WHERE pv.product_id = ? AND vi.variant_id = ?
		ORDER BY vi.image_id ASC`, productID, variantID).
		Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// CoverImageID returns the cover image of a product, 0 when it has none
func (r *GormCatalogRepository) CoverImageID(ctx context.Context, productID int64) (int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).
		Model(&models.ImageModel{}).
		Where("product_id = ? AND cover = ?", productID, true).
		Order("id ASC").
		Limit(1).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return ids[0], nil
}

// ProductImageIDs returns all images of a product in stored order
func (r *GormCatalogRepository) ProductImageIDs(ctx context.Context, productID, _ int64) ([]int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).
		Model(&models.ImageModel{}).
		Where("product_id = ?", productID).
		Order("position ASC, id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ---------------------------------------------------------------------------
// Packs, stock and prices
// ---------------------------------------------------------------------------

type packItemRow struct {
	ProductID int64
	Name      string
	Quantity  int
}

// PackItems returns the constituents of a bundle with their localized names
func (r *GormCatalogRepository) PackItems(ctx context.Context, productID, langID int64) ([]integration.PackItem, error) {
	var rows []packItemRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT pi.item_product_id AS product_id, COALESCE(pt.name, '') AS name, pi.quantity
		FROM pack_items pi
		LEFT JOIN product_translations pt
			ON pt.product_id = pi.item_product_id AND pt.language_id = ?
		WHERE pi.pack_product_id = ?
		ORDER BY pi.item_product_id ASC, pi.item_variant_id ASC`, langID, productID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	items := make([]integration.PackItem, len(rows))
	for i, row := range rows {
		items[i] = integration.PackItem{ProductID: row.ProductID, Name: row.Name, Quantity: row.Quantity}
	}
	return items, nil
}

// AvailableQuantity returns the stock of a variant, or of the product when variantID is 0
func (r *GormCatalogRepository) AvailableQuantity(ctx context.Context, productID, variantID int64) (int, error) {
	var rows []models.StockAvailableModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND variant_id = ?", productID, variantID).
		Limit(1).
		Find(&rows).Error; err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Quantity, nil
}

// GrossPrice returns the tax-included unit price: (price + variant impact) * (1 + rate/100)
func (r *GormCatalogRepository) GrossPrice(ctx context.Context, productID, variantID int64) (decimal.Decimal, error) {
	var product models.ProductModel
	if err := r.db.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, integration.ErrNotFound
		}
		return decimal.Zero, err
	}
	net := product.Price
	if variantID > 0 {
		var variant models.ProductVariantModel
		err := r.db.WithContext(ctx).
			First(&variant, "id = ? AND product_id = ?", variantID, productID).Error
		switch {
		case err == nil:
			net = net.Add(variant.PriceImpact)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return decimal.Zero, err
		}
	}
	return net.Mul(decimal.NewFromInt(1).Add(product.TaxRate.Div(hundred))), nil
}

var _ integration.CatalogReader = (*GormCatalogRepository)(nil)
