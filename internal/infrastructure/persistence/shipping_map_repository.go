package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/erp/erli-connector/internal/domain/integration"
	"github.com/erp/erli-connector/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormShippingMapRepository stores carrier <-> delivery tag mappings in erli_shipping_map.
// It implements both integration.CarrierMappingRepository and integration.ShippingMapper.
type GormShippingMapRepository struct {
	db *gorm.DB
}

// NewGormShippingMapRepository creates a new GormShippingMapRepository
func NewGormShippingMapRepository(db *gorm.DB) *GormShippingMapRepository {
	return &GormShippingMapRepository{db: db}
}

// ---------------------------------------------------------------------------
// CarrierMappingRepository implementation
// ---------------------------------------------------------------------------

// FindByTag returns the mapping of a delivery tag. When several carriers share
// the tag the lowest carrier id wins.
func (r *GormShippingMapRepository) FindByTag(ctx context.Context, tag string) (*integration.CarrierMapping, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, integration.ErrNotFound
	}
	var model models.ShippingMapModel
	if err := r.db.WithContext(ctx).
		Where("erli_tag = ?", tag).
		Order("carrier_id ASC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrNotFound
		}
		return nil, err
	}
	mapping := model.ToDomain()
	return &mapping, nil
}

// Upsert stores the mapping keyed by carrier id. Mappings without a carrier or tag are ignored.
func (r *GormShippingMapRepository) Upsert(ctx context.Context, mapping *integration.CarrierMapping) error {
	if mapping == nil || mapping.LocalCarrierID <= 0 || strings.TrimSpace(mapping.ExternalTag) == "" {
		return nil
	}
	now := time.Now()
	model := &models.ShippingMapModel{
		CarrierID: mapping.LocalCarrierID,
		ErliTag:   strings.TrimSpace(mapping.ExternalTag),
		ErliName:  strings.TrimSpace(mapping.ExternalName),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "carrier_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"erli_tag", "erli_name", "updated_at"}),
		}).
		Create(model).Error
}

// FindByCarrierIDs returns the mappings of the given carriers ordered by carrier id
func (r *GormShippingMapRepository) FindByCarrierIDs(ctx context.Context, carrierIDs []int64) ([]integration.CarrierMapping, error) {
	if len(carrierIDs) == 0 {
		return []integration.CarrierMapping{}, nil
	}
	var rows []models.ShippingMapModel
	if err := r.db.WithContext(ctx).
		Where("carrier_id IN ?", carrierIDs).
		Order("carrier_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toCarrierMappings(rows), nil
}

// FindAll returns every mapping ordered by carrier id
func (r *GormShippingMapRepository) FindAll(ctx context.Context) ([]integration.CarrierMapping, error) {
	var rows []models.ShippingMapModel
	if err := r.db.WithContext(ctx).Order("carrier_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toCarrierMappings(rows), nil
}

func toCarrierMappings(rows []models.ShippingMapModel) []integration.CarrierMapping {
	out := make([]integration.CarrierMapping, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

// ---------------------------------------------------------------------------
// ShippingMapper implementation
// ---------------------------------------------------------------------------

// MapTagsForProduct returns the delivery tags of the carriers the product is
// restricted to. A product without carrier restrictions ships with every
// mapped carrier. Tags are de-duplicated in carrier order.
func (r *GormShippingMapRepository) MapTagsForProduct(ctx context.Context, productID, _ int64) ([]string, error) {
	var carrierIDs []int64
	if err := r.db.WithContext(ctx).
		Model(&models.ProductCarrierModel{}).
		Where("product_id = ?", productID).
		Order("carrier_id ASC").
		Pluck("carrier_id", &carrierIDs).Error; err != nil {
		return nil, err
	}

	var (
		mappings []integration.CarrierMapping
		err      error
	)
	if len(carrierIDs) > 0 {
		mappings, err = r.FindByCarrierIDs(ctx, carrierIDs)
	} else {
		mappings, err = r.FindAll(ctx)
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(mappings))
	tags := make([]string, 0, len(mappings))
	for _, m := range mappings {
		tag := strings.TrimSpace(m.ExternalTag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags, nil
}

var (
	_ integration.CarrierMappingRepository = (*GormShippingMapRepository)(nil)
	_ integration.ShippingMapper           = (*GormShippingMapRepository)(nil)
)
