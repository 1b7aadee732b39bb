package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/erp/erli-connector/internal/domain/integration"
	"github.com/erp/erli-connector/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCarrierRepository implements integration.CarrierStore using GORM
type GormCarrierRepository struct {
	db *gorm.DB
}

// NewGormCarrierRepository creates a new GormCarrierRepository
func NewGormCarrierRepository(db *gorm.DB) *GormCarrierRepository {
	return &GormCarrierRepository{db: db}
}

// FindCarrier finds a carrier by id
func (r *GormCarrierRepository) FindCarrier(ctx context.Context, carrierID int64) (*integration.Carrier, error) {
	var model models.CarrierModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", carrierID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrNotFound
		}
		return nil, err
	}
	return carrierToDomain(model), nil
}

// ListCarriers returns every carrier in id order, deleted ones included
func (r *GormCarrierRepository) ListCarriers(ctx context.Context) ([]integration.Carrier, error) {
	var rows []models.CarrierModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	carriers := make([]integration.Carrier, len(rows))
	for i := range rows {
		carriers[i] = *carrierToDomain(rows[i])
	}
	return carriers, nil
}

// CreateCarrier creates an active carrier with one price range, enabled for
// every language, customer group and zone at spec.ZonePrice.
func (r *GormCarrierRepository) CreateCarrier(ctx context.Context, spec integration.NewCarrierSpec) (int64, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return 0, integration.ErrValidation
	}

	var carrierID int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		carrier := &models.CarrierModel{
			Name:      name,
			Active:    true,
			MaxWeight: spec.MaxWeight,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(carrier).Error; err != nil {
			return err
		}
		carrierID = carrier.ID

		var languageIDs []int64
		if err := tx.Model(&models.LanguageModel{}).Order("id ASC").Pluck("id", &languageIDs).Error; err != nil {
			return err
		}
		for _, langID := range languageIDs {
			if err := tx.Create(&models.CarrierTranslationModel{
				CarrierID:  carrierID,
				LanguageID: langID,
				Delay:      spec.DelayText,
			}).Error; err != nil {
				return err
			}
		}

		var groupIDs []int64
		if err := tx.Model(&models.CustomerGroupModel{}).Order("id ASC").Pluck("id", &groupIDs).Error; err != nil {
			return err
		}
		for _, groupID := range groupIDs {
			if err := tx.Create(&models.CarrierGroupModel{CarrierID: carrierID, GroupID: groupID}).Error; err != nil {
				return err
			}
		}

		priceRange := &models.RangePriceModel{
			CarrierID:  carrierID,
			Delimiter1: spec.RangeFrom,
			Delimiter2: spec.RangeTo,
		}
		if err := tx.Create(priceRange).Error; err != nil {
			return err
		}

		var zoneIDs []int64
		if err := tx.Model(&models.ZoneModel{}).Order("id ASC").Pluck("id", &zoneIDs).Error; err != nil {
			return err
		}
		for _, zoneID := range zoneIDs {
			if err := tx.Create(&models.CarrierZoneModel{CarrierID: carrierID, ZoneID: zoneID}).Error; err != nil {
				return err
			}
			if err := tx.Create(&models.DeliveryModel{
				CarrierID:    carrierID,
				RangePriceID: priceRange.ID,
				ZoneID:       zoneID,
				Price:        spec.ZonePrice,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return carrierID, nil
}

func carrierToDomain(m models.CarrierModel) *integration.Carrier {
	return &integration.Carrier{
		ID:      m.ID,
		Name:    m.Name,
		Active:  m.Active,
		Deleted: m.Deleted,
	}
}

var _ integration.CarrierStore = (*GormCarrierRepository)(nil)
