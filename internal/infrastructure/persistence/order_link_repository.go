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

// GormOrderLinkRepository implements integration.OrderLinkRepository using GORM
type GormOrderLinkRepository struct {
	db *gorm.DB
}

// NewGormOrderLinkRepository creates a new GormOrderLinkRepository
func NewGormOrderLinkRepository(db *gorm.DB) *GormOrderLinkRepository {
	return &GormOrderLinkRepository{db: db}
}

// FindByExternalID finds the link of a marketplace order
func (r *GormOrderLinkRepository) FindByExternalID(ctx context.Context, externalOrderID string) (*integration.OrderLink, error) {
	externalOrderID = strings.TrimSpace(externalOrderID)
	if externalOrderID == "" {
		return nil, integration.ErrNotFound
	}
	var model models.OrderLinkModel
	if err := r.db.WithContext(ctx).
		Where("external_order_id = ?", externalOrderID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save inserts the link. A link for an already linked marketplace order is left untouched.
func (r *GormOrderLinkRepository) Save(ctx context.Context, link *integration.OrderLink) error {
	if link == nil || link.LocalOrderID <= 0 || strings.TrimSpace(link.ExternalOrderID) == "" {
		return integration.ErrValidation
	}
	model := models.OrderLinkModelFromDomain(link)
	now := time.Now()
	if model.CreatedAt.IsZero() {
		model.CreatedAt = now
	}
	model.UpdatedAt = now

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_order_id"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		link.ID = model.ID
	}
	return nil
}

// UpdateStatus records the last marketplace status of a linked order
func (r *GormOrderLinkRepository) UpdateStatus(ctx context.Context, externalOrderID, status string) error {
	result := r.db.WithContext(ctx).
		Model(&models.OrderLinkModel{}).
		Where("external_order_id = ?", strings.TrimSpace(externalOrderID)).
		Updates(map[string]any{
			"last_status": status,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrNotFound
	}
	return nil
}

// Count returns the number of linked orders
func (r *GormOrderLinkRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.OrderLinkModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormOrderLinkRepository implements the interface
var _ integration.OrderLinkRepository = (*GormOrderLinkRepository)(nil)
