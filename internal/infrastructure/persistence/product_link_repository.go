package persistence

import (
	"context"
	"time"

	"github.com/erp/erli-connector/internal/domain/integration"
	"github.com/erp/erli-connector/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProductLinkRepository implements integration.ProductLinkRepository using GORM
type GormProductLinkRepository struct {
	db *gorm.DB
}

// NewGormProductLinkRepository creates a new GormProductLinkRepository
func NewGormProductLinkRepository(db *gorm.DB) *GormProductLinkRepository {
	return &GormProductLinkRepository{db: db}
}

// EnsurePending inserts a pending link for every (product, variant) that has none yet
func (r *GormProductLinkRepository) EnsurePending(ctx context.Context, links []integration.ProductLink) (int, error) {
	if len(links) == 0 {
		return 0, nil
	}
	now := time.Now()
	rows := make([]*models.ProductLinkModel, 0, len(links))
	for i := range links {
		link := links[i]
		link.Status = integration.ProductLinkPending
		link.CreatedAt = now
		link.UpdatedAt = now
		rows = append(rows, models.ProductLinkModelFromDomain(&link))
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(rows, 100)
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

// FindPending returns up to limit pending links, oldest first
func (r *GormProductLinkRepository) FindPending(ctx context.Context, limit int) ([]integration.ProductLink, error) {
	if limit <= 0 {
		return []integration.ProductLink{}, nil
	}
	var rows []models.ProductLinkModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(integration.ProductLinkPending)).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toProductLinks(rows), nil
}

// FindByProduct returns the links of a product, base product first
func (r *GormProductLinkRepository) FindByProduct(ctx context.Context, productID int64) ([]integration.ProductLink, error) {
	var rows []models.ProductLinkModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("variant_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toProductLinks(rows), nil
}

// Save writes the sync state of a link, inserting the link when it does not exist yet
func (r *GormProductLinkRepository) Save(ctx context.Context, link *integration.ProductLink) error {
	if link == nil || link.ProductID <= 0 {
		return integration.ErrValidation
	}
	now := time.Now()
	if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}
	link.UpdatedAt = now
	model := models.ProductLinkModelFromDomain(link)

	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "last_http_code", "last_error", "last_synced_at", "updated_at",
			}),
		}).
		Create(model).Error; err != nil {
		return err
	}
	if model.ID > 0 {
		link.ID = model.ID
	}
	link.ExternalID = model.ExternalID
	return nil
}

// Count returns the number of links
func (r *GormProductLinkRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ProductLinkModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// LastSyncedAt returns the most recent sync time
func (r *GormProductLinkRepository) LastSyncedAt(ctx context.Context) (*time.Time, error) {
	var rows []models.ProductLinkModel
	if err := r.db.WithContext(ctx).
		Where("last_synced_at IS NOT NULL").
		Order("last_synced_at DESC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].LastSyncedAt, nil
}

func toProductLinks(rows []models.ProductLinkModel) []integration.ProductLink {
	out := make([]integration.ProductLink, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

var _ integration.ProductLinkRepository = (*GormProductLinkRepository)(nil)
