package persistence

import (
	"context"
	"time"

	"github.com/erp/erli-connector/internal/domain/integration"
	"github.com/erp/erli-connector/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormSyncLogRepository implements integration.SyncLogRepository using GORM
type GormSyncLogRepository struct {
	db *gorm.DB
}

// NewGormSyncLogRepository creates a new GormSyncLogRepository
func NewGormSyncLogRepository(db *gorm.DB) *GormSyncLogRepository {
	return &GormSyncLogRepository{db: db}
}

// AddLog stores one record
func (r *GormSyncLogRepository) AddLog(ctx context.Context, kind, correlationID, message, detail string) error {
	return r.db.WithContext(ctx).Create(&models.SyncLogModel{
		Kind:          kind,
		CorrelationID: correlationID,
		Message:       message,
		Detail:        detail,
		CreatedAt:     time.Now(),
	}).Error
}

// Recent returns the newest records first
func (r *GormSyncLogRepository) Recent(ctx context.Context, limit int) ([]integration.SyncLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.SyncLogModel
	if err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]integration.SyncLogEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries, nil
}

var _ integration.SyncLogRepository = (*GormSyncLogRepository)(nil)
