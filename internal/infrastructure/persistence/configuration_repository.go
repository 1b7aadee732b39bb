package persistence

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/erp/erli-connector/internal/domain/integration"
	"github.com/erp/erli-connector/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormConfigurationRepository implements integration.ConfigStore over storefront_configuration
type GormConfigurationRepository struct {
	db *gorm.DB
}

// NewGormConfigurationRepository creates a new GormConfigurationRepository
func NewGormConfigurationRepository(db *gorm.DB) *GormConfigurationRepository {
	return &GormConfigurationRepository{db: db}
}

// GetString returns the value of key, "" when the key is unset
func (r *GormConfigurationRepository) GetString(ctx context.Context, key string) (string, error) {
	var model models.ConfigurationModel
	if err := r.db.WithContext(ctx).Where("name = ?", key).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(model.Value), nil
}

// GetInt returns the integer value of key, 0 when unset or not numeric
func (r *GormConfigurationRepository) GetInt(ctx context.Context, key string) (int64, error) {
	value, err := r.GetString(ctx, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// Set stores a value
func (r *GormConfigurationRepository) Set(ctx context.Context, key, value string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&models.ConfigurationModel{Name: key, Value: value, UpdatedAt: time.Now()}).Error
}

var _ integration.ConfigStore = (*GormConfigurationRepository)(nil)
