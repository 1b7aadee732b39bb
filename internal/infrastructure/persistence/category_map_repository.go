package persistence

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/erp/erli-connector/internal/domain/integration"
	"github.com/erp/erli-connector/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// CategorySourceMarketplace marks categories taken from the marketplace dictionary
const CategorySourceMarketplace = "marketplace"

// GormCategoryMapRepository implements integration.CategoryMapper over erli_category_map
type GormCategoryMapRepository struct {
	db *gorm.DB
}

// NewGormCategoryMapRepository creates a new GormCategoryMapRepository
func NewGormCategoryMapRepository(db *gorm.DB) *GormCategoryMapRepository {
	return &GormCategoryMapRepository{db: db}
}

// MapProductCategories returns the marketplace categories mapped to the product's
// categories. The default category comes first, then the others by position.
// Categories without a mapping are skipped.
func (r *GormCategoryMapRepository) MapProductCategories(ctx context.Context, productID, _ int64) ([]integration.ExternalCategory, error) {
	var rows []models.CategoryMapModel
	err := r.db.WithContext(ctx).Raw(`
		SELECT m.*
		FROM product_categories pc
		JOIN erli_category_map m ON m.category_id = pc.category_id
		JOIN products p ON p.id = pc.product_id
		WHERE pc.product_id = ?
		ORDER BY CASE WHEN pc.category_id = p.default_category_id THEN 0 ELSE 1 END,
			pc.position ASC, pc.category_id ASC`, productID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(rows))
	out := make([]integration.ExternalCategory, 0, len(rows))
	for _, row := range rows {
		erliID := strings.TrimSpace(row.ErliID)
		if erliID == "" {
			continue
		}
		if _, dup := seen[erliID]; dup {
			continue
		}
		seen[erliID] = struct{}{}
		out = append(out, integration.ExternalCategory{
			Source:     CategorySourceMarketplace,
			Breadcrumb: breadcrumbOf(row),
		})
	}
	return out, nil
}

// breadcrumbOf decodes the stored breadcrumb and makes sure it ends with the mapped category.
func breadcrumbOf(row models.CategoryMapModel) []integration.CategoryCrumb {
	leaf := integration.CategoryCrumb{ID: strings.TrimSpace(row.ErliID), Name: strings.TrimSpace(row.ErliName)}
	var crumbs []integration.CategoryCrumb
	if strings.TrimSpace(row.Breadcrumb) != "" {
		if err := json.Unmarshal([]byte(row.Breadcrumb), &crumbs); err != nil {
			crumbs = nil
		}
	}
	if len(crumbs) == 0 || crumbs[len(crumbs)-1].ID != leaf.ID {
		crumbs = append(crumbs, leaf)
	}
	return crumbs
}

var _ integration.CategoryMapper = (*GormCategoryMapRepository)(nil)
