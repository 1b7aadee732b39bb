package models

import (
	"time"

	"github.com/erp/erli-connector/internal/domain/integration"
)

// OrderLinkModel is the persistence model of integration.OrderLink
type OrderLinkModel struct {
	ID              int64     `gorm:"primaryKey;autoIncrement"`
	LocalOrderID    int64     `gorm:"not null;index"`
	ExternalOrderID string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	LastStatus      string    `gorm:"type:varchar(64)"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderLinkModel) TableName() string {
	return "erli_order_links"
}

// ToDomain converts the model to a domain OrderLink
func (m *OrderLinkModel) ToDomain() *integration.OrderLink {
	return &integration.OrderLink{
		ID:              m.ID,
		LocalOrderID:    m.LocalOrderID,
		ExternalOrderID: m.ExternalOrderID,
		LastStatus:      m.LastStatus,
		CreatedAt:       m.CreatedAt,
	}
}

// OrderLinkModelFromDomain converts a domain OrderLink to the model
func OrderLinkModelFromDomain(l *integration.OrderLink) *OrderLinkModel {
	return &OrderLinkModel{
		ID:              l.ID,
		LocalOrderID:    l.LocalOrderID,
		ExternalOrderID: l.ExternalOrderID,
		LastStatus:      l.LastStatus,
		CreatedAt:       l.CreatedAt,
	}
}

// ShippingMapModel maps a local carrier to a marketplace delivery tag.
// One row per carrier.
type ShippingMapModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	CarrierID int64     `gorm:"not null;uniqueIndex"`
	ErliTag   string    `gorm:"type:varchar(128);not null;index"`
	ErliName  string    `gorm:"type:varchar(255)"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ShippingMapModel) TableName() string {
	return "erli_shipping_map"
}

// ToDomain converts the model to a domain CarrierMapping
func (m *ShippingMapModel) ToDomain() integration.CarrierMapping {
	return integration.CarrierMapping{
		LocalCarrierID: m.CarrierID,
		ExternalTag:    m.ErliTag,
		ExternalName:   m.ErliName,
	}
}

// CategoryMapModel maps a local category to a marketplace category path
type CategoryMapModel struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	CategoryID int64  `gorm:"not null;uniqueIndex"`
	ErliID     string `gorm:"type:varchar(64);not null"`
	ErliName   string `gorm:"type:varchar(255)"`
	// Breadcrumb is the JSON encoded list of {id, name} from the root category
	Breadcrumb string    `gorm:"type:text"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CategoryMapModel) TableName() string {
	return "erli_category_map"
}

// ProductLinkModel is the persistence model of integration.ProductLink.
// VariantID is 0 for a listing of the base product.
type ProductLinkModel struct {
	ID           int64      `gorm:"primaryKey;autoIncrement"`
	ProductID    int64      `gorm:"not null;uniqueIndex:idx_erli_product_links_ref,priority:1"`
	VariantID    int64      `gorm:"not null;default:0;uniqueIndex:idx_erli_product_links_ref,priority:2"`
	ExternalID   string     `gorm:"type:varchar(64);not null;uniqueIndex"`
	Status       string     `gorm:"type:varchar(16);not null;default:'pending';index"`
	LastHTTPCode int        `gorm:"not null;default:0"`
	LastError    string     `gorm:"type:text"`
	LastSyncedAt *time.Time `gorm:"index"`
	CreatedAt    time.Time  `gorm:"not null"`
	UpdatedAt    time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductLinkModel) TableName() string {
	return "erli_product_links"
}

// ToDomain converts the model to a domain ProductLink
func (m *ProductLinkModel) ToDomain() integration.ProductLink {
	return integration.ProductLink{
		ID:           m.ID,
		ProductID:    m.ProductID,
		VariantID:    m.VariantID,
		ExternalID:   m.ExternalID,
		Status:       integration.ProductLinkStatus(m.Status),
		LastHTTPCode: m.LastHTTPCode,
		LastError:    m.LastError,
		LastSyncedAt: m.LastSyncedAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// ProductLinkModelFromDomain converts a domain ProductLink to the model
func ProductLinkModelFromDomain(l *integration.ProductLink) *ProductLinkModel {
	status := l.Status
	if status == "" {
		status = integration.ProductLinkPending
	}
	externalID := l.ExternalID
	if externalID == "" {
		externalID = integration.ListingExternalID(l.ProductID, l.VariantRef())
	}
	return &ProductLinkModel{
		ID:           l.ID,
		ProductID:    l.ProductID,
		VariantID:    l.VariantID,
		ExternalID:   externalID,
		Status:       string(status),
		LastHTTPCode: l.LastHTTPCode,
		LastError:    l.LastError,
		LastSyncedAt: l.LastSyncedAt,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
}

// SyncLogModel is one operator-facing log record
type SyncLogModel struct {
	ID            int64     `gorm:"primaryKey;autoIncrement"`
	Kind          string    `gorm:"type:varchar(64);not null;index"`
	CorrelationID string    `gorm:"type:varchar(64);index"`
	Message       string    `gorm:"type:text"`
	Detail        string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (SyncLogModel) TableName() string {
	return "erli_sync_logs"
}

// ToDomain converts the model to a domain SyncLogEntry
func (m *SyncLogModel) ToDomain() integration.SyncLogEntry {
	return integration.SyncLogEntry{
		ID:            m.ID,
		Kind:          m.Kind,
		CorrelationID: m.CorrelationID,
		Message:       m.Message,
		Detail:        m.Detail,
		CreatedAt:     m.CreatedAt,
	}
}

// ConfigurationModel is one storefront configuration key
type ConfigurationModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"type:varchar(128);not null;uniqueIndex"`
	Value     string    `gorm:"type:text"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ConfigurationModel) TableName() string {
	return "storefront_configuration"
}
