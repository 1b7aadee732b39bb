package integration

import (
	"context"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// OrderLink
// ---------------------------------------------------------------------------

// OrderLink links a materialized local order to its marketplace order.
// Its existence is the guard against creating the same order twice.
type OrderLink struct {
	// ID is the surrogate key
	ID int64
	// LocalOrderID is the storefront order id
	LocalOrderID int64
	// ExternalOrderID is the marketplace order id
	ExternalOrderID string
	// LastStatus is the last marketplace status seen for the order
	LastStatus string
	// CreatedAt is when the link was stored
	CreatedAt time.Time
}

// NewOrderLink creates a link for a freshly materialized order.
func NewOrderLink(localOrderID int64, externalOrderID, status string) (*OrderLink, error) {
	if localOrderID <= 0 || strings.TrimSpace(externalOrderID) == "" {
		return nil, ErrValidation
	}
	return &OrderLink{
		LocalOrderID:    localOrderID,
		ExternalOrderID: strings.TrimSpace(externalOrderID),
		LastStatus:      status,
		CreatedAt:       time.Now(),
	}, nil
}

// OrderLinkRepository persists order links
type OrderLinkRepository interface {
	// FindByExternalID returns ErrNotFound when the marketplace order is not linked
	FindByExternalID(ctx context.Context, externalOrderID string) (*OrderLink, error)
	// Save inserts the link; saving an already linked external id is a no-op
	Save(ctx context.Context, link *OrderLink) error
	// UpdateStatus records the last marketplace status of a linked order
	UpdateStatus(ctx context.Context, externalOrderID, status string) error
	// Count returns the number of linked orders
	Count(ctx context.Context) (int64, error)
}

// ---------------------------------------------------------------------------
// CarrierMapping
// ---------------------------------------------------------------------------

// CarrierMapping resolves a marketplace delivery tag to a local carrier
type CarrierMapping struct {
	LocalCarrierID int64
	ExternalTag    string
	ExternalName   string
}

// CarrierMappingRepository persists carrier mappings. The same table backs
// delivery price list tags of listings.
type CarrierMappingRepository interface {
	// FindByTag returns ErrNotFound when no carrier is mapped to the tag
	FindByTag(ctx context.Context, tag string) (*CarrierMapping, error)
	// Upsert stores the mapping keyed by local carrier id; an empty tag is ignored
	Upsert(ctx context.Context, mapping *CarrierMapping) error
	// FindByCarrierIDs returns the mappings of the given carriers
	FindByCarrierIDs(ctx context.Context, carrierIDs []int64) ([]CarrierMapping, error)
	// FindAll returns every mapping ordered by carrier id
	FindAll(ctx context.Context) ([]CarrierMapping, error)
}

// ---------------------------------------------------------------------------
// ProductLink
// ---------------------------------------------------------------------------

// ProductLinkStatus is the sync state of a listing
type ProductLinkStatus string

const (
	ProductLinkPending ProductLinkStatus = "pending"
	ProductLinkSynced  ProductLinkStatus = "synced"
	ProductLinkError   ProductLinkStatus = "error"
)

// ProductLink tracks the listing of one product or variant
type ProductLink struct {
	ID           int64
	ProductID    int64
	VariantID    int64
	ExternalID   string
	Status       ProductLinkStatus
	LastHTTPCode int
	LastError    string
	LastSyncedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// VariantRef returns the variant id as the optional argument of the mapper.
func (l *ProductLink) VariantRef() *int64 {
	if l.VariantID <= 0 {
		return nil
	}
	v := l.VariantID
	return &v
}

// MarkSynced records a successful upsert.
func (l *ProductLink) MarkSynced(code int, at time.Time) {
	l.Status = ProductLinkSynced
	l.LastHTTPCode = code
	l.LastError = ""
	l.LastSyncedAt = &at
}

// MarkFailed records a failed upsert. code is 0 when no response was received.
func (l *ProductLink) MarkFailed(code int, reason string, at time.Time) {
	l.Status = ProductLinkError
	l.LastHTTPCode = code
	l.LastError = reason
	l.LastSyncedAt = &at
}

// ProductLinkRepository persists product links
type ProductLinkRepository interface {
	// EnsurePending inserts the links that do not exist yet and returns how many were inserted
	EnsurePending(ctx context.Context, links []ProductLink) (int, error)
	// FindPending returns up to limit links waiting for a sync, oldest first
	FindPending(ctx context.Context, limit int) ([]ProductLink, error)
	// FindByProduct returns all links of a product
	FindByProduct(ctx context.Context, productID int64) ([]ProductLink, error)
	// Save updates the sync state of a link, inserting it when needed
	Save(ctx context.Context, link *ProductLink) error
	// Count returns the number of links
	Count(ctx context.Context) (int64, error)
	// LastSyncedAt returns the most recent sync time, nil when nothing was synced
	LastSyncedAt(ctx context.Context) (*time.Time, error)
}

// ---------------------------------------------------------------------------
// Sync log
// ---------------------------------------------------------------------------

// SyncLogEntry is one operator-facing log record
type SyncLogEntry struct {
	ID            int64
	Kind          string
	CorrelationID string
	Message       string
	Detail        string
	CreatedAt     time.Time
}

// SyncLogRepository stores operator-facing log records
type SyncLogRepository interface {
	// AddLog stores one record
	AddLog(ctx context.Context, kind, correlationID, message, detail string) error
	// Recent returns the newest records first
	Recent(ctx context.Context, limit int) ([]SyncLogEntry, error)
}
