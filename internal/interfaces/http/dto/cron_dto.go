package dto

import (
	"time"

	"github.com/erp/erli-connector/internal/domain/integration"
)

// InboxRunRequest holds the query parameters of POST /cron/orders
type InboxRunRequest struct {
	Limit   int `form:"limit" binding:"omitempty,min=1,max=100"`
	Batches int `form:"batches" binding:"omitempty,min=1,max=1000"`
}

// ProductRunRequest holds the query parameters of POST /cron/products
type ProductRunRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=200"`
}

// ProductIDRequest holds the path parameter of POST /cron/products/:id
type ProductIDRequest struct {
	ID int64 `uri:"id" binding:"required,min=1"`
}

// InboxRunResponse reports one inbox run
type InboxRunResponse struct {
	RunID string                `json:"run_id"`
	Limit int                   `json:"limit"`
	Stats integration.SyncStats `json:"stats"`
}

// ProductRunResponse reports one product run
type ProductRunResponse struct {
	RunID    string `json:"run_id"`
	Prepared int    `json:"prepared"`
	Synced   int    `json:"synced"`
}

// ProductSyncResponse reports the sync of one product
type ProductSyncResponse struct {
	ProductID int64 `json:"product_id"`
	HTTPCode  int   `json:"http_code"`
}

// PriceListsResponse lists the delivery price list tags of the seller account
type PriceListsResponse struct {
	PriceLists []string `json:"price_lists"`
}

// DashboardResponse is the body of GET /dashboard
type DashboardResponse struct {
	ActiveProducts int64        `json:"active_products"`
	ListingLinks   int64        `json:"listing_links"`
	TotalOrders    int64        `json:"total_orders"`
	ErliOrders     int64        `json:"erli_orders"`
	LastSyncAt     *time.Time   `json:"last_sync_at"`
	RecentLogs     []SyncLogDTO `json:"recent_logs"`
	RecentRuns     []RunSummary `json:"recent_runs"`
}

// SyncLogDTO is one sync journal entry
type SyncLogDTO struct {
	ID            int64     `json:"id"`
	Kind          string    `json:"kind"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Message       string    `json:"message"`
	Detail        string    `json:"detail,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// RunSummary is one entry of the scheduler history
type RunSummary struct {
	ID          string         `json:"id"`
	Job         string         `json:"job"`
	Trigger     string         `json:"trigger"`
	Status      string         `json:"status"`
	Error       string         `json:"error,omitempty"`
	Result      map[string]int `json:"result,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Scheduler string `json:"scheduler"`
	Time      string `json:"time"`
	Uptime    string `json:"uptime"`
}
