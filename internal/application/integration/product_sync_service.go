package integration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/erp/erli-connector/internal/domain/integration"
	"github.com/erp/erli-connector/internal/infrastructure/telemetry"
)

// SyncSingleInactive is returned by SyncSingle for an inactive product
const SyncSingleInactive = -1

// DefaultProductBatchSize is the number of pending listings synced per cron call
const DefaultProductBatchSize = 20

// maxStoredError bounds the error text kept on a product link
const maxStoredError = 2000

// ListingBuilder builds listing payloads
type ListingBuilder interface {
	Map(ctx context.Context, productID, langID int64, variantID *int64) (*integration.ListingPayload, error)
}

// ProductSyncServiceConfig holds the dependencies of the ProductSyncService
type ProductSyncServiceConfig struct {
	Catalog    integration.CatalogReader
	Links      integration.ProductLinkRepository
	Builder    ListingBuilder
	Client     integration.MarketplaceClient
	LanguageID int64
	Journal    *Journal
	Metrics    *telemetry.SyncMetrics
	Logger     *zap.Logger
	// Now is overridable in tests
	Now func() time.Time
}

// ProductSyncService pushes catalog products to the marketplace and keeps
// the per-listing sync state.
type ProductSyncService struct {
	catalog    integration.CatalogReader
	links      integration.ProductLinkRepository
	builder    ListingBuilder
	client     integration.MarketplaceClient
	languageID int64
	journal    *Journal
	metrics    *telemetry.SyncMetrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewProductSyncService creates a ProductSyncService.
func NewProductSyncService(config ProductSyncServiceConfig) *ProductSyncService {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Journal == nil {
		config.Journal = NewJournal(nil, config.Logger)
	}
	if config.LanguageID <= 0 {
		config.LanguageID = 1
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &ProductSyncService{
		catalog:    config.Catalog,
		links:      config.Links,
		builder:    config.Builder,
		client:     config.Client,
		languageID: config.LanguageID,
		journal:    config.Journal,
		metrics:    config.Metrics,
		logger:     config.Logger,
		now:        config.Now,
	}
}

// PrepareAllProducts registers a pending listing for every active product,
// one per variant when the product has variants. It returns how many
// listings were added.
func (s *ProductSyncService) PrepareAllProducts(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "product_sync", "prepare_all")
	defer span.End()

	ids, err := s.catalog.ListActiveProductIDs(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("failed to list active products: %w", err)
	}

	links := make([]integration.ProductLink, 0, len(ids))
	for _, pid := range ids {
		variants, err := s.catalog.ListVariantIDs(ctx, pid)
		if err != nil {
			return 0, fmt.Errorf("failed to list variants of product %d: %w", pid, err)
		}
		if len(variants) == 0 {
			links = append(links, newPendingLink(pid, 0))
			continue
		}
		for _, vid := range variants {
			links = append(links, newPendingLink(pid, vid))
		}
	}

	added, err := s.links.EnsurePending(ctx, links)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("failed to register pending listings: %w", err)
	}
	if added > 0 {
		s.journal.Info(ctx, KindProductsPrepared, "", fmt.Sprintf("Registered %d listings for sync", added), "")
	}
	telemetry.SetOK(span)
	return added, nil
}

// SyncAllPending upserts up to limit pending listings and returns how many
// the marketplace accepted.
func (s *ProductSyncService) SyncAllPending(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = DefaultProductBatchSize
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "product_sync", "sync_pending")
	defer span.End()

	pending, err := s.links.FindPending(ctx, limit)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("failed to load pending listings: %w", err)
	}
	s.metrics.RecordPendingListings(ctx, int64(len(pending)))

	synced := 0
	for i := range pending {
		if ctx.Err() != nil {
			break
		}
		if code := s.syncLink(ctx, &pending[i]); isSuccessCode(code) {
			synced++
		}
	}
	telemetry.SetOK(span)
	return synced, nil
}

// SyncSingle upserts a product and all its variants and returns the HTTP
// code of the last upsert, 0 when no response was received, or
// SyncSingleInactive when the product is inactive.
func (s *ProductSyncService) SyncSingle(ctx context.Context, productID int64) (int, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "product_sync", "sync_single",
		telemetry.WithAttribute(telemetry.SpanAttrProductID, productID),
	)
	defer span.End()

	product, err := s.catalog.LoadProduct(ctx, productID, s.languageID)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("failed to load product %d: %w", productID, err)
	}
	if !product.Active {
		return SyncSingleInactive, nil
	}

	variants, err := s.catalog.ListVariantIDs(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("failed to list variants of product %d: %w", productID, err)
	}
	targets := []int64{0}
	if len(variants) > 0 {
		targets = variants
	}

	known, err := s.links.FindByProduct(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("failed to load listings of product %d: %w", productID, err)
	}
	byVariant := make(map[int64]integration.ProductLink, len(known))
	for _, l := range known {
		byVariant[l.VariantID] = l
	}

	code := 0
	for _, vid := range targets {
		link, ok := byVariant[vid]
		if !ok {
			link = newPendingLink(productID, vid)
		}
		code = s.syncLink(ctx, &link)
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrHTTPStatus, code)
	return code, nil
}

// syncLink maps and upserts one listing, records the outcome on the link and
// returns the HTTP code (0 when nothing was sent or received).
func (s *ProductSyncService) syncLink(ctx context.Context, link *integration.ProductLink) int {
	payload, err := s.builder.Map(ctx, link.ProductID, s.languageID, link.VariantRef())
	if err != nil {
		s.fail(ctx, link, 0, err.Error())
		return 0
	}

	resp, err := s.client.UpsertProduct(ctx, payload)
	if err != nil {
		s.metrics.RecordUpsert(ctx, 0)
		s.fail(ctx, link, 0, err.Error())
		return 0
	}
	s.metrics.RecordUpsert(ctx, resp.Code)
	if !resp.IsSuccess() {
		s.fail(ctx, link, resp.Code, fmt.Sprintf("HTTP %d: %s", resp.Code, resp.Raw))
		return resp.Code
	}

	link.MarkSynced(resp.Code, s.now())
	s.save(ctx, link)
	s.journal.Info(ctx, KindProductSynced, link.ExternalID,
		fmt.Sprintf("Listing %s synced (HTTP %d)", link.ExternalID, resp.Code), "")
	return resp.Code
}

func (s *ProductSyncService) fail(ctx context.Context, link *integration.ProductLink, code int, reason string) {
	link.MarkFailed(code, truncate(reason, maxStoredError), s.now())
	s.save(ctx, link)
	s.journal.Error(ctx, KindProductSyncError, link.ExternalID,
		fmt.Sprintf("Listing %s failed to sync", link.ExternalID), reason)
}

func (s *ProductSyncService) save(ctx context.Context, link *integration.ProductLink) {
	if err := s.links.Save(ctx, link); err != nil {
		s.logger.Warn("Failed to store listing state",
			zap.String("external_id", link.ExternalID),
			zap.Error(err),
		)
	}
}

// ---------------------------------------------------------------------------
// Dashboard
// ---------------------------------------------------------------------------

// DashboardReport summarizes the connector state
type DashboardReport struct {
	ActiveProducts int64                      `json:"active_products"`
	ListingLinks   int64                      `json:"listing_links"`
	TotalOrders    int64                      `json:"total_orders"`
	ErliOrders     int64                      `json:"erli_orders"`
	LastSyncAt     *time.Time                 `json:"last_sync_at"`
	RecentLogs     []integration.SyncLogEntry `json:"recent_logs"`
}

// DashboardServiceConfig holds the dependencies of the DashboardService
type DashboardServiceConfig struct {
	Catalog      integration.CatalogReader
	ProductLinks integration.ProductLinkRepository
	OrderLinks   integration.OrderLinkRepository
	Orders       integration.OrderStore
	Logs         integration.SyncLogRepository
	// RecentLogs is the number of log entries in the report
	RecentLogs int
}

// DashboardService builds the status report of the connector
type DashboardService struct {
	config DashboardServiceConfig
}

// NewDashboardService creates a DashboardService.
func NewDashboardService(config DashboardServiceConfig) *DashboardService {
	if config.RecentLogs <= 0 {
		config.RecentLogs = 20
	}
	return &DashboardService{config: config}
}

// Report collects counts and the latest log entries.
func (s *DashboardService) Report(ctx context.Context) (*DashboardReport, error) {
	ids, err := s.config.Catalog.ListActiveProductIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}
	report := &DashboardReport{ActiveProducts: int64(len(ids))}

	if report.ListingLinks, err = s.config.ProductLinks.Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count listings: %w", err)
	}
	if report.TotalOrders, err = s.config.Orders.Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}
	if report.ErliOrders, err = s.config.OrderLinks.Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count ERLI orders: %w", err)
	}
	if report.LastSyncAt, err = s.config.ProductLinks.LastSyncedAt(ctx); err != nil {
		return nil, fmt.Errorf("failed to read last sync time: %w", err)
	}
	if report.RecentLogs, err = s.config.Logs.Recent(ctx, s.config.RecentLogs); err != nil {
		return nil, fmt.Errorf("failed to read sync logs: %w", err)
	}
	return report, nil
}

func newPendingLink(productID, variantID int64) integration.ProductLink {
	var ref *int64
	if variantID > 0 {
		ref = &variantID
	}
	return integration.ProductLink{
		ProductID:  productID,
		VariantID:  variantID,
		ExternalID: integration.ListingExternalID(productID, ref),
		Status:     integration.ProductLinkPending,
	}
}

func isSuccessCode(code int) bool {
	return code >= 200 && code < 300
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
