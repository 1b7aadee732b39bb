package handler

import (
	"context"

	"github.com/erp/erli-connector/internal/domain/integration"
	"github.com/erp/erli-connector/internal/infrastructure/scheduler"
	"github.com/erp/erli-connector/internal/interfaces/http/dto"
	"github.com/erp/erli-connector/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// ProductSyncer pushes catalog products to the marketplace
type ProductSyncer interface {
	scheduler.ProductSyncer
	SyncSingle(ctx context.Context, productID int64) (int, error)
}

// PriceListSource lists the delivery price lists of the seller account
type PriceListSource interface {
	DeliveryPriceLists(ctx context.Context) ([]string, error)
}

// RunGuard serializes runs of the same job
type RunGuard interface {
	Guard(ctx context.Context, name string, trigger scheduler.Trigger, fn scheduler.JobFunc) (*scheduler.Run, error)
}

// CronDefaults holds the run sizes used when a request gives none
type CronDefaults struct {
	InboxLimit   int
	InboxBatches int
	ProductBatch int
}

// CronHandlerConfig holds the dependencies of the CronHandler
type CronHandlerConfig struct {
	Poller     scheduler.InboxProcessor
	Products   ProductSyncer
	PriceLists PriceListSource
	Guard      RunGuard
	Defaults   CronDefaults
}

// CronHandler serves the endpoints called by the shop's cron scheduler
type CronHandler struct {
	BaseHandler
	poller     scheduler.InboxProcessor
	products   ProductSyncer
	priceLists PriceListSource
	guard      RunGuard
	defaults   CronDefaults
}

// NewCronHandler creates a new CronHandler
func NewCronHandler(config CronHandlerConfig) *CronHandler {
	if config.Defaults.InboxLimit <= 0 {
		config.Defaults.InboxLimit = 50
	}
	if config.Defaults.InboxBatches <= 0 {
		config.Defaults.InboxBatches = 2
	}
	if config.Defaults.ProductBatch <= 0 {
		config.Defaults.ProductBatch = 20
	}
	return &CronHandler{
		poller:     config.Poller,
		products:   config.Products,
		priceLists: config.PriceLists,
		guard:      config.Guard,
		defaults:   config.Defaults,
	}
}

// runContext detaches the run from the client connection so that a
// dropped cron request does not abort a half-processed inbox batch.
func runContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

// ProcessOrders handles POST /cron/orders
func (h *CronHandler) ProcessOrders(c *gin.Context) {
	var req dto.InboxRunRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	limit := req.Limit
	if limit == 0 {
		limit = h.defaults.InboxLimit
	}
	batches := req.Batches
	if batches == 0 {
		batches = h.defaults.InboxBatches
	}

	var stats integration.SyncStats
	run, err := h.guard.Guard(runContext(c), scheduler.JobInbox, scheduler.TriggerManual,
		func(ctx context.Context) (scheduler.Result, error) {
			stats = h.poller.ProcessInbox(ctx, limit, batches)
			return scheduler.StatsResult(stats), nil
		})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.InboxRunResponse{
		RunID: run.ID.String(),
		Limit: limit,
		Stats: stats,
	})
}

// SyncProducts handles POST /cron/products
func (h *CronHandler) SyncProducts(c *gin.Context) {
	var req dto.ProductRunRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	limit := req.Limit
	if limit == 0 {
		limit = h.defaults.ProductBatch
	}

	var prepared, synced int
	run, err := h.guard.Guard(runContext(c), scheduler.JobProducts, scheduler.TriggerManual,
		func(ctx context.Context) (scheduler.Result, error) {
			result, err := scheduler.ProductRun(h.products, limit)(ctx)
			prepared, synced = result["prepared"], result["synced"]
			return result, err
		})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.ProductRunResponse{
		RunID:    run.ID.String(),
		Prepared: prepared,
		Synced:   synced,
	})
}

// SyncProduct handles POST /cron/products/:id
func (h *CronHandler) SyncProduct(c *gin.Context) {
	var req dto.ProductIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	code := 0
	_, err := h.guard.Guard(runContext(c), scheduler.JobProducts, scheduler.TriggerManual,
		func(ctx context.Context) (scheduler.Result, error) {
			var err error
			code, err = h.products.SyncSingle(ctx, req.ID)
			return scheduler.Result{"http_code": code}, err
		})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if code < 0 {
		h.HandleError(c, integration.ErrProductInactive)
		return
	}

	h.Success(c, dto.ProductSyncResponse{ProductID: req.ID, HTTPCode: code})
}

// PriceLists handles GET /cron/price-lists
func (h *CronHandler) PriceLists(c *gin.Context) {
	lists, err := h.priceLists.DeliveryPriceLists(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if lists == nil {
		lists = []string{}
	}
	h.Success(c, dto.PriceListsResponse{PriceLists: lists})
}
