package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/erli-connector/internal/domain/integration"
)

// Job names shared by the scheduler loops and the cron endpoints
const (
	JobInbox    = "erli-inbox"
	JobProducts = "erli-products"
)

// InboxProcessor drains the marketplace inbox
type InboxProcessor interface {
	ProcessInbox(ctx context.Context, limit, maxBatches int) integration.SyncStats
}

// ProductSyncer pushes pending listings to the marketplace
type ProductSyncer interface {
	PrepareAllProducts(ctx context.Context) (int, error)
	SyncAllPending(ctx context.Context, limit int) (int, error)
}

// InboxRun returns the body of one inbox run
func InboxRun(poller InboxProcessor, limit, maxBatches int) JobFunc {
	return func(ctx context.Context) (Result, error) {
		stats := poller.ProcessInbox(ctx, limit, maxBatches)
		return StatsResult(stats), nil
	}
}

// StatsResult converts poller counters into a run result
func StatsResult(stats integration.SyncStats) Result {
	return Result{
		"batches":    stats.Batches,
		"events":     stats.Events,
		"created":    stats.Created,
		"ignored":    stats.Ignored,
		"exceptions": stats.Exceptions,
		"acked":      stats.Acked,
	}
}

// ProductRun returns the body of one product run: new catalog rows get a
// pending link, then up to batchSize pending links are pushed.
func ProductRun(syncer ProductSyncer, batchSize int) JobFunc {
	return func(ctx context.Context) (Result, error) {
		prepared, err := syncer.PrepareAllProducts(ctx)
		if err != nil {
			return Result{"prepared": prepared}, fmt.Errorf("failed to prepare product links: %w", err)
		}
		synced, err := syncer.SyncAllPending(ctx, batchSize)
		result := Result{"prepared": prepared, "synced": synced}
		if err != nil {
			return result, fmt.Errorf("failed to sync pending products: %w", err)
		}
		return result, nil
	}
}

// RegisterSyncJobs registers the inbox and product jobs
func RegisterSyncJobs(s *Scheduler, poller InboxProcessor, syncer ProductSyncer, inboxInterval, productInterval time.Duration, inboxLimit, inboxBatches, productBatch int) error {
	if err := s.Register(Job{
		Name:     JobInbox,
		Interval: inboxInterval,
		Run:      InboxRun(poller, inboxLimit, inboxBatches),
	}); err != nil {
		return err
	}
	return s.Register(Job{
		Name:     JobProducts,
		Interval: productInterval,
		Run:      ProductRun(syncer, productBatch),
	})
}
