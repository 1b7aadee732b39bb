package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/erli-connector/internal/domain/integration"
	"github.com/erp/erli-connector/internal/infrastructure/logger"
	"github.com/erp/erli-connector/internal/infrastructure/telemetry"
)

const (
	// MaxInboxLimit is the largest page the inbox endpoint serves
	MaxInboxLimit = 100
	// DefaultInboxLimit and DefaultInboxBatches are the cron defaults
	DefaultInboxLimit   = 50
	DefaultInboxBatches = 2

	maxRateLimitAttempts = 5
	maxRateLimitBackoff  = 8 * time.Second
	defaultBatchPause    = 120 * time.Millisecond
)

// Sleeper waits between marketplace calls. Sleep returns early with the
// context error when ctx is cancelled.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a real timer
type TimerSleeper struct{}

// Sleep waits for d or until ctx is done.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// InboxDispatcher handles the events of a batch
type InboxDispatcher interface {
	Dispatch(ctx context.Context, event integration.InboxEvent, stats *integration.SyncStats)
}

// InboxPollerConfig holds the dependencies of the InboxPoller
type InboxPollerConfig struct {
	Client     integration.MarketplaceClient
	Dispatcher InboxDispatcher
	Journal    *Journal
	Metrics    *telemetry.SyncMetrics
	Sleeper    Sleeper
	// BatchPause separates consecutive full batches
	BatchPause time.Duration
	Logger     *zap.Logger
}

// InboxPoller drains the marketplace inbox: it fetches batches, dispatches
// their events and acknowledges each batch by its watermark.
type InboxPoller struct {
	client     integration.MarketplaceClient
	dispatcher InboxDispatcher
	journal    *Journal
	metrics    *telemetry.SyncMetrics
	sleeper    Sleeper
	batchPause time.Duration
	logger     *zap.Logger
}

// NewInboxPoller creates an InboxPoller.
func NewInboxPoller(config InboxPollerConfig) *InboxPoller {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Journal == nil {
		config.Journal = NewJournal(nil, config.Logger)
	}
	if config.Sleeper == nil {
		config.Sleeper = TimerSleeper{}
	}
	if config.BatchPause <= 0 {
		config.BatchPause = defaultBatchPause
	}
	return &InboxPoller{
		client:     config.Client,
		dispatcher: config.Dispatcher,
		journal:    config.Journal,
		metrics:    config.Metrics,
		sleeper:    config.Sleeper,
		batchPause: config.BatchPause,
		logger:     config.Logger,
	}
}

// ProcessInbox runs one inbox cycle of at most maxBatches batches of limit
// events. Run-level failures end the run; the stats gathered so far are
// always returned.
func (p *InboxPoller) ProcessInbox(ctx context.Context, limit, maxBatches int) integration.SyncStats {
	limit = clampLimit(limit)
	if maxBatches < 1 {
		maxBatches = 1
	}

	runID := logger.GetRunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx, log := logger.WithRunID(ctx, p.logger, runID)
	ctx, span := telemetry.StartServiceSpan(ctx, "inbox_poller", "process_inbox")
	defer span.End()

	start := time.Now()
	var stats integration.SyncStats
	defer func() {
		telemetry.SetAttributes(span, telemetry.SpanAttrEventCount, stats.Events, telemetry.SpanAttrBatch, stats.Batches)
		log.Info("Inbox run finished",
			zap.Int("batches", stats.Batches),
			zap.Int("events", stats.Events),
			zap.Int("created", stats.Created),
			zap.Int("ignored", stats.Ignored),
			zap.Int("exceptions", stats.Exceptions),
			zap.Int("acked", stats.Acked),
			zap.Duration("duration", time.Since(start)),
		)
	}()

	for batch := 1; batch <= maxBatches; batch++ {
		events, ok := p.fetchBatch(ctx, limit)
		if !ok {
			return stats
		}
		if len(events) == 0 {
			if batch == 1 {
				p.journal.Info(ctx, KindInboxEmpty, "", "Inbox is empty", "")
			}
			return stats
		}
		stats.Batches++

		var watermark integration.Watermark
		for _, event := range events {
			if ctx.Err() != nil {
				return stats
			}
			stats.Events++
			watermark.Observe(event.ID)
			if event.Malformed() {
				p.journal.Warn(ctx, KindEventMalformed, event.ID.String(),
					fmt.Sprintf("Skipping undecodable inbox event: %v", event.DecodeErr), string(event.Raw))
				continue
			}
			p.dispatcher.Dispatch(ctx, event, &stats)
		}

		if ackID, ok := watermark.ID(); ok {
			if !p.ack(ctx, ackID) {
				return stats
			}
			stats.Acked++
		}

		if len(events) < limit {
			return stats
		}
		if batch == maxBatches {
			p.journal.Warn(ctx, KindInboxLimitReached, "",
				fmt.Sprintf("Batch limit of %d reached, inbox may hold more events", maxBatches), "")
			return stats
		}
		if err := p.sleeper.Sleep(ctx, p.batchPause); err != nil {
			return stats
		}
	}
	return stats
}

// fetchBatch returns false when the run must stop.
func (p *InboxPoller) fetchBatch(ctx context.Context, limit int) ([]integration.InboxEvent, bool) {
	resp, err := p.withRateLimitRetry(ctx, "get_inbox", func() (*integration.APIResponse, error) {
		return p.client.GetInbox(ctx, limit)
	})
	if err != nil {
		raw := ""
		if resp != nil {
			raw = resp.Raw
		}
		p.journal.Error(ctx, KindInboxError, "", fmt.Sprintf("Failed to fetch inbox: %v", err), raw)
		return nil, false
	}
	if !resp.IsSuccess() {
		p.journal.Error(ctx, KindInboxError, "", fmt.Sprintf("Fetching inbox returned HTTP %d", resp.Code), resp.Raw)
		return nil, false
	}
	events, err := integration.ParseInboxBatch(resp.Body)
	if err != nil {
		p.journal.Error(ctx, KindInboxError, "", err.Error(), resp.Raw)
		return nil, false
	}
	return events, true
}

func (p *InboxPoller) ack(ctx context.Context, id integration.EventID) bool {
	resp, err := p.withRateLimitRetry(ctx, "ack_inbox", func() (*integration.APIResponse, error) {
		return p.client.AckInbox(ctx, id)
	})
	switch {
	case err != nil:
		raw := ""
		if resp != nil {
			raw = resp.Raw
		}
		p.journal.Error(ctx, KindAckError, id.String(), fmt.Sprintf("Failed to acknowledge inbox: %v", err), raw)
	case !resp.IsSuccess():
		p.journal.Error(ctx, KindAckError, id.String(), fmt.Sprintf("Acknowledging inbox returned HTTP %d", resp.Code), resp.Raw)
	default:
		p.metrics.RecordAck(ctx, true)
		return true
	}
	p.metrics.RecordAck(ctx, false)
	return false
}

// withRateLimitRetry repeats call while it answers 429, waiting
// min(2*attempt, 8) seconds between attempts. After the last attempt it
// returns the 429 response with ErrRateLimited.
func (p *InboxPoller) withRateLimitRetry(ctx context.Context, op string, call func() (*integration.APIResponse, error)) (*integration.APIResponse, error) {
	for attempt := 1; ; attempt++ {
		resp, err := call()
		if err != nil {
			return resp, err
		}
		if !resp.IsRateLimited() {
			return resp, nil
		}
		p.metrics.RecordRateLimited(ctx, op)
		if attempt >= maxRateLimitAttempts {
			return resp, fmt.Errorf("%w: %s after %d attempts", integration.ErrRateLimited, op, attempt)
		}
		if err := p.sleeper.Sleep(ctx, rateLimitBackoff(attempt)); err != nil {
			return resp, err
		}
	}
}

func rateLimitBackoff(attempt int) time.Duration {
	return min(time.Duration(2*attempt)*time.Second, maxRateLimitBackoff)
}

func clampLimit(limit int) int {
	switch {
	case limit < 1:
		return 1
	case limit > MaxInboxLimit:
		return MaxInboxLimit
	default:
		return limit
	}
}
