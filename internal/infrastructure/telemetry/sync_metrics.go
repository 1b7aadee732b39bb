package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when metrics are built without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// SyncMetrics records the outcome of inbox and catalog sync runs.
// A nil *SyncMetrics is valid and records nothing.
type SyncMetrics struct {
	inboxEvents     *Counter
	ordersCreated   *Counter
	inboxAcks       *Counter
	rateLimited     *Counter
	listingUpserts  *Counter
	runDuration     *Histogram
	pendingListings *Gauge
}

// NewSyncMetrics registers the connector instruments on meter.
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	var err error
	m := &SyncMetrics{}
	if m.inboxEvents, err = NewCounter(meter, "erli_inbox_events_total", "Inbox events dispatched by kind and outcome", "{event}"); err != nil {
		return nil, err
	}
	if m.ordersCreated, err = NewCounter(meter, "erli_orders_created_total", "Local orders materialized from marketplace orders", "{order}"); err != nil {
		return nil, err
	}
	if m.inboxAcks, err = NewCounter(meter, "erli_inbox_acks_total", "Inbox acknowledgments by outcome", "{ack}"); err != nil {
		return nil, err
	}
	if m.rateLimited, err = NewCounter(meter, "erli_rate_limited_total", "HTTP 429 answers by operation", "{response}"); err != nil {
		return nil, err
	}
	if m.listingUpserts, err = NewCounter(meter, "erli_listing_upserts_total", "Listing upserts by HTTP status", "{request}"); err != nil {
		return nil, err
	}
	if m.runDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "erli_sync_run_duration_seconds",
		Description: "Duration of sync runs by job",
		Unit:        "s",
		Boundaries:  RunDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.pendingListings, err = NewGauge(meter, "erli_pending_listings", "Listings waiting for a sync", "{listing}"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordEvent counts one dispatched inbox event.
func (m *SyncMetrics) RecordEvent(ctx context.Context, kind, outcome string) {
	if m == nil {
		return
	}
	m.inboxEvents.Inc(ctx, AttrEventKind.String(kind), AttrOutcome.String(outcome))
}

// RecordOrderCreated counts one materialized order.
func (m *SyncMetrics) RecordOrderCreated(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.ordersCreated.Inc(ctx, AttrEventKind.String(kind))
}

// RecordAck counts one acknowledgment attempt.
func (m *SyncMetrics) RecordAck(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	m.inboxAcks.Inc(ctx, AttrOutcome.String(outcome))
}

// RecordRateLimited counts one 429 answer.
func (m *SyncMetrics) RecordRateLimited(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.rateLimited.Inc(ctx, AttrOperation.String(operation))
}

// RecordUpsert counts one listing upsert; code is 0 when no response arrived.
func (m *SyncMetrics) RecordUpsert(ctx context.Context, code int) {
	if m == nil {
		return
	}
	m.listingUpserts.Inc(ctx, AttrStatusCode.Int(code))
}

// RecordRun records the duration of a finished run.
func (m *SyncMetrics) RecordRun(ctx context.Context, job string, d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.RecordDuration(ctx, d, AttrJob.String(job))
}

// RecordPendingListings records the current pending listing backlog.
func (m *SyncMetrics) RecordPendingListings(ctx context.Context, n int64) {
	if m == nil {
		return
	}
	m.pendingListings.Record(ctx, n)
}
