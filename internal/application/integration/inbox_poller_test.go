package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/erp/erli-connector/internal/domain/integration"
	"github.com/erp/erli-connector/internal/infrastructure/logger"
	"github.com/erp/erli-connector/internal/infrastructure/telemetry"
)

// countingDispatcher records dispatched event ids
type countingDispatcher struct {
	ids []string
}

func (d *countingDispatcher) Dispatch(_ context.Context, event integration.InboxEvent, stats *integration.SyncStats) {
	d.ids = append(d.ids, event.ID.String())
	stats.Created++
}

type pollerFixture struct {
	client     *MockMarketplaceClient
	dispatcher *countingDispatcher
	sleeper    *recordingSleeper
	log        *recordingLog
	poller     *InboxPoller
}

func newPollerFixture() *pollerFixture {
	f := &pollerFixture{
		client:     new(MockMarketplaceClient),
		dispatcher: &countingDispatcher{},
		sleeper:    &recordingSleeper{},
		log:        &recordingLog{},
	}
	f.poller = NewInboxPoller(InboxPollerConfig{
		Client:     f.client,
		Dispatcher: f.dispatcher,
		Journal:    NewJournal(f.log, nil),
		Sleeper:    f.sleeper,
	})
	return f
}

func TestInboxPoller_EmptyInbox(t *testing.T) {
	f := newPollerFixture()
	f.client.On("GetInbox", mock.Anything, 50).Return(jsonResponse(200, `[]`), nil).Once()

	stats := f.poller.ProcessInbox(context.Background(), DefaultInboxLimit, DefaultInboxBatches)

	assert.Equal(t, integration.SyncStats{}, stats)
	assert.Equal(t, []string{KindInboxEmpty}, f.log.kinds())
	f.client.AssertNotCalled(t, "AckInbox", mock.Anything, mock.Anything)
}

func TestInboxPoller_PartialBatch(t *testing.T) {
	f := newPollerFixture()
	f.client.On("GetInbox", mock.Anything, 50).Return(jsonResponse(200, `[
		{"id": 9, "type": "orderCreated", "payload": {"id": "E1"}},
		{"id": 12, "type": "orderCreated", "payload": {"id": "E2"}},
		{"id": "10", "type": "orderStatusChanged", "payload": {"id": "E1"}}
	]`), nil).Once()
	f.client.On("AckInbox", mock.Anything, integration.EventID("12")).Return(jsonResponse(200, ``), nil).Once()

	stats := f.poller.ProcessInbox(context.Background(), 50, 2)

	assert.Equal(t, integration.SyncStats{Batches: 1, Events: 3, Created: 3, Acked: 1}, stats)
	assert.Equal(t, []string{"9", "12", "10"}, f.dispatcher.ids)
	assert.Empty(t, f.log.kinds())
	assert.Empty(t, f.sleeper.sleeps)
	f.client.AssertExpectations(t)
}

func TestInboxPoller_MalformedEventsAreSkipped(t *testing.T) {
	f := newPollerFixture()
	f.client.On("GetInbox", mock.Anything, 50).Return(jsonResponse(200, `[
		{"id": 1, "type": "orderCreated", "payload": {"id": "E1"}},
		"garbage",
		{"id": true, "type": "orderCreated"},
		{"id": 3, "type": "orderCreated", "payload": {"id": "E3"}}
	]`), nil).Once()
	f.client.On("AckInbox", mock.Anything, integration.EventID("3")).Return(jsonResponse(200, ``), nil).Once()

	stats := f.poller.ProcessInbox(context.Background(), 50, 2)

	assert.Equal(t, integration.SyncStats{Batches: 1, Events: 4, Created: 2, Acked: 1}, stats)
	assert.Equal(t, []string{"1", "3"}, f.dispatcher.ids)
	assert.Equal(t, []string{KindEventMalformed, KindEventMalformed}, f.log.kinds())
	entry, _ := f.log.find(KindEventMalformed)
	assert.Equal(t, `"garbage"`, entry.Detail)
	f.client.AssertExpectations(t)
}

func TestInboxPoller_MalformedLastEventStillAcked(t *testing.T) {
	f := newPollerFixture()
	f.client.On("GetInbox", mock.Anything, 50).Return(jsonResponse(200, `[
		{"id": 8, "type": "orderCreated", "payload": {"id": "E8"}},
		{"id": 9, "type": ["broken"]}
	]`), nil).Once()
	f.client.On("AckInbox", mock.Anything, integration.EventID("9")).Return(jsonResponse(200, ``), nil).Once()

	stats := f.poller.ProcessInbox(context.Background(), 50, 1)

	assert.Equal(t, integration.SyncStats{Batches: 1, Events: 2, Created: 1, Acked: 1}, stats)
	entry, ok := f.log.find(KindEventMalformed)
	assert.True(t, ok)
	assert.Equal(t, "9", entry.CorrelationID)
	f.client.AssertExpectations(t)
}

func TestInboxPoller_NonNumericWatermark(t *testing.T) {
	f := newPollerFixture()
	f.client.On("GetInbox", mock.Anything, 10).Return(jsonResponse(200, `[
		{"id": "20", "type": "orderCreated", "payload": {"id": "E1"}},
		{"id": "evt-b", "type": "orderCreated", "payload": {"id": "E2"}},
		{"id": "7", "type": "orderCreated", "payload": {"id": "E3"}}
	]`), nil).Once()
	f.client.On("AckInbox", mock.Anything, integration.EventID("7")).Return(jsonResponse(204, ``), nil).Once()

	stats := f.poller.ProcessInbox(context.Background(), 10, 1)
	assert.Equal(t, 1, stats.Acked)
	f.client.AssertExpectations(t)
}

func TestInboxPoller_BatchLimitReached(t *testing.T) {
	f := newPollerFixture()
	f.client.On("GetInbox", mock.Anything, 2).Return(jsonResponse(200,
		`[{"id": 1, "type": "orderCreated"}, {"id": 2, "type": "orderCreated"}]`), nil).Once()
	f.client.On("GetInbox", mock.Anything, 2).Return(jsonResponse(200,
		`[{"id": 3, "type": "orderCreated"}, {"id": 4, "type": "orderCreated"}]`), nil).Once()
	f.client.On("AckInbox", mock.Anything, integration.EventID("2")).Return(jsonResponse(200, ``), nil).Once()
	f.client.On("AckInbox", mock.Anything, integration.EventID("4")).Return(jsonResponse(200, ``), nil).Once()

	stats := f.poller.ProcessInbox(context.Background(), 2, 2)

	assert.Equal(t, integration.SyncStats{Batches: 2, Events: 4, Created: 4, Acked: 2}, stats)
	assert.Equal(t, []string{KindInboxLimitReached}, f.log.kinds())
	assert.Equal(t, []time.Duration{defaultBatchPause}, f.sleeper.sleeps)
	f.client.AssertExpectations(t)
}

func TestInboxPoller_DrainsUntilEmpty(t *testing.T) {
	f := newPollerFixture()
	f.client.On("GetInbox", mock.Anything, 2).Return(jsonResponse(200,
		`[{"id": 1, "type": "orderCreated"}, {"id": 2, "type": "orderCreated"}]`), nil).Once()
	f.client.On("GetInbox", mock.Anything, 2).Return(jsonResponse(200, `null`), nil).Once()
	f.client.On("AckInbox", mock.Anything, integration.EventID("2")).Return(jsonResponse(200, ``), nil).Once()

	stats := f.poller.ProcessInbox(context.Background(), 2, 5)

	assert.Equal(t, integration.SyncStats{Batches: 1, Events: 2, Created: 2, Acked: 1}, stats)
	// the empty marker is only written when the first batch is empty
	assert.Empty(t, f.log.kinds())
	f.client.AssertExpectations(t)
}

func TestInboxPoller_RateLimitRetry(t *testing.T) {
	f := newPollerFixture()
	f.client.On("GetInbox", mock.Anything, 50).Return(jsonResponse(429, `slow down`), nil).Twice()
	f.client.On("GetInbox", mock.Anything, 50).Return(jsonResponse(200, `[{"id": 1, "type": "orderCreated"}]`), nil).Once()
	f.client.On("AckInbox", mock.Anything, integration.EventID("1")).Return(jsonResponse(429, ``), nil).Once()
	f.client.On("AckInbox", mock.Anything, integration.EventID("1")).Return(jsonResponse(200, ``), nil).Once()

	stats := f.poller.ProcessInbox(context.Background(), 50, 1)

	assert.Equal(t, integration.SyncStats{Batches: 1, Events: 1, Created: 1, Acked: 1}, stats)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 2 * time.Second}, f.sleeper.sleeps)
	f.client.AssertExpectations(t)
}

func TestInboxPoller_RateLimitExhausted(t *testing.T) {
	f := newPollerFixture()
	f.client.On("GetInbox", mock.Anything, 50).Return(jsonResponse(429, `slow down`), nil).Times(5)

	stats := f.poller.ProcessInbox(context.Background(), 50, 2)

	assert.Equal(t, integration.SyncStats{}, stats)
	assert.Equal(t, []string{KindInboxError}, f.log.kinds())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second, 8 * time.Second}, f.sleeper.sleeps)
	entry, _ := f.log.find(KindInboxError)
	assert.Equal(t, "slow down", entry.Detail)
	f.client.AssertNumberOfCalls(t, "GetInbox", 5)
}

func TestInboxPoller_InboxErrors(t *testing.T) {
	tests := []struct {
		name string
		resp *integration.APIResponse
	}{
		{"server error", jsonResponse(500, `oops`)},
		{"not a list", jsonResponse(200, `{"events": []}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPollerFixture()
			f.client.On("GetInbox", mock.Anything, 50).Return(tt.resp, nil).Once()

			stats := f.poller.ProcessInbox(context.Background(), 50, 2)

			assert.Equal(t, integration.SyncStats{}, stats)
			assert.Equal(t, []string{KindInboxError}, f.log.kinds())
		})
	}
}

func TestInboxPoller_AckFailureStopsRun(t *testing.T) {
	f := newPollerFixture()
	f.client.On("GetInbox", mock.Anything, 2).Return(jsonResponse(200,
		`[{"id": 5, "type": "orderCreated"}, {"id": 6, "type": "orderCreated"}]`), nil).Once()
	f.client.On("AckInbox", mock.Anything, integration.EventID("6")).Return(jsonResponse(500, `ack failed`), nil).Once()

	stats := f.poller.ProcessInbox(context.Background(), 2, 3)

	assert.Equal(t, integration.SyncStats{Batches: 1, Events: 2, Created: 2}, stats)
	assert.Equal(t, []string{KindAckError}, f.log.kinds())
	entry, _ := f.log.find(KindAckError)
	assert.Equal(t, "6", entry.CorrelationID)
	f.client.AssertNumberOfCalls(t, "GetInbox", 1)
}

func TestInboxPoller_ClampsLimit(t *testing.T) {
	tests := []struct {
		limit, want int
	}{
		{500, MaxInboxLimit},
		{0, 1},
		{-3, 1},
		{25, 25},
	}
	for _, tt := range tests {
		f := newPollerFixture()
		f.client.On("GetInbox", mock.Anything, tt.want).Return(jsonResponse(200, `[]`), nil).Once()

		f.poller.ProcessInbox(context.Background(), tt.limit, 0)
		f.client.AssertExpectations(t)
	}
}

func TestInboxPoller_CancelledContext(t *testing.T) {
	f := newPollerFixture()
	f.client.On("GetInbox", mock.Anything, 2).Return(jsonResponse(200,
		`[{"id": 1, "type": "orderCreated"}, {"id": 2, "type": "orderCreated"}]`), nil).Once()
	f.client.On("AckInbox", mock.Anything, integration.EventID("2")).Return(jsonResponse(200, ``), nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	f.poller.sleeper = sleeperFunc(func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	})

	stats := f.poller.ProcessInbox(ctx, 2, 3)
	assert.Equal(t, 1, stats.Batches)
	f.client.AssertNumberOfCalls(t, "GetInbox", 1)
}

func TestInboxPoller_RedeliveredBatchCreatesOneLink(t *testing.T) {
	client := new(MockMarketplaceClient)
	creator := new(MockOrderCreator)
	links := newMemoryOrderLinks()
	log := &recordingLog{}
	journal := NewJournal(log, nil)

	batch := `[{"id": 41, "type": "orderCreated", "payload": {"id": "E41"}}]`
	client.On("GetInbox", mock.Anything, 50).Return(jsonResponse(200, batch), nil).Twice()
	client.On("AckInbox", mock.Anything, integration.EventID("41")).Return(jsonResponse(200, ``), nil).Twice()
	client.On("GetOrder", mock.Anything, "E41").Return(jsonResponse(200, `{"id":"E41","status":"purchased"}`), nil).Once()
	creator.On("Materialize", mock.Anything, mock.Anything).Return(int64(500), nil).Once()

	poller := NewInboxPoller(InboxPollerConfig{
		Client: client,
		Dispatcher: NewEventDispatcher(EventDispatcherConfig{
			Client:   client,
			Links:    links,
			Creator:  creator,
			Statuses: NewStatusTable(newFakeConfig(nil)),
			Journal:  journal,
		}),
		Journal: journal,
		Sleeper: &recordingSleeper{},
	})

	first := poller.ProcessInbox(context.Background(), 50, 1)
	second := poller.ProcessInbox(context.Background(), 50, 1)

	assert.Equal(t, integration.SyncStats{Batches: 1, Events: 1, Created: 1, Acked: 1}, first)
	assert.Equal(t, integration.SyncStats{Batches: 1, Events: 1, Acked: 1}, second)
	assert.Equal(t, 1, links.saves)
	count, _ := links.Count(context.Background())
	assert.Equal(t, int64(1), count)
	assert.Equal(t, []string{KindOrderCreated, KindSkippedExisting}, log.kinds())
	client.AssertExpectations(t)
	creator.AssertExpectations(t)
}

// runIDDispatcher captures the run id seen by dispatched events
type runIDDispatcher struct {
	runIDs []string
}

func (d *runIDDispatcher) Dispatch(ctx context.Context, _ integration.InboxEvent, _ *integration.SyncStats) {
	d.runIDs = append(d.runIDs, logger.GetRunID(ctx))
}

func TestInboxPoller_RunID(t *testing.T) {
	tests := []struct {
		name   string
		preset string
	}{
		{"reuses the caller's run id", "run-7"},
		{"generates one when absent", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(MockMarketplaceClient)
			client.On("GetInbox", mock.Anything, 50).Return(jsonResponse(200, `[{"id": 1, "type": "orderCreated"}]`), nil).Once()
			client.On("AckInbox", mock.Anything, integration.EventID("1")).Return(jsonResponse(200, ``), nil).Once()
			dispatcher := &runIDDispatcher{}
			poller := NewInboxPoller(InboxPollerConfig{Client: client, Dispatcher: dispatcher, Sleeper: &recordingSleeper{}})

			ctx := context.Background()
			if tt.preset != "" {
				ctx, _ = logger.WithRunID(ctx, zap.NewNop(), tt.preset)
			}
			poller.ProcessInbox(ctx, 50, 1)

			require.Len(t, dispatcher.runIDs, 1)
			if tt.preset != "" {
				assert.Equal(t, tt.preset, dispatcher.runIDs[0])
			} else {
				assert.NotEmpty(t, dispatcher.runIDs[0])
			}
		})
	}
}

func TestInboxPoller_LeavesRunDurationToScheduler(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	metrics, err := telemetry.NewSyncMetrics(provider.Meter("test"))
	require.NoError(t, err)

	f := newPollerFixture()
	f.poller.metrics = metrics
	f.client.On("GetInbox", mock.Anything, 50).Return(jsonResponse(200, `[{"id": 1, "type": "orderCreated"}]`), nil).Once()
	f.client.On("AckInbox", mock.Anything, integration.EventID("1")).Return(jsonResponse(200, ``), nil).Once()

	f.poller.ProcessInbox(context.Background(), 50, 1)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var names []string
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names = append(names, m.Name)
		}
	}
	assert.Contains(t, names, "erli_inbox_acks_total")
	assert.NotContains(t, names, "erli_sync_run_duration_seconds")
}

type sleeperFunc func(ctx context.Context, d time.Duration) error

func (f sleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

func TestRateLimitBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, rateLimitBackoff(1))
	assert.Equal(t, 6*time.Second, rateLimitBackoff(3))
	assert.Equal(t, 8*time.Second, rateLimitBackoff(4))
	assert.Equal(t, 8*time.Second, rateLimitBackoff(9))
}
