package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/erp/erli-connector/internal/domain/integration"
	"github.com/erp/erli-connector/internal/infrastructure/cache"
	"github.com/erp/erli-connector/internal/infrastructure/logger"
	"github.com/erp/erli-connector/internal/infrastructure/telemetry"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

func newTestScheduler(t *testing.T, config Config) (*Scheduler, *cache.InMemoryRunLock) {
	t.Helper()
	lock := cache.NewInMemoryRunLock()
	tick := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s, err := New(config, lock, zap.NewNop(), WithClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}))
	require.NoError(t, err)
	return s, lock
}

func okJob(result Result) JobFunc {
	return func(context.Context) (Result, error) { return result, nil }
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"zero timeout", Config{JobTimeout: 0}, true},
		{"negative history", Config{JobTimeout: time.Minute, HistorySize: -1}, true},
		{"no history", Config{JobTimeout: time.Minute}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_RequiresLock(t *testing.T) {
	_, err := New(DefaultConfig(), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestScheduler_Register(t *testing.T) {
	s, _ := newTestScheduler(t, DefaultConfig())

	require.NoError(t, s.Register(Job{Name: "a", Interval: time.Minute, Run: okJob(nil)}))
	assert.ErrorIs(t, s.Register(Job{Name: "a", Run: okJob(nil)}), ErrDuplicateJob)
	assert.ErrorIs(t, s.Register(Job{Name: "", Run: okJob(nil)}), ErrInvalidConfig)
	assert.ErrorIs(t, s.Register(Job{Name: "b"}), ErrInvalidConfig)
	assert.ErrorIs(t, s.Register(Job{Name: "c", Interval: -time.Second, Run: okJob(nil)}), ErrInvalidConfig)
}

// ---------------------------------------------------------------------------
// Guard
// ---------------------------------------------------------------------------

func TestScheduler_Guard_Success(t *testing.T) {
	s, _ := newTestScheduler(t, DefaultConfig())

	run, err := s.Guard(context.Background(), JobInbox, TriggerManual, okJob(Result{"created": 2}))
	require.NoError(t, err)

	assert.Equal(t, RunStatusSuccess, run.Status)
	assert.Equal(t, TriggerManual, run.Trigger)
	assert.Equal(t, Result{"created": 2}, run.Result)
	assert.Equal(t, time.Second, run.Duration())
	assert.Len(t, s.History(0), 1)
}

func TestScheduler_Guard_PropagatesRunID(t *testing.T) {
	s, _ := newTestScheduler(t, DefaultConfig())

	var seen string
	run, err := s.Guard(context.Background(), JobInbox, TriggerManual, func(ctx context.Context) (Result, error) {
		seen = logger.GetRunID(ctx)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, run.ID.String(), seen)
}

func TestScheduler_Guard_RecordsRunDurationOnce(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	metrics, err := telemetry.NewSyncMetrics(provider.Meter("test"))
	require.NoError(t, err)

	s, err := New(DefaultConfig(), cache.NewInMemoryRunLock(), zap.NewNop(), WithMetrics(metrics))
	require.NoError(t, err)

	_, err = s.Guard(context.Background(), JobInbox, TriggerManual, okJob(nil))
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var count uint64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "erli_sync_run_duration_seconds" {
				continue
			}
			hist, ok := m.Data.(metricdata.Histogram[float64])
			require.True(t, ok)
			for _, dp := range hist.DataPoints {
				count += dp.Count
			}
		}
	}
	assert.Equal(t, uint64(1), count)
}

func TestScheduler_Guard_Failure(t *testing.T) {
	s, _ := newTestScheduler(t, DefaultConfig())
	boom := errors.New("catalog unavailable")

	run, err := s.Guard(context.Background(), JobProducts, TriggerSchedule, func(context.Context) (Result, error) {
		return Result{"prepared": 1}, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Equal(t, "catalog unavailable", run.Error)
	assert.Equal(t, Result{"prepared": 1}, run.Result)
}

func TestScheduler_Guard_Panic(t *testing.T) {
	s, _ := newTestScheduler(t, DefaultConfig())

	run, err := s.Guard(context.Background(), JobInbox, TriggerSchedule, func(context.Context) (Result, error) {
		panic("nil map")
	})

	assert.ErrorContains(t, err, "job panicked: nil map")
	assert.Equal(t, RunStatusFailed, run.Status)

	// the lock is released after a panic
	_, err = s.Guard(context.Background(), JobInbox, TriggerSchedule, okJob(nil))
	assert.NoError(t, err)
}

func TestScheduler_Guard_SkipsWhileLocked(t *testing.T) {
	s, lock := newTestScheduler(t, DefaultConfig())
	release, err := lock.TryAcquire(context.Background(), JobInbox, time.Minute)
	require.NoError(t, err)
	defer release()

	called := false
	run, err := s.Guard(context.Background(), JobInbox, TriggerManual, func(context.Context) (Result, error) {
		called = true
		return nil, nil
	})

	assert.ErrorIs(t, err, integration.ErrRunInProgress)
	assert.False(t, called)
	assert.Equal(t, RunStatusSkipped, run.Status)

	_, ok := s.LastRun(JobInbox)
	assert.False(t, ok, "skipped runs are not reported as the last run")
}

func TestScheduler_Guard_AppliesJobTimeout(t *testing.T) {
	config := DefaultConfig()
	config.JobTimeout = 20 * time.Millisecond
	s, _ := newTestScheduler(t, config)

	_, err := s.Guard(context.Background(), JobInbox, TriggerManual, func(ctx context.Context) (Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// ---------------------------------------------------------------------------
// History
// ---------------------------------------------------------------------------

func TestScheduler_History(t *testing.T) {
	config := DefaultConfig()
	config.HistorySize = 2
	s, _ := newTestScheduler(t, config)
	ctx := context.Background()

	_, _ = s.Guard(ctx, JobInbox, TriggerSchedule, okJob(Result{"n": 1}))
	_, _ = s.Guard(ctx, JobProducts, TriggerSchedule, okJob(Result{"n": 2}))
	_, _ = s.Guard(ctx, JobInbox, TriggerSchedule, okJob(Result{"n": 3}))

	history := s.History(0)
	require.Len(t, history, 2)
	assert.Equal(t, 3, history[0].Result["n"])
	assert.Equal(t, 2, history[1].Result["n"])
	assert.Len(t, s.History(1), 1)

	last, ok := s.LastRun(JobProducts)
	require.True(t, ok)
	assert.Equal(t, 2, last.Result["n"])
}

func TestScheduler_HistoryDisabled(t *testing.T) {
	config := DefaultConfig()
	config.HistorySize = 0
	s, _ := newTestScheduler(t, config)

	_, _ = s.Guard(context.Background(), JobInbox, TriggerSchedule, okJob(nil))
	assert.Empty(t, s.History(10))
}

// ---------------------------------------------------------------------------
// RunNow / loops
// ---------------------------------------------------------------------------

func TestScheduler_RunNow(t *testing.T) {
	s, _ := newTestScheduler(t, DefaultConfig())
	require.NoError(t, s.Register(Job{Name: JobProducts, Run: okJob(Result{"synced": 4})}))

	run, err := s.RunNow(context.Background(), JobProducts)
	require.NoError(t, err)
	assert.Equal(t, 4, run.Result["synced"])

	_, err = s.RunNow(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_StartRunsPeriodicJobs(t *testing.T) {
	s, _ := newTestScheduler(t, DefaultConfig())
	var periodic, manual atomic.Int32
	require.NoError(t, s.Register(Job{Name: JobInbox, Interval: 5 * time.Millisecond, Run: func(context.Context) (Result, error) {
		periodic.Add(1)
		return nil, nil
	}}))
	require.NoError(t, s.Register(Job{Name: JobProducts, Run: func(context.Context) (Result, error) {
		manual.Add(1)
		return nil, nil
	}}))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	require.Eventually(t, func() bool { return periodic.Load() >= 2 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())
	assert.Zero(t, manual.Load(), "jobs without an interval only run on demand")
}

func TestScheduler_DisabledDoesNotStart(t *testing.T) {
	config := DefaultConfig()
	config.Enabled = false
	s, _ := newTestScheduler(t, config)
	require.NoError(t, s.Register(Job{Name: JobInbox, Interval: time.Millisecond, Run: okJob(nil)}))

	require.NoError(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
	assert.NoError(t, s.Stop(context.Background()))
}
