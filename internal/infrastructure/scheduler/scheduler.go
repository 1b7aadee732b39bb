package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/erli-connector/internal/domain/integration"
	"github.com/erp/erli-connector/internal/infrastructure/logger"
	"github.com/erp/erli-connector/internal/infrastructure/telemetry"
)

// ---------------------------------------------------------------------------
// Run records
// ---------------------------------------------------------------------------

// RunStatus represents the status of a job run
type RunStatus string

const (
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusFailed  RunStatus = "FAILED"
	RunStatusSkipped RunStatus = "SKIPPED"
)

// Trigger tells what started a run
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
)

// Result carries the counters a job reports, e.g. created or synced
type Result map[string]int

// JobFunc is the body of one run
type JobFunc func(ctx context.Context) (Result, error)

// Run is one execution of a job
type Run struct {
	ID          uuid.UUID  `json:"id"`
	Job         string     `json:"job"`
	Trigger     Trigger    `json:"trigger"`
	Status      RunStatus  `json:"status"`
	Error       string     `json:"error,omitempty"`
	Result      Result     `json:"result,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func newRun(job string, trigger Trigger, now time.Time) *Run {
	return &Run{
		ID:        uuid.New(),
		Job:       job,
		Trigger:   trigger,
		Status:    RunStatusRunning,
		StartedAt: now,
	}
}

func (r *Run) finish(status RunStatus, result Result, errMsg string, now time.Time) {
	r.Status = status
	r.Result = result
	r.Error = errMsg
	r.CompletedAt = &now
}

// Duration returns how long the run took, zero while it is running
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// Job is a named periodic task
type Job struct {
	Name     string
	Interval time.Duration
	Run      JobFunc
}

// ---------------------------------------------------------------------------
// Scheduler
// ---------------------------------------------------------------------------

// Config holds scheduler configuration
type Config struct {
	Enabled     bool
	JobTimeout  time.Duration
	HistorySize int
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		JobTimeout:  10 * time.Minute,
		HistorySize: 100,
	}
}

// Validate validates the configuration
func (c Config) Validate() error {
	if c.JobTimeout <= 0 {
		return fmt.Errorf("%w: job timeout must be positive", ErrInvalidConfig)
	}
	if c.HistorySize < 0 {
		return fmt.Errorf("%w: history size must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Scheduler runs sync jobs on fixed intervals. Every run, scheduled or
// manual, goes through the run lock so a job never overlaps with itself,
// also across connector instances when the lock is Redis backed.
type Scheduler struct {
	config  Config
	lock    integration.RunLock
	metrics *telemetry.SyncMetrics
	logger  *zap.Logger
	nowFn   func() time.Time

	jobs      map[string]Job
	order     []string
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	historyMu sync.RWMutex
	history   []*Run
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithMetrics records run durations
func WithMetrics(m *telemetry.SyncMetrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.nowFn = now }
}

// New creates a scheduler. Jobs are registered with Register before Start.
func New(config Config, lock integration.RunLock, logger *zap.Logger, opts ...Option) (*Scheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if lock == nil {
		return nil, fmt.Errorf("%w: run lock is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		config: config,
		lock:   lock,
		logger: logger,
		nowFn:  time.Now,
		jobs:   make(map[string]Job),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register adds a job. A job with a zero interval is manual only.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil || job.Interval < 0 {
		return fmt.Errorf("%w: job needs a name, a body and a non-negative interval", ErrInvalidConfig)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.Name)
	}
	s.jobs[job.Name] = job
	s.order = append(s.order, job.Name)
	return nil
}

// Start launches one ticker loop per periodic job
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	if !s.config.Enabled {
		s.logger.Info("Sync scheduler disabled")
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, name := range s.order {
		job := s.jobs[name]
		if job.Interval == 0 {
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, job)
	}

	s.logger.Info("Sync scheduler started",
		zap.Strings("jobs", s.order),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs until ctx ends
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the ticker loops are active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.logger.Debug("Job loop started",
		zap.String("job", job.Name),
		zap.Duration("interval", job.Interval),
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run, err := s.Guard(ctx, job.Name, TriggerSchedule, job.Run)
			if err != nil && !errors.Is(err, integration.ErrRunInProgress) {
				s.logger.Error("Scheduled run failed",
					zap.String("job", job.Name),
					zap.String("run_id", run.ID.String()),
					zap.Error(err),
				)
			}
		}
	}
}

// RunNow executes a registered job immediately
func (s *Scheduler) RunNow(ctx context.Context, name string) (*Run, error) {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.Guard(ctx, name, TriggerManual, job.Run)
}

// Guard executes fn under the run lock of the named job and records the run.
// When another run holds the lock the run is recorded as skipped and
// integration.ErrRunInProgress is returned.
func (s *Scheduler) Guard(ctx context.Context, name string, trigger Trigger, fn JobFunc) (*Run, error) {
	run := newRun(name, trigger, s.nowFn())

	ttl := s.config.JobTimeout + time.Minute
	release, err := s.lock.TryAcquire(ctx, name, ttl)
	if err != nil {
		run.finish(RunStatusSkipped, nil, err.Error(), s.nowFn())
		s.addToHistory(run)
		if errors.Is(err, integration.ErrRunInProgress) {
			s.logger.Info("Run skipped, another run is in progress",
				zap.String("job", name),
				zap.String("trigger", string(trigger)),
			)
		}
		return run, err
	}
	defer release()

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()
	jobCtx, _ = logger.WithRunID(jobCtx, s.logger, run.ID.String())

	s.logger.Info("Running sync job",
		zap.String("job", name),
		zap.String("run_id", run.ID.String()),
		zap.String("trigger", string(trigger)),
	)

	result, err := s.execute(jobCtx, fn)
	if err != nil {
		run.finish(RunStatusFailed, result, err.Error(), s.nowFn())
	} else {
		run.finish(RunStatusSuccess, result, "", s.nowFn())
	}
	s.metrics.RecordRun(ctx, name, run.Duration())
	s.addToHistory(run)

	s.logger.Info("Sync job finished",
		zap.String("job", name),
		zap.String("run_id", run.ID.String()),
		zap.String("status", string(run.Status)),
		zap.Duration("duration", run.Duration()),
		zap.Any("result", result),
	)
	return run, err
}

// execute runs fn and turns a panic into an error so the loop survives
func (s *Scheduler) execute(ctx context.Context, fn JobFunc) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return fn(ctx)
}

func (s *Scheduler) addToHistory(run *Run) {
	if s.config.HistorySize == 0 {
		return
	}
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history = append([]*Run{run}, s.history...)
	if len(s.history) > s.config.HistorySize {
		s.history = s.history[:s.config.HistorySize]
	}
}

// History returns up to limit recent runs, newest first
func (s *Scheduler) History(limit int) []Run {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	result := make([]Run, limit)
	for i := 0; i < limit; i++ {
		result[i] = *s.history[i]
	}
	return result
}

// LastRun returns the newest finished run of a job
func (s *Scheduler) LastRun(name string) (Run, bool) {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	for _, run := range s.history {
		if run.Job == name && run.Status != RunStatusSkipped {
			return *run, true
		}
	}
	return Run{}, false
}
