package washsale_monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/meridian-wealth/advisory_service/internal/domain/entities"
)

// Scheduler runs the periodic wash-sale violation sweep across all
// advisors with open windows.
type Scheduler struct {
	cron           *cron.Cron
	monitorService MonitorService
	advisorSource  AdvisorSource
	config         *Config
	logger         *zap.Logger
	tracer         trace.Tracer

	// State management
	mu       sync.RWMutex
	running  bool
	lastRun  time.Time
	nextRun  time.Time
	jobStats *JobStatistics
}

// MonitorService evaluates one advisor's open windows.
type MonitorService interface {
	CheckWashSaleViolations(ctx context.Context, advisorID uuid.UUID) ([]*entities.WashSaleTransaction, error)
}

// AdvisorSource enumerates the advisors that still have open windows.
type AdvisorSource interface {
	ListAdvisorsWithOpenWindows(ctx context.Context) ([]uuid.UUID, error)
}

// Config controls the sweep cadence and fan-out.
type Config struct {
	// Cron expression for when to run (default: top of every hour)
	Schedule string `json:"schedule"`

	// Per-advisor evaluation timeout
	AdvisorTimeout time.Duration `json:"advisor_timeout"`

	// Maximum advisors evaluated concurrently
	MaxConcurrentJobs int `json:"max_concurrent_jobs"`

	// Timezone for scheduling
	Timezone string `json:"timezone"`

	// RunOnStart triggers a sweep immediately when the scheduler starts
	RunOnStart bool `json:"run_on_start"`
}

// JobStatistics tracks sweep performance
type JobStatistics struct {
	TotalRuns        int64         `json:"total_runs"`
	SuccessfulRuns   int64         `json:"successful_runs"`
	FailedRuns       int64         `json:"failed_runs"`
	LastRunTime      time.Time     `json:"last_run_time"`
	LastRunDuration  time.Duration `json:"last_run_duration"`
	AdvisorsChecked  int64         `json:"advisors_checked"`
	WindowsEvaluated int64         `json:"windows_evaluated"`
	Errors           []JobError    `json:"recent_errors"`
}

// JobError represents an error that occurred during a sweep
type JobError struct {
	Timestamp time.Time `json:"timestamp"`
	AdvisorID string    `json:"advisor_id,omitempty"`
	Error     string    `json:"error"`
}

// zapCronLogger wraps zap.Logger to implement cron's logger interface
type zapCronLogger struct {
	logger *zap.Logger
}

func (l *zapCronLogger) Printf(format string, args ...interface{}) {
	l.logger.Sugar().Infof(format, args...)
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Schedule:          "0 * * * *", // top of every hour
		AdvisorTimeout:    2 * time.Minute,
		MaxConcurrentJobs: 10,
		Timezone:          "UTC",
		RunOnStart:        false,
	}
}

// NewScheduler creates a new wash-sale monitor scheduler
func NewScheduler(
	monitorService MonitorService,
	advisorSource AdvisorSource,
	config *Config,
	logger *zap.Logger,
) (*Scheduler, error) {
	location, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", config.Timezone, err)
	}

	cronLogger := &zapCronLogger{logger: logger}
	c := cron.New(cron.WithLocation(location), cron.WithLogger(cron.VerbosePrintfLogger(cronLogger)))

	scheduler := &Scheduler{
		cron:           c,
		monitorService: monitorService,
		advisorSource:  advisorSource,
		config:         config,
		logger:         logger,
		tracer:         otel.Tracer("washsale-monitor"),
		running:        false,
		jobStats:       &JobStatistics{Errors: make([]JobError, 0)},
	}

	logger.Info("Wash-sale monitor scheduler created",
		zap.String("schedule", config.Schedule),
		zap.String("timezone", config.Timezone),
	)

	return scheduler, nil
}

// Start begins the scheduled sweeps
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	s.logger.Info("Starting wash-sale monitor", zap.String("schedule", s.config.Schedule))

	_, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.executeSweep()
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()
	s.running = true

	entries := s.cron.Entries()
	if len(entries) > 0 {
		s.nextRun = entries[0].Next
	}

	if s.config.RunOnStart {
		go s.executeSweep()
	}

	s.logger.Info("Wash-sale monitor started",
		zap.Time("next_run", s.nextRun),
	)

	return nil
}

// Stop halts the scheduled sweeps
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return fmt.Errorf("scheduler is not running")
	}

	s.logger.Info("Stopping wash-sale monitor")

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
		s.logger.Info("Wash-sale monitor stopped gracefully")
	case <-time.After(30 * time.Second):
		s.logger.Warn("Wash-sale monitor stop timed out")
	}

	s.running = false
	return nil
}

// executeSweep evaluates every advisor with at least one open window.
func (s *Scheduler) executeSweep() {
	startTime := time.Now()
	ctx := context.Background()

	ctx, span := s.tracer.Start(ctx, "washsale_monitor.execute_sweep", trace.WithAttributes(
		attribute.String("schedule", s.config.Schedule),
	))
	defer span.End()

	s.logger.Info("Starting wash-sale violation sweep")

	s.mu.Lock()
	s.jobStats.TotalRuns++
	s.jobStats.LastRunTime = startTime
	s.lastRun = startTime
	s.mu.Unlock()

	advisors, err := s.advisorSource.ListAdvisorsWithOpenWindows(ctx)
	if err != nil {
		s.logger.Error("Failed to list advisors with open windows", zap.Error(err))
		s.recordJobFailure(err)
		span.RecordError(err)
		return
	}

	if len(advisors) == 0 {
		s.logger.Info("No open wash-sale windows, sweep complete")
		s.recordJobSuccess(time.Since(startTime))
		return
	}

	checked, evaluated, errors := s.checkAdvisors(ctx, advisors)

	s.mu.Lock()
	s.jobStats.AdvisorsChecked += checked
	s.jobStats.WindowsEvaluated += evaluated
	if len(errors) > 0 {
		s.jobStats.Errors = append(s.jobStats.Errors, errors...)
		// Keep only the last 100 errors
		if len(s.jobStats.Errors) > 100 {
			s.jobStats.Errors = s.jobStats.Errors[len(s.jobStats.Errors)-100:]
		}
	}
	s.mu.Unlock()

	duration := time.Since(startTime)
	s.recordJobSuccess(duration)

	s.logger.Info("Wash-sale violation sweep completed",
		zap.Duration("duration", duration),
		zap.Int64("advisors_checked", checked),
		zap.Int64("windows_evaluated", evaluated),
		zap.Int("errors", len(errors)),
	)
}

// checkAdvisors evaluates advisors concurrently under the fan-out limit.
func (s *Scheduler) checkAdvisors(ctx context.Context, advisors []uuid.UUID) (int64, int64, []JobError) {
	semaphore := make(chan struct{}, s.config.MaxConcurrentJobs)
	var wg sync.WaitGroup
	var mu sync.Mutex

	var checked int64
	var evaluated int64
	var errors []JobError

	for _, advisorID := range advisors {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			advisorCtx, cancel := context.WithTimeout(ctx, s.config.AdvisorTimeout)
			defer cancel()

			windows, err := s.monitorService.CheckWashSaleViolations(advisorCtx, id)

			mu.Lock()
			checked++
			evaluated += int64(len(windows))
			if err != nil {
				errors = append(errors, JobError{
					Timestamp: time.Now(),
					AdvisorID: id.String(),
					Error:     err.Error(),
				})
			}
			mu.Unlock()

			if err != nil {
				s.logger.Warn("Advisor violation check failed",
					zap.String("advisor_id", id.String()),
					zap.Error(err),
				)
			}
		}(advisorID)
	}

	wg.Wait()
	return checked, evaluated, errors
}

// recordJobSuccess records a completed sweep
func (s *Scheduler) recordJobSuccess(duration time.Duration) {
	s.mu.Lock()
	s.jobStats.SuccessfulRuns++
	s.jobStats.LastRunDuration = duration
	s.mu.Unlock()
}

// recordJobFailure records a sweep that could not run
func (s *Scheduler) recordJobFailure(err error) {
	s.mu.Lock()
	s.jobStats.FailedRuns++
	s.jobStats.Errors = append(s.jobStats.Errors, JobError{
		Timestamp: time.Now(),
		Error:     err.Error(),
	})
	s.mu.Unlock()
}

// GetStatus returns the current status of the scheduler
func (s *Scheduler) GetStatus() *SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &SchedulerStatus{
		Running:    s.running,
		LastRun:    s.lastRun,
		NextRun:    s.GetNextRun(),
		Schedule:   s.config.Schedule,
		Timezone:   s.config.Timezone,
		Statistics: *s.jobStats,
	}
}

// SchedulerStatus represents the current status of the scheduler
type SchedulerStatus struct {
	Running    bool          `json:"running"`
	LastRun    time.Time     `json:"last_run"`
	NextRun    time.Time     `json:"next_run"`
	Schedule   string        `json:"schedule"`
	Timezone   string        `json:"timezone"`
	Statistics JobStatistics `json:"statistics"`
}

// TriggerManualRun triggers an immediate sweep
func (s *Scheduler) TriggerManualRun() error {
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()

	if !running {
		return fmt.Errorf("scheduler is not running")
	}

	s.logger.Info("Triggering manual wash-sale sweep")
	go s.executeSweep()

	return nil
}

// GetNextRun returns the next scheduled run time. The cron scheduler
// guards its own entry list, so no scheduler lock is needed.
func (s *Scheduler) GetNextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) > 0 {
		return entries[0].Next
	}
	return time.Time{}
}
