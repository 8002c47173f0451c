// Package maintenance runs periodic housekeeping against a set of live
// msock connections on a cron schedule: logging connection/channel counts,
// or anything else a host wants to do at a fixed cadence without wiring
// its own ticker.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Result records the outcome of one maintenance run.
type Result struct {
	Status          string // "completed", "failed", "skipped"
	DurationSeconds float64
	Timestamp       time.Time
}

// Job is a single scheduled maintenance task: a cron expression plus the
// function to run. RunFunc receives a context canceled when Scheduler.Stop
// is called while the job is mid-run.
type Job struct {
	Name     string
	Schedule string
	RunFunc  func(ctx context.Context) error

	mu         sync.Mutex
	running    bool
	LastResult *Result
}

// Scheduler drives zero or more Jobs on their own cron schedules. Each job
// has a run guard: if an invocation is still in flight when the next tick
// fires, that tick is skipped rather than queued.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	jobs   []*Job
	cancel context.CancelFunc
	ctx    context.Context
}

// NewScheduler builds a Scheduler with one cron entry per job.
func NewScheduler(logger *slog.Logger, jobs []*Job) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		logger: logger,
		jobs:   jobs,
		ctx:    ctx,
		cancel: cancel,
	}

	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	for _, job := range jobs {
		jobRef := job
		if _, err := c.AddFunc(job.Schedule, func() {
			s.execute(jobRef)
		}); err != nil {
			return nil, fmt.Errorf("adding maintenance job %q: %w", job.Name, err)
		}
		logger.Info("registered maintenance job", "job", job.Name, "schedule", job.Schedule)
	}

	s.cron = c
	return s, nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.logger.Info("maintenance scheduler started", "jobs", len(s.jobs))
	s.cron.Start()
}

// Stop cancels the shared context and waits up to ctx's deadline for the
// cron scheduler to finish any in-flight run.
func (s *Scheduler) Stop(ctx context.Context) {
	s.logger.Info("maintenance scheduler stopping")
	s.cancel()
	stopCtx := s.cron.Stop()

	select {
	case <-stopCtx.Done():
		s.logger.Info("maintenance scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.Warn("maintenance scheduler stop timed out")
	}
}

// Jobs returns the registered jobs, so a caller can inspect LastResult.
func (s *Scheduler) Jobs() []*Job { return s.jobs }

func (s *Scheduler) execute(job *Job) {
	jobLogger := s.logger.With("job", job.Name)

	job.mu.Lock()
	if job.running {
		job.mu.Unlock()
		jobLogger.Warn("maintenance job already running, skipping this tick")
		job.LastResult = &Result{Status: "skipped", Timestamp: time.Now()}
		return
	}
	job.running = true
	job.mu.Unlock()

	defer func() {
		job.mu.Lock()
		job.running = false
		job.mu.Unlock()
	}()

	start := time.Now()
	err := job.RunFunc(s.ctx)
	duration := time.Since(start)

	if err != nil {
		jobLogger.Error("maintenance job failed", "error", err, "duration", duration)
		job.LastResult = &Result{Status: "failed", DurationSeconds: duration.Seconds(), Timestamp: time.Now()}
		return
	}

	jobLogger.Debug("maintenance job completed", "duration", duration)
	job.LastResult = &Result{Status: "completed", DurationSeconds: duration.Seconds(), Timestamp: time.Now()}
}
