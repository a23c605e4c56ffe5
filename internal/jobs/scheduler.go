package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/karloscodes/cartridge"

	"agentlinker/internal/config"
	"agentlinker/internal/metrics"
	"agentlinker/internal/timeframe"
)

// Job is a unit of periodic background work.
type Job interface {
	Name() string
	Interval() time.Duration
	Run() error
}

// Scheduler runs background jobs on their own tickers. At most one job executes at a time.
type Scheduler struct {
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	enabled   bool
	isRunning bool
	jobs      []Job

	processingMutex sync.Mutex
	isProcessing    bool

	tickers []*time.Ticker
	wg      sync.WaitGroup
}

// NewScheduler registers the retention and subscription expiry jobs.
func NewScheduler(dbManager cartridge.DBManager, logger *slog.Logger) (*Scheduler, error) {
	cfg := config.GetConfig()
	clock := &timeframe.DefaultTimeProvider{}

	return NewSchedulerWithJobs(logger,
		NewEventRetentionJob(dbManager, logger, cfg.EventsRetentionDays, clock),
		NewSubscriptionExpiryJob(dbManager, logger, time.Duration(cfg.JobIntervalSeconds)*time.Second, clock),
	), nil
}

func NewSchedulerWithJobs(logger *slog.Logger, jobs ...Job) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		enabled: true,
		jobs:    jobs,
	}
}

// executeJobSafely runs a job only if no other job is currently executing.
func (s *Scheduler) executeJobSafely(job Job) {
	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", job.Name()))
		s.processingMutex.Unlock()
		return
	}
	s.isProcessing = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", job.Name()),
				slog.Any("panic", r))
			metrics.JobRuns.WithLabelValues(job.Name(), "panic").Inc()
		}

		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	err := job.Run()
	metrics.ObserveJob(job.Name(), err)
	if err != nil {
		s.logger.Error("Error executing job", slog.String("job", job.Name()), slog.Any("error", err))
	}
}

// Start begins all background jobs.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Start() error {
	if !s.enabled {
		s.logger.Info("Background jobs are disabled.")
		return nil
	}

	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}

	s.logger.Info("Starting background jobs...", slog.Int("jobs", len(s.jobs)))
	s.isRunning = true

	for _, job := range s.jobs {
		s.startJob(job)
	}

	return nil
}

func (s *Scheduler) startJob(job Job) {
	interval := job.Interval()
	s.logger.Info("Starting job", slog.String("job", job.Name()), slog.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	s.tickers = append(s.tickers, ticker)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.executeJobSafely(job)

		for {
			select {
			case <-ticker.C:
				s.executeJobSafely(job)
			case <-s.ctx.Done():
				s.logger.Info("Job stopped", slog.String("job", job.Name()))
				return
			}
		}
	}()
}

// Stop halts all background jobs and waits for running ones to return.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background jobs...")
	s.enabled = false

	for _, ticker := range s.tickers {
		ticker.Stop()
	}

	s.cancel()
	s.wg.Wait()
	s.isRunning = false
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	return s.isRunning
}

// RunAll executes every job once, in order, outside the tickers.
func (s *Scheduler) RunAll() {
	for _, job := range s.jobs {
		s.executeJobSafely(job)
	}
}
