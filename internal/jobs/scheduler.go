package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tracker/internal/metrics"
)

// Job is a unit of background work run on an interval.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduled pairs a job with its interval.
type Scheduled struct {
	Job      Job
	Interval time.Duration
}

// Scheduler is responsible for running background jobs
type Scheduler struct {
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	jobs      []Scheduled
	isRunning bool
	wg        sync.WaitGroup

	// Guards busy, which keeps a job from overlapping with itself
	processingMutex sync.Mutex
	busy            map[string]bool
}

func NewScheduler(logger *slog.Logger, jobs ...Scheduled) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		jobs:   jobs,
		busy:   make(map[string]bool, len(jobs)),
	}
}

// executeJobSafely runs a job unless a previous run of the same job is still
// executing. Different jobs never block each other.
func (s *Scheduler) executeJobSafely(job Job) (err error) {
	name := job.Name()

	s.processingMutex.Lock()
	if s.busy[name] {
		s.logger.Debug("Skipping job execution - previous run still in progress", slog.String("job", name))
		s.processingMutex.Unlock()
		return nil
	}
	s.busy[name] = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", name),
				slog.Any("panic", r))
			err = fmt.Errorf("job %s panicked: %v", name, r)
		}
		metrics.JobRun(name, err)

		s.processingMutex.Lock()
		delete(s.busy, name)
		s.processingMutex.Unlock()
	}()

	if err = job.Run(s.ctx); err != nil {
		s.logger.Error("Error executing job", slog.String("job", name), slog.Any("error", err))
	}
	return err
}

// Start runs every job once and then on its interval until Stop.
func (s *Scheduler) Start() error {
	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}

	for _, scheduled := range s.jobs {
		if scheduled.Interval <= 0 {
			return fmt.Errorf("job %s needs a positive interval", scheduled.Job.Name())
		}
	}

	s.logger.Info("Starting background jobs...", slog.Int("jobs", len(s.jobs)))
	s.isRunning = true

	for _, scheduled := range s.jobs {
		s.wg.Add(1)
		go s.loop(scheduled)
	}

	return nil
}

func (s *Scheduler) loop(scheduled Scheduled) {
	defer s.wg.Done()

	job := scheduled.Job
	s.logger.Info("Starting job", slog.String("job", job.Name()), slog.Duration("interval", scheduled.Interval))

	ticker := time.NewTicker(scheduled.Interval)
	defer ticker.Stop()

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
}

// Stop halts all background jobs and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background jobs...")
	s.cancel()
	s.wg.Wait()
	s.isRunning = false
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	return s.isRunning
}

// RunOnce runs the named job immediately, for manual triggering.
func (s *Scheduler) RunOnce(name string) error {
	for _, scheduled := range s.jobs {
		if scheduled.Job.Name() == name {
			return s.executeJobSafely(scheduled.Job)
		}
	}
	return fmt.Errorf("unknown job: %s", name)
}
