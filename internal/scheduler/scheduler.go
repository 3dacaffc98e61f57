package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/andresuchdata/autopo-forecast/pkg/logger"
)

// Scheduler runs jobs on cron schedules. Scheduled runs of the same job
// never overlap; RunNow is not gated.
type Scheduler struct {
	cron    *cron.Cron
	log     zerolog.Logger
	jobs    map[string]Job
	history map[string]*JobHistory
	mu      sync.RWMutex

	baseCtx context.Context
	cancel  context.CancelFunc

	maxRetries int
	retryDelay time.Duration
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRetry retries a failed run up to n more times, waiting delay between attempts.
func WithRetry(n int, delay time.Duration) Option {
	return func(s *Scheduler) {
		if n < 0 {
			n = 0
		}
		s.maxRetries = n
		s.retryDelay = delay
	}
}

// New creates a new scheduler
func New(opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:        logger.Component("scheduler"),
		jobs:       make(map[string]Job),
		history:    make(map[string]*JobHistory),
		baseCtx:    ctx,
		cancel:     cancel,
		maxRetries: 2,
		retryDelay: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddJob adds a job to the scheduler
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already exists", name)
	}

	if _, err := s.cron.AddFunc(job.Schedule(), func() { s.runJob(job) }); err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.jobs[name] = job
	s.history[name] = &JobHistory{}

	s.log.Info().Str("job", name).Str("schedule", job.Schedule()).Msg("job added to scheduler")
	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.log.Info().Int("jobs", len(s.jobs)).Msg("starting scheduler")
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.log.Info().Msg("stopping scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunNow runs a job immediately and waits for it.
func (s *Scheduler) RunNow(name string) (JobResult, error) {
	s.mu.RLock()
	job, exists := s.jobs[name]
	s.mu.RUnlock()

	if !exists {
		return JobResult{}, fmt.Errorf("job %s not found", name)
	}
	return s.runJob(job), nil
}

// History returns a copy of the recorded results for a job.
func (s *Scheduler) History(name string) ([]JobResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, exists := s.history[name]
	if !exists {
		return nil, fmt.Errorf("job %s not found", name)
	}
	out := make([]JobResult, len(h.Results))
	copy(out, h.Results)
	return out, nil
}

func (s *Scheduler) runJob(job Job) JobResult {
	name := job.Name()
	start := time.Now()
	s.log.Info().Str("job", name).Msg("job started")

	var (
		lastErr  error
		attempts int
	)
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		attempts++
		lastErr = job.Run(s.baseCtx)
		if lastErr == nil || s.baseCtx.Err() != nil {
			break
		}
		s.log.Warn().Err(lastErr).Str("job", name).Int("attempt", attempts).Msg("job execution failed")

		if attempt < s.maxRetries {
			select {
			case <-time.After(s.retryDelay):
			case <-s.baseCtx.Done():
			}
		}
	}

	end := time.Now()
	result := JobResult{
		JobName:   name,
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
		Attempts:  attempts,
		Success:   lastErr == nil,
	}
	if lastErr != nil {
		result.Error = lastErr.Error()
	}

	s.mu.Lock()
	if h, ok := s.history[name]; ok {
		h.AddResult(result)
	}
	s.mu.Unlock()

	if result.Success {
		s.log.Info().Str("job", name).Dur("duration", result.Duration).Msg("job completed")
	} else {
		s.log.Error().Err(lastErr).Str("job", name).Dur("duration", result.Duration).Msg("job failed after all retries")
	}
	return result
}
