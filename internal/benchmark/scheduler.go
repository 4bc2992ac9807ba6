package benchmark

import (
	"context"
	"fmt"
	"time"

	"github.com/avencora/tenantpulse/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// JobStore enqueues background jobs.
type JobStore interface {
	CreateJob(ctx context.Context, job *models.Job) error
}

// Scheduler enqueues the recurring nightly jobs: the benchmark
// aggregation and the full scoring sweep. It only creates queue rows;
// the worker pool does the actual work.
type Scheduler struct {
	store  JobStore
	cron   *cron.Cron
	logger zerolog.Logger
}

// NewScheduler creates a Scheduler with the given cron expressions.
func NewScheduler(store JobStore, benchmarkCron, scoringCron string, logger zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		store:  store,
		cron:   cron.New(),
		logger: logger.With().Str("component", "scheduler").Logger(),
	}

	if _, err := s.cron.AddFunc(benchmarkCron, func() {
		s.enqueue(models.NewBenchmarkNightlyJob())
	}); err != nil {
		return nil, fmt.Errorf("register benchmark schedule %q: %w", benchmarkCron, err)
	}

	if _, err := s.cron.AddFunc(scoringCron, func() {
		s.enqueue(models.NewScoreAllTenantsJob())
	}); err != nil {
		return nil, fmt.Errorf("register scoring schedule %q: %w", scoringCron, err)
	}

	return s, nil
}

// Start begins firing schedules in a background goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Msg("scheduler started")
}

// Stop halts the schedules and waits for running enqueues to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) enqueue(job *models.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.store.CreateJob(ctx, job); err != nil {
		s.logger.Error().Err(err).Str("job_type", string(job.JobType)).Msg("enqueue scheduled job")
		return
	}
	s.logger.Info().
		Str("job_type", string(job.JobType)).
		Str("job_id", job.ID.String()).
		Msg("scheduled job enqueued")
}
