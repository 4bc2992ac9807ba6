// Package jobs provides the background job queue for scoring and
// benchmark runs.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avencora/tenantpulse/internal/metrics"
	"github.com/avencora/tenantpulse/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// JobStore defines the interface for job persistence operations.
type JobStore interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJobByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	UpdateJob(ctx context.Context, job *models.Job) error
	GetNextPendingJob(ctx context.Context) (*models.Job, error)
	ListJobsReadyForRetry(ctx context.Context, limit int) ([]*models.Job, error)
	GetJobQueueSummary(ctx context.Context) (*models.JobQueueSummary, error)
	CleanupOldJobs(ctx context.Context, retentionDays int) (int64, error)
}

// JobHandler processes jobs of a specific type.
type JobHandler interface {
	// Handle processes the job and returns a result map or error.
	Handle(ctx context.Context, job *models.Job) (map[string]interface{}, error)
}

// HandlerFunc adapts a function to the JobHandler interface.
type HandlerFunc func(ctx context.Context, job *models.Job) (map[string]interface{}, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, job *models.Job) (map[string]interface{}, error) {
	return f(ctx, job)
}

// QueueConfig holds configuration for the job queue.
type QueueConfig struct {
	// WorkerCount is the number of concurrent workers.
	WorkerCount int
	// PollInterval is how often to check for new jobs.
	PollInterval time.Duration
	// RetryPollInterval is how often to check for jobs ready to retry.
	RetryPollInterval time.Duration
	// CleanupInterval is how often to clean up old jobs.
	CleanupInterval time.Duration
	// JobRetentionDays is how long to keep completed/dead letter jobs.
	JobRetentionDays int
	// MaxJobDuration is the maximum time a job can run before timing out.
	MaxJobDuration time.Duration
}

// DefaultQueueConfig returns a QueueConfig with sensible defaults.
// Batch scoring runs are sequential by design, so one worker is the
// default; more workers only help when single-tenant jobs pile up.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		WorkerCount:       1,
		PollInterval:      5 * time.Second,
		RetryPollInterval: 30 * time.Second,
		CleanupInterval:   1 * time.Hour,
		JobRetentionDays:  30,
		MaxJobDuration:    1 * time.Hour,
	}
}

// Queue manages background job processing.
type Queue struct {
	store    JobStore
	config   QueueConfig
	handlers map[models.JobType]JobHandler
	instr    *metrics.Instrumentation
	logger   zerolog.Logger

	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
	workerWg sync.WaitGroup
}

// NewQueue creates a new job queue.
func NewQueue(store JobStore, config QueueConfig, instr *metrics.Instrumentation, logger zerolog.Logger) *Queue {
	return &Queue{
		store:    store,
		config:   config,
		handlers: make(map[models.JobType]JobHandler),
		instr:    instr,
		logger:   logger.With().Str("component", "job_queue").Logger(),
		stopCh:   make(chan struct{}),
	}
}

// RegisterHandler registers a handler for a specific job type.
func (q *Queue) RegisterHandler(jobType models.JobType, handler JobHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = handler
	q.logger.Info().Str("job_type", string(jobType)).Msg("registered job handler")
}

// Enqueue adds a new job to the queue.
func (q *Queue) Enqueue(ctx context.Context, job *models.Job) error {
	if err := q.store.CreateJob(ctx, job); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}

	q.logger.Info().
		Str("job_id", job.ID.String()).
		Str("job_type", string(job.JobType)).
		Int("priority", job.Priority).
		Msg("job enqueued")

	return nil
}

// EnqueueScoreTenant creates and enqueues a single-tenant scoring job.
func (q *Queue) EnqueueScoreTenant(ctx context.Context, tenantID uuid.UUID, collect bool) (*models.Job, error) {
	job := models.NewScoreTenantJob(tenantID, collect)
	if err := q.Enqueue(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// EnqueueScoreAllTenants creates and enqueues a full scoring sweep.
func (q *Queue) EnqueueScoreAllTenants(ctx context.Context) (*models.Job, error) {
	job := models.NewScoreAllTenantsJob()
	if err := q.Enqueue(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// EnqueueBenchmarkNightly creates and enqueues a benchmark aggregation run.
func (q *Queue) EnqueueBenchmarkNightly(ctx context.Context) (*models.Job, error) {
	job := models.NewBenchmarkNightlyJob()
	if err := q.Enqueue(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Start begins processing jobs.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return fmt.Errorf("queue already running")
	}
	q.running = true
	q.stopCh = make(chan struct{})
	q.mu.Unlock()

	q.logger.Info().Int("workers", q.config.WorkerCount).Msg("starting job queue")

	for i := 0; i < q.config.WorkerCount; i++ {
		q.workerWg.Add(1)
		go q.worker(ctx, i)
	}

	q.workerWg.Add(1)
	go q.retryProcessor(ctx)

	q.workerWg.Add(1)
	go q.cleanupProcessor(ctx)

	return nil
}

// Stop gracefully stops the queue.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	close(q.stopCh)
	q.mu.Unlock()

	q.logger.Info().Msg("stopping job queue")
	q.workerWg.Wait()
	q.logger.Info().Msg("job queue stopped")
}

// Summary returns current queue statistics.
func (q *Queue) Summary(ctx context.Context) (*models.JobQueueSummary, error) {
	return q.store.GetJobQueueSummary(ctx)
}

// worker processes jobs from the queue.
func (q *Queue) worker(ctx context.Context, workerID int) {
	defer q.workerWg.Done()

	logger := q.logger.With().Int("worker_id", workerID).Logger()
	logger.Debug().Msg("worker started")

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("worker stopping due to context cancellation")
			return
		case <-q.stopCh:
			logger.Debug().Msg("worker stopping due to stop signal")
			return
		case <-ticker.C:
			q.processNextJob(ctx, logger)
		}
	}
}

// processNextJob attempts to claim and process the next pending job.
func (q *Queue) processNextJob(ctx context.Context, logger zerolog.Logger) {
	job, err := q.store.GetNextPendingJob(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to get next pending job")
		return
	}

	if job == nil {
		return // No jobs available
	}

	logger = logger.With().
		Str("job_id", job.ID.String()).
		Str("job_type", string(job.JobType)).
		Logger()

	logger.Info().Msg("processing job")

	q.mu.RLock()
	handler, exists := q.handlers[job.JobType]
	q.mu.RUnlock()

	if !exists {
		logger.Error().Msg("no handler registered for job type")
		job.Fail("no handler registered for job type")
		if err := q.store.UpdateJob(ctx, job); err != nil {
			logger.Error().Err(err).Msg("failed to update job after handler error")
		}
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, q.config.MaxJobDuration)
	defer cancel()

	result, err := handler.Handle(jobCtx, job)
	if err != nil {
		shouldRetry := job.Fail(err.Error())
		if shouldRetry {
			logger.Warn().
				Err(err).
				Int("retry_count", job.RetryCount).
				Time("next_retry_at", *job.NextRetryAt).
				Msg("job failed, will retry")
		} else {
			logger.Error().
				Err(err).
				Int("retry_count", job.RetryCount).
				Msg("job failed, moved to dead letter queue")
		}
	} else {
		job.Complete(result)
		logger.Info().
			Dur("duration", job.Duration()).
			Msg("job completed successfully")
	}

	if q.instr != nil {
		q.instr.JobsProcessed.WithLabelValues(string(job.JobType), string(job.Status)).Inc()
	}

	if err := q.store.UpdateJob(ctx, job); err != nil {
		logger.Error().Err(err).Msg("failed to update job after processing")
	}
}

// retryProcessor checks for jobs ready to retry and requeues them.
func (q *Queue) retryProcessor(ctx context.Context) {
	defer q.workerWg.Done()

	logger := q.logger.With().Str("processor", "retry").Logger()
	logger.Debug().Msg("retry processor started")

	ticker := time.NewTicker(q.config.RetryPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopCh:
			return
		case <-ticker.C:
			q.processRetries(ctx, logger)
		}
	}
}

// processRetries requeues jobs that are ready for retry.
func (q *Queue) processRetries(ctx context.Context, logger zerolog.Logger) {
	jobs, err := q.store.ListJobsReadyForRetry(ctx, 100)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list jobs ready for retry")
		return
	}

	for _, job := range jobs {
		// Reset job to pending status
		job.Status = models.JobStatusPending
		job.StartedAt = nil

		if err := q.store.UpdateJob(ctx, job); err != nil {
			logger.Error().
				Err(err).
				Str("job_id", job.ID.String()).
				Msg("failed to requeue job for retry")
			continue
		}

		logger.Info().
			Str("job_id", job.ID.String()).
			Int("retry_count", job.RetryCount).
			Msg("job requeued for retry")
	}
}

// cleanupProcessor periodically cleans up old completed jobs.
func (q *Queue) cleanupProcessor(ctx context.Context) {
	defer q.workerWg.Done()

	logger := q.logger.With().Str("processor", "cleanup").Logger()
	logger.Debug().Msg("cleanup processor started")

	ticker := time.NewTicker(q.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopCh:
			return
		case <-ticker.C:
			deleted, err := q.store.CleanupOldJobs(ctx, q.config.JobRetentionDays)
			if err != nil {
				logger.Error().Err(err).Msg("failed to cleanup old jobs")
			} else if deleted > 0 {
				logger.Info().Int64("deleted", deleted).Msg("cleaned up old jobs")
			}
		}
	}
}
