package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/finance-bot/internal/jobs"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/dvloznov/finance-bot/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config sizes the queue.
type Config struct {
	// Size is the number of jobs that can wait for a worker.
	Size int
	// Workers is the number of concurrent workers.
	Workers int
	// JobTimeout bounds a single job. Zero means no limit.
	JobTimeout time.Duration
}

// Queue is a bounded in-memory job queue with a fixed worker pool.
// It is safe for concurrent use and suitable for single-instance
// deployments; jobs are lost on restart.
type Queue struct {
	cfg     Config
	jobChan chan *jobs.UpdateJob
	wg      sync.WaitGroup
	mu      sync.RWMutex
	store   jobs.JobStore
	log     zerolog.Logger
	closed  bool
	started bool
}

// NewQueue creates a queue. store may be nil.
func NewQueue(cfg Config, store jobs.JobStore, log zerolog.Logger) *Queue {
	if cfg.Size <= 0 {
		cfg.Size = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Queue{
		cfg:     cfg,
		jobChan: make(chan *jobs.UpdateJob, cfg.Size),
		store:   store,
		log:     log,
	}
}

// TryPublish implements the Publisher interface. It never blocks.
func (q *Queue) TryPublish(ctx context.Context, job *jobs.UpdateJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return jobs.ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	// Saved before the send; workers own job once it is in the channel.
	q.save(ctx, job)

	select {
	case q.jobChan <- job:
		return nil
	default:
		job.Status = jobs.JobStatusFailed
		job.Error = jobs.ErrQueueFull.Error()
		q.save(ctx, job)
		return jobs.ErrQueueFull
	}
}

// Start implements the Consumer interface. Jobs run under ctx, each with
// its own timeout and a logger carrying the job fields.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return jobs.ErrQueueClosed
	}
	if q.started {
		return fmt.Errorf("queue already started")
	}
	q.started = true

	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	return nil
}

// worker processes jobs until the channel is closed and drained.
func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for job := range q.jobChan {
		q.processJob(ctx, job, handler)
	}
}

// processJob executes a single job. Failures are recorded, not retried.
func (q *Queue) processJob(ctx context.Context, job *jobs.UpdateJob, handler jobs.JobHandler) {
	log := q.log.With().
		Str("job_id", job.JobID).
		Int64("update_id", job.UpdateID).
		Int64("chat_id", job.ChatID).
		Str("kind", job.Kind).
		Logger()

	jobCtx := logger.WithContext(ctx, log)
	if q.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, q.cfg.JobTimeout)
		defer cancel()
	}

	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	q.save(ctx, job)

	err := q.run(jobCtx, job, handler)

	completedAt := time.Now()
	job.CompletedAt = &completedAt
	metrics.JobDuration.WithLabelValues(job.Kind).Observe(completedAt.Sub(now).Seconds())

	if err != nil {
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
		metrics.Errors.WithLabelValues("job").Inc()
		log.Error().Err(err).Dur("duration", completedAt.Sub(now)).Msg("Job failed")
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		log.Debug().Dur("duration", completedAt.Sub(now)).Msg("Job completed")
	}

	q.save(ctx, job)
}

// run calls handler, turning a panic into an error so one bad update
// cannot take a worker down.
func (q *Queue) run(ctx context.Context, job *jobs.UpdateJob, handler jobs.JobHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler(ctx, job)
}

func (q *Queue) save(ctx context.Context, job *jobs.UpdateJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		q.log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to save job state")
	}
}

// Stop implements the Consumer interface. Queued jobs are still handled;
// Stop returns ctx.Err() if they do not finish in time.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ensure Queue implements both Publisher and Consumer interfaces.
var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
