package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/finance-bot/internal/telegram"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed. Failed jobs are not retried.
	JobStatusFailed JobStatus = "failed"
)

var (
	// ErrQueueFull is returned by TryPublish when no buffer slot is free.
	ErrQueueFull = errors.New("queue is full")
	// ErrQueueClosed is returned once the queue has been stopped.
	ErrQueueClosed = errors.New("queue is closed")
)

// UpdateJob is the handling of one inbound chat update.
type UpdateJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// UpdateID is the platform's update_id.
	UpdateID int64 `json:"update_id"`

	// Inbound is the classified update.
	Inbound telegram.Inbound `json:"-"`

	// Kind mirrors Inbound.Kind for listing and filtering.
	Kind string `json:"kind"`

	// ChatID is the chat the update came from.
	ChatID int64 `json:"chat_id"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`
}

// NewUpdateJob wraps a classified update in a pending job.
func NewUpdateJob(in telegram.Inbound) *UpdateJob {
	return &UpdateJob{
		UpdateID: in.UpdateID,
		Inbound:  in,
		Kind:     in.Kind.String(),
		ChatID:   in.ChatID,
		Status:   JobStatusPending,
	}
}

// Publisher enqueues jobs.
type Publisher interface {
	// TryPublish enqueues job without blocking. It returns ErrQueueFull or
	// ErrQueueClosed when the job cannot be accepted.
	TryPublish(ctx context.Context, job *UpdateJob) error
}

// Consumer runs jobs from a queue.
type Consumer interface {
	// Start launches the workers. The handler is called once per job.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops accepting jobs and waits for queued and in-flight jobs
	// until ctx is done.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error marks the job failed.
type JobHandler func(ctx context.Context, job *UpdateJob) error

// JobStore keeps recent job state for inspection.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *UpdateJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*UpdateJob, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*UpdateJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Kind filters jobs by inbound kind (text, audio, callback, unsupported).
	Kind string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
