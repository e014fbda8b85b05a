package inmemory

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/finance-bot/internal/jobs"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/dvloznov/finance-bot/internal/telegram"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textJob(updateID int64) *jobs.UpdateJob {
	return jobs.NewUpdateJob(telegram.Inbound{Kind: telegram.KindText, UpdateID: updateID, ChatID: 42, Text: "coffee 2"})
}

func TestQueue_RunsPublishedJobs(t *testing.T) {
	store := NewStore(0)
	q := NewQueue(Config{Size: 10, Workers: 2}, store, zerolog.New(io.Discard))

	var mu sync.Mutex
	seen := map[int64]bool{}
	require.NoError(t, q.Start(context.Background(), func(ctx context.Context, job *jobs.UpdateJob) error {
		mu.Lock()
		seen[job.Inbound.UpdateID] = true
		mu.Unlock()
		return nil
	}))

	var ids []string
	for i := int64(1); i <= 5; i++ {
		job := textJob(i)
		require.NoError(t, q.TryPublish(context.Background(), job))
		require.NotEmpty(t, job.JobID)
		ids = append(ids, job.JobID)
	}

	require.NoError(t, q.Stop(context.Background()))

	assert.Len(t, seen, 5)
	for _, id := range ids {
		got, err := store.GetJob(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, jobs.JobStatusCompleted, got.Status)
		assert.NotNil(t, got.CompletedAt)
	}
}

func TestQueue_TryPublishNeverBlocks(t *testing.T) {
	q := NewQueue(Config{Size: 1, Workers: 1}, nil, zerolog.New(io.Discard))

	require.NoError(t, q.TryPublish(context.Background(), textJob(1)))
	err := q.TryPublish(context.Background(), textJob(2))
	assert.ErrorIs(t, err, jobs.ErrQueueFull)
}

func TestQueue_ClosedQueueRejects(t *testing.T) {
	q := NewQueue(Config{}, nil, zerolog.New(io.Discard))
	require.NoError(t, q.Stop(context.Background()))

	assert.ErrorIs(t, q.TryPublish(context.Background(), textJob(1)), jobs.ErrQueueClosed)
	assert.ErrorIs(t, q.Start(context.Background(), nil), jobs.ErrQueueClosed)
	assert.NoError(t, q.Stop(context.Background()), "second stop is a no-op")
}

func TestQueue_FailedJobIsNotRetried(t *testing.T) {
	store := NewStore(0)
	q := NewQueue(Config{Workers: 1}, store, zerolog.New(io.Discard))

	var calls atomic.Int32
	require.NoError(t, q.Start(context.Background(), func(ctx context.Context, job *jobs.UpdateJob) error {
		calls.Add(1)
		return errors.New("sink unavailable")
	}))

	job := textJob(1)
	require.NoError(t, q.TryPublish(context.Background(), job))
	require.NoError(t, q.Stop(context.Background()))

	assert.Equal(t, int32(1), calls.Load())
	got, err := store.GetJob(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Equal(t, "sink unavailable", got.Error)
}

func TestQueue_PanicBecomesFailure(t *testing.T) {
	store := NewStore(0)
	q := NewQueue(Config{Workers: 1}, store, zerolog.New(io.Discard))
	require.NoError(t, q.Start(context.Background(), func(ctx context.Context, job *jobs.UpdateJob) error {
		panic("boom")
	}))

	job := textJob(1)
	require.NoError(t, q.TryPublish(context.Background(), job))
	require.NoError(t, q.Stop(context.Background()))

	got, err := store.GetJob(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Contains(t, got.Error, "boom")
}

func TestQueue_JobTimeoutAndLogger(t *testing.T) {
	q := NewQueue(Config{Workers: 1, JobTimeout: 20 * time.Millisecond}, nil, zerolog.New(io.Discard))

	done := make(chan error, 1)
	var hasLogger bool
	require.NoError(t, q.Start(context.Background(), func(ctx context.Context, job *jobs.UpdateJob) error {
		_, hasLogger = ctx.Value(logger.LoggerKey).(zerolog.Logger)
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	}))

	require.NoError(t, q.TryPublish(context.Background(), textJob(1)))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not cancelled by its timeout")
	}
	require.NoError(t, q.Stop(context.Background()))
	assert.True(t, hasLogger)
}

func TestQueue_StopRespectsShutdownDeadline(t *testing.T) {
	q := NewQueue(Config{Workers: 1}, nil, zerolog.New(io.Discard))
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, q.Start(context.Background(), func(ctx context.Context, job *jobs.UpdateJob) error {
		close(started)
		<-release
		return nil
	}))
	require.NoError(t, q.TryPublish(context.Background(), textJob(1)))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Stop(ctx), context.DeadlineExceeded)
	close(release)
}
