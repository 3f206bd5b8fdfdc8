package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maheshrc27/postflow/internal/models"
)

func newTestAsynqQueue(t *testing.T) (*AsynqQueue, asynq.RedisConnOpt) {
	t.Helper()
	mr := miniredis.RunT(t)
	opt := asynq.RedisClientOpt{Addr: mr.Addr()}
	q := NewAsynqQueue(opt, zap.NewNop())
	t.Cleanup(func() { _ = q.Close() })
	return q, opt
}

func TestAsynqQueueEnqueueDuplicate(t *testing.T) {
	q, _ := newTestAsynqQueue(t)
	ctx := context.Background()
	job := NewJob(1, models.PlatformX)
	opts := EnqueueOptions{Delay: time.Hour, MaxAttempts: 3}

	info, err := q.Enqueue(ctx, job, opts)
	require.NoError(t, err)
	assert.Equal(t, JobStateScheduled, info.State)
	assert.Equal(t, opts.MaxRetry(), info.MaxRetry)
	assert.Equal(t, job, info.Job)

	existing, err := q.Enqueue(ctx, job, EnqueueOptions{})
	assert.ErrorIs(t, err, ErrDuplicateJob)
	require.NotNil(t, existing)
	assert.Equal(t, JobStateScheduled, existing.State)
	assert.Equal(t, job.ID, existing.Job.ID)
}

func TestAsynqQueueRemove(t *testing.T) {
	q, _ := newTestAsynqQueue(t)
	ctx := context.Background()
	job := NewJob(2, models.PlatformX)

	_, err := q.Enqueue(ctx, job, EnqueueOptions{Delay: time.Hour})
	require.NoError(t, err)

	require.NoError(t, q.Remove(ctx, models.PlatformX, job.ID))
	_, err = q.Get(ctx, models.PlatformX, job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.ErrorIs(t, q.Remove(ctx, models.PlatformX, job.ID), ErrJobNotFound)
	assert.ErrorIs(t, q.Remove(ctx, models.PlatformLinkedIn, "post_9_linkedin"), ErrJobNotFound)
}

func TestAsynqQueueReplacesArchivedJob(t *testing.T) {
	q, _ := newTestAsynqQueue(t)
	ctx := context.Background()
	job := NewJob(3, models.PlatformX)

	_, err := q.Enqueue(ctx, job, EnqueueOptions{Delay: time.Hour})
	require.NoError(t, err)
	require.NoError(t, q.inspector.ArchiveTask(Name(models.PlatformX), job.ID))

	info, err := q.Get(ctx, models.PlatformX, job.ID)
	require.NoError(t, err)
	require.Equal(t, JobStateArchived, info.State)

	info, err = q.Enqueue(ctx, job, EnqueueOptions{})
	require.NoError(t, err)
	assert.Equal(t, JobStatePending, info.State)
	assert.Zero(t, info.Retried)
}

func TestAsynqQueueRemoveActiveJob(t *testing.T) {
	q, opt := newTestAsynqQueue(t)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{Name(models.PlatformX): 1},
		LogLevel:    asynq.FatalLevel,
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypePublishPost, func(ctx context.Context, _ *asynq.Task) error {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	require.NoError(t, srv.Start(mux))
	t.Cleanup(srv.Shutdown)
	t.Cleanup(func() { close(release) })

	job := NewJob(4, models.PlatformX)
	_, err := q.Enqueue(ctx, job, EnqueueOptions{})
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(10 * time.Second):
		t.Fatal("job was never picked up")
	}

	info, err := q.Get(ctx, models.PlatformX, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateActive, info.State)
	assert.ErrorIs(t, q.Remove(ctx, models.PlatformX, job.ID), ErrJobActive)

	_, err = q.Enqueue(ctx, job, EnqueueOptions{})
	assert.ErrorIs(t, err, ErrDuplicateJob)
}
