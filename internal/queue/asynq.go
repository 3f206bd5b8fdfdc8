package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/maheshrc27/postflow/internal/models"
)

type AsynqQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	timeout   time.Duration
	logger    *zap.Logger
}

func NewAsynqQueue(redis asynq.RedisConnOpt, logger *zap.Logger) *AsynqQueue {
	return &AsynqQueue{
		client:    asynq.NewClient(redis),
		inspector: asynq.NewInspector(redis),
		timeout:   DefaultJobTimeout,
		logger:    logger.Named("queue"),
	}
}

func (q *AsynqQueue) Enqueue(ctx context.Context, job Job, opts EnqueueOptions) (*JobInfo, error) {
	info, err := q.enqueue(ctx, job, opts)
	if !errors.Is(err, asynq.ErrTaskIDConflict) {
		return info, err
	}

	existing, gerr := q.Get(ctx, job.Platform, job.ID)
	if gerr != nil {
		return nil, fmt.Errorf("inspect conflicting job %s: %w", job.ID, gerr)
	}
	if !existing.State.Finished() {
		return existing, ErrDuplicateJob
	}

	// a finished job still holds the id until retention expires
	if err := q.inspector.DeleteTask(Name(job.Platform), job.ID); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
		return nil, fmt.Errorf("delete finished job %s: %w", job.ID, err)
	}
	info, err = q.enqueue(ctx, job, opts)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil, ErrDuplicateJob
	}
	return info, err
}

func (q *AsynqQueue) enqueue(ctx context.Context, job Job, opts EnqueueOptions) (*JobInfo, error) {
	payload, err := EncodePayload(job)
	if err != nil {
		return nil, err
	}

	task := asynq.NewTask(TaskTypePublishPost, payload)
	info, err := q.client.EnqueueContext(ctx, task,
		asynq.TaskID(job.ID),
		asynq.Queue(Name(job.Platform)),
		asynq.MaxRetry(opts.MaxRetry()),
		asynq.ProcessIn(opts.Delay),
		asynq.Timeout(q.timeout+StallGrace),
		asynq.Retention(DefaultRetention),
	)
	if err != nil {
		return nil, err
	}

	q.logger.Info("job enqueued",
		zap.String("job_id", job.ID),
		zap.Int64("post_id", job.PostID),
		zap.String("platform", string(job.Platform)),
		zap.Duration("delay", opts.Delay))
	return toJobInfo(info), nil
}

func (q *AsynqQueue) Get(_ context.Context, platform models.Platform, jobID string) (*JobInfo, error) {
	info, err := q.inspector.GetTaskInfo(Name(platform), jobID)
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return toJobInfo(info), nil
}

func (q *AsynqQueue) Remove(ctx context.Context, platform models.Platform, jobID string) error {
	info, err := q.Get(ctx, platform, jobID)
	if err != nil {
		return err
	}
	if info.State == JobStateActive {
		return ErrJobActive
	}

	err = q.inspector.DeleteTask(Name(platform), jobID)
	switch {
	case errors.Is(err, asynq.ErrTaskNotFound), errors.Is(err, asynq.ErrQueueNotFound):
		return ErrJobNotFound
	case err != nil:
		// the only other refusal is a task that went active after the lookup
		if latest, gerr := q.Get(ctx, platform, jobID); gerr == nil && latest.State == JobStateActive {
			return ErrJobActive
		}
		return err
	}

	q.logger.Info("job removed", zap.String("job_id", jobID), zap.String("platform", string(platform)))
	return nil
}

func (q *AsynqQueue) Close() error {
	if err := q.inspector.Close(); err != nil {
		q.logger.Warn("failed to close inspector", zap.Error(err))
	}
	return q.client.Close()
}

func toJobInfo(info *asynq.TaskInfo) *JobInfo {
	ji := &JobInfo{
		State:         stateOf(info.State),
		Retried:       info.Retried,
		MaxRetry:      info.MaxRetry,
		NextProcessAt: info.NextProcessAt,
		LastErr:       info.LastErr,
	}
	if job, err := DecodePayload(info.ID, info.Payload); err == nil {
		ji.Job = job
	} else {
		ji.Job = Job{ID: info.ID}
	}
	return ji
}

func stateOf(s asynq.TaskState) JobState {
	switch s {
	case asynq.TaskStateActive:
		return JobStateActive
	case asynq.TaskStatePending:
		return JobStatePending
	case asynq.TaskStateScheduled:
		return JobStateScheduled
	case asynq.TaskStateRetry:
		return JobStateRetry
	case asynq.TaskStateArchived:
		return JobStateArchived
	case asynq.TaskStateCompleted:
		return JobStateCompleted
	default:
		return JobState(s.String())
	}
}

var _ Queue = (*AsynqQueue)(nil)
