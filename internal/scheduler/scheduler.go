// Package scheduler is the entry point for moving posts into and out of the
// publishing queue.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/effects"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/ratelimit"
	"github.com/maheshrc27/postflow/internal/repository"
)

const (
	DefaultMinLeadTime = 5 * time.Minute
	previewLength      = 100
)

type ClientRegistry interface {
	Get(p models.Platform) (platform.Client, error)
}

// RateLimiter answers the schedule-time check without consuming a slot.
type RateLimiter interface {
	Peek(ctx context.Context, p models.Platform, accountID int64, action ratelimit.Action) error
}

type Confirmer interface {
	Handle(ctx context.Context, c models.Confirmation) (bool, error)
}

type Auditor interface {
	LogScheduleEvent(ctx context.Context, post *models.Post, jobID string) error
	LogEvent(ctx context.Context, post *models.Post, event models.AuditEvent) error
}

type QueueStatusItem struct {
	PostID         int64             `json:"post_id"`
	Platform       models.Platform   `json:"platform"`
	JobID          string            `json:"job_id"`
	ScheduledAt    *time.Time        `json:"scheduled_at,omitempty"`
	PostStatus     models.PostStatus `json:"post_status"`
	Status         queue.JobState    `json:"status"`
	Attempts       int               `json:"attempts"`
	NextProcessAt  *time.Time        `json:"next_process_at,omitempty"`
	ContentPreview string            `json:"content_preview"`
}

type Scheduler struct {
	posts     repository.PostRepository
	jobs      repository.ScheduleJobRepository
	queue     queue.Queue
	registry  ClientRegistry
	limiter   RateLimiter
	confirmer Confirmer
	audit     Auditor
	effects   effects.Dispatcher
	logger    *zap.Logger

	minLeadTime time.Duration
	maxAttempts int
	now         func() time.Time
}

type Option func(*Scheduler)

func WithMinLeadTime(d time.Duration) Option { return func(s *Scheduler) { s.minLeadTime = d } }
func WithMaxAttempts(n int) Option           { return func(s *Scheduler) { s.maxAttempts = n } }
func WithClock(now func() time.Time) Option  { return func(s *Scheduler) { s.now = now } }

type Deps struct {
	Posts     repository.PostRepository
	Jobs      repository.ScheduleJobRepository
	Queue     queue.Queue
	Registry  ClientRegistry
	Limiter   RateLimiter
	Confirmer Confirmer
	Audit     Auditor
	Effects   effects.Dispatcher
}

func New(deps Deps, logger *zap.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		posts:       deps.Posts,
		jobs:        deps.Jobs,
		queue:       deps.Queue,
		registry:    deps.Registry,
		limiter:     deps.Limiter,
		confirmer:   deps.Confirmer,
		audit:       deps.Audit,
		effects:     deps.Effects,
		logger:      logger.Named("scheduler"),
		minLeadTime: DefaultMinLeadTime,
		maxAttempts: queue.DefaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SchedulePost queues post for publishing at scheduledAt and returns the job id.
func (s *Scheduler) SchedulePost(ctx context.Context, postID int64, scheduledAt time.Time) (string, error) {
	const op = "scheduler.SchedulePost"

	post, err := s.load(ctx, op, postID)
	if err != nil {
		return "", err
	}

	now := s.now()
	if earliest := now.Add(s.minLeadTime); scheduledAt.Before(earliest) {
		return "", apperr.Validation(op, "scheduled time must be at least %s in the future", s.minLeadTime)
	}
	if !models.CanTransition(post.Status, models.PostStatusScheduled) {
		return "", apperr.Conflict(op, "post %d is %s and cannot be scheduled", post.ID, post.Status)
	}

	return s.enqueue(ctx, op, post, scheduledAt, scheduledAt.Sub(now), models.SourcesFor(models.PostStatusScheduled), models.PostStatusScheduled)
}

// PublishImmediately queues a draft post with no delay.
func (s *Scheduler) PublishImmediately(ctx context.Context, postID int64) (string, error) {
	const op = "scheduler.PublishImmediately"

	post, err := s.load(ctx, op, postID)
	if err != nil {
		return "", err
	}
	// a scheduled post reaches publishing only through its worker
	if post.Status != models.PostStatusDraft {
		return "", apperr.Conflict(op, "post %d is %s and cannot be published now", post.ID, post.Status)
	}

	return s.enqueue(ctx, op, post, s.now(), 0, []models.PostStatus{models.PostStatusDraft}, models.PostStatusPublishing)
}

func (s *Scheduler) enqueue(ctx context.Context, op string, post *models.Post, at time.Time, delay time.Duration, from []models.PostStatus, to models.PostStatus) (string, error) {
	logger := s.logger.With(zap.Int64("post_id", post.ID), zap.String("platform", string(post.Platform)))

	if err := s.checkContent(op, post); err != nil {
		return "", err
	}
	if err := s.limiter.Peek(ctx, post.Platform, post.SocialAccountID, ratelimit.ActionPublish); err != nil {
		if apperr.KindOf(err) == apperr.KindRateLimited {
			logger.Info("account at publish limit", zap.Duration("next_slot_in", apperr.RetryAfterOf(err)))
		}
		return "", err
	}

	job := queue.NewJob(post.ID, post.Platform)
	opts := queue.EnqueueOptions{Delay: delay, MaxAttempts: s.maxAttempts}
	if err := s.clearWaiting(ctx, op, logger, job); err != nil {
		return "", err
	}

	// the post and its schedule job are written before the job becomes
	// visible, so a worker never dequeues it ahead of the status change
	if err := s.jobs.Upsert(ctx, &models.ScheduleJob{JobID: job.ID, PostID: post.ID, Platform: post.Platform, Status: models.ScheduleJobPending}); err != nil {
		return "", fmt.Errorf("%s: save schedule job: %w", op, err)
	}

	ok, err := s.posts.MarkQueued(ctx, post.ID, from, to, job.ID, at.UTC())
	if err != nil || !ok {
		s.cancelJob(ctx, logger, job)
		if err != nil {
			return "", fmt.Errorf("%s: update post: %w", op, err)
		}
		return "", apperr.Conflict(op, "post %d changed while it was being queued", post.ID)
	}

	if _, err := s.queue.Enqueue(ctx, job, opts); err != nil {
		s.rollback(ctx, logger, job, to, post.Status)
		if errors.Is(err, queue.ErrDuplicateJob) {
			return "", apperr.Conflict(op, "job %s was queued concurrently", job.ID)
		}
		return "", fmt.Errorf("%s: enqueue: %w", op, err)
	}

	post.Status = to
	post.JobID = &job.ID
	post.ScheduledAt = &at
	s.effects.Go("audit.schedule", func(ctx context.Context) error {
		return s.audit.LogScheduleEvent(ctx, post, job.ID)
	})

	logger.Info("post queued", zap.String("job_id", job.ID), zap.String("status", string(to)), zap.Duration("delay", delay))
	return job.ID, nil
}

// clearWaiting makes room for a new job under job.ID. A waiting job is
// replaced; a running one blocks the request.
func (s *Scheduler) clearWaiting(ctx context.Context, op string, logger *zap.Logger, job queue.Job) error {
	existing, err := s.queue.Get(ctx, job.Platform, job.ID)
	switch {
	case errors.Is(err, queue.ErrJobNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("%s: inspect job: %w", op, err)
	case existing.State == queue.JobStateActive:
		return apperr.Conflict(op, "job %s is already running", job.ID)
	case existing.State.Finished():
		return nil
	}

	logger.Info("replacing queued job", zap.String("job_id", job.ID))
	err = s.queue.Remove(ctx, job.Platform, job.ID)
	switch {
	case errors.Is(err, queue.ErrJobActive):
		return apperr.Conflict(op, "job %s is already running", job.ID)
	case err != nil && !errors.Is(err, queue.ErrJobNotFound):
		return fmt.Errorf("%s: replace job: %w", op, err)
	}
	return nil
}

func (s *Scheduler) cancelJob(ctx context.Context, logger *zap.Logger, job queue.Job) {
	if _, err := s.jobs.Finish(ctx, job.ID, models.ScheduleJobCancelled); err != nil {
		logger.Error("failed to cancel schedule job", zap.String("job_id", job.ID), zap.Error(err))
	}
}

// rollback returns a post whose job could not be queued to its previous status.
func (s *Scheduler) rollback(ctx context.Context, logger *zap.Logger, job queue.Job, to, previous models.PostStatus) {
	if _, err := s.posts.Transition(ctx, job.PostID, []models.PostStatus{to}, previous); err != nil {
		logger.Error("failed to restore post status", zap.String("status", string(previous)), zap.Error(err))
	}
	s.cancelJob(ctx, logger, job)
}

func (s *Scheduler) checkContent(op string, post *models.Post) error {
	client, err := s.registry.Get(post.Platform)
	if err != nil {
		return err
	}
	limits := client.Limits()

	if limits.RequiresMedia && len(post.MediaFileIDs) == 0 {
		return apperr.Validation(op, "%s posts require at least one media file", post.Platform)
	}
	if limits.MaxMediaCount > 0 && len(post.MediaFileIDs) > limits.MaxMediaCount {
		return apperr.Validation(op, "%s posts allow at most %d media files, got %d", post.Platform, limits.MaxMediaCount, len(post.MediaFileIDs))
	}
	if n := platform.Length(post.Content); limits.MaxContentLength > 0 && n > limits.MaxContentLength {
		return apperr.Validation(op, "content is %d characters, %s allows %d", n, post.Platform, limits.MaxContentLength)
	}
	return nil
}

// CancelScheduledPost pulls a scheduled post out of the queue and returns it to draft.
func (s *Scheduler) CancelScheduledPost(ctx context.Context, postID int64) error {
	const op = "scheduler.CancelScheduledPost"

	post, err := s.load(ctx, op, postID)
	if err != nil {
		return err
	}
	if post.JobID == nil {
		return apperr.NotFound(op, "post %d has no scheduled job", postID)
	}
	logger := s.logger.With(zap.Int64("post_id", post.ID), zap.String("job_id", *post.JobID))

	if post.Status != models.PostStatusScheduled {
		return apperr.Conflict(op, "post %d is %s and can no longer be cancelled", post.ID, post.Status)
	}

	err = s.queue.Remove(ctx, post.Platform, *post.JobID)
	switch {
	case errors.Is(err, queue.ErrJobActive):
		// the worker's scheduled->publishing swap decides who wins
		logger.Info("job already dequeued, relying on status check")
	case errors.Is(err, queue.ErrJobNotFound):
		logger.Info("job already gone from queue")
	case err != nil:
		return fmt.Errorf("%s: remove job: %w", op, err)
	}

	ok, err := s.posts.ResetToDraft(ctx, post.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return apperr.Conflict(op, "post %d started publishing before it could be cancelled", post.ID)
	}

	if _, err := s.jobs.Finish(ctx, *post.JobID, models.ScheduleJobCancelled); err != nil {
		logger.Error("failed to cancel schedule job", zap.Error(err))
	}

	s.effects.Go("audit.cancel", func(ctx context.Context) error {
		return s.audit.LogEvent(ctx, post, models.AuditPostCancelled)
	})
	logger.Info("scheduled post cancelled")
	return nil
}

// SubmitForApproval moves a draft into the approval queue.
func (s *Scheduler) SubmitForApproval(ctx context.Context, postID int64) error {
	return s.advance(ctx, "scheduler.SubmitForApproval", postID, models.PostStatusPendingApproval, models.AuditPostSubmitted)
}

func (s *Scheduler) Approve(ctx context.Context, postID int64) error {
	return s.advance(ctx, "scheduler.Approve", postID, models.PostStatusApproved, models.AuditPostApproved)
}

func (s *Scheduler) advance(ctx context.Context, op string, postID int64, to models.PostStatus, event models.AuditEvent) error {
	post, err := s.load(ctx, op, postID)
	if err != nil {
		return err
	}
	if !models.CanTransition(post.Status, to) {
		return apperr.Conflict(op, "post %d is %s and cannot become %s", post.ID, post.Status, to)
	}

	ok, err := s.posts.Transition(ctx, post.ID, []models.PostStatus{post.Status}, to)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return apperr.Conflict(op, "post %d changed concurrently", post.ID)
	}

	post.Status = to
	s.effects.Go("audit."+string(event), func(ctx context.Context) error {
		return s.audit.LogEvent(ctx, post, event)
	})
	return nil
}

// GetQueueStatus lists an organization's queued posts with the live state of
// their jobs.
func (s *Scheduler) GetQueueStatus(ctx context.Context, organizationID int64) ([]QueueStatusItem, error) {
	posts, err := s.posts.ListQueued(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("scheduler.GetQueueStatus: %w", err)
	}

	items := make([]QueueStatusItem, 0, len(posts))
	for _, post := range posts {
		if post.JobID == nil {
			continue
		}
		item := QueueStatusItem{
			PostID:         post.ID,
			Platform:       post.Platform,
			JobID:          *post.JobID,
			ScheduledAt:    post.ScheduledAt,
			PostStatus:     post.Status,
			Status:         queue.JobStateMissing,
			ContentPreview: preview(post.Content),
		}

		info, err := s.queue.Get(ctx, post.Platform, *post.JobID)
		switch {
		case errors.Is(err, queue.ErrJobNotFound):
		case err != nil:
			return nil, fmt.Errorf("scheduler.GetQueueStatus: job %s: %w", *post.JobID, err)
		default:
			item.Status = info.State
			item.Attempts = info.Retried
			if !info.NextProcessAt.IsZero() {
				next := info.NextProcessAt
				item.NextProcessAt = &next
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// HandlePlatformConfirmation applies a publish outcome reported by a platform.
func (s *Scheduler) HandlePlatformConfirmation(ctx context.Context, c models.Confirmation) (bool, error) {
	return s.confirmer.Handle(ctx, c)
}

func (s *Scheduler) load(ctx context.Context, op string, postID int64) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if post == nil {
		return nil, apperr.NotFound(op, "post %d not found", postID)
	}
	return post, nil
}

func preview(content string) string {
	p, _ := platform.Truncate(content, previewLength)
	return p
}
