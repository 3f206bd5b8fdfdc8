// Package confirmation applies publish outcomes to posts. It is the only
// writer of the published and failed statuses.
package confirmation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/effects"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
)

type Notifier interface {
	NotifyPostPublished(ctx context.Context, postID int64) error
	NotifyPostFailed(ctx context.Context, postID int64, reason string) error
}

type Tracker interface {
	StartTrackingPost(ctx context.Context, postID int64, platform models.Platform, platformPostID string) error
}

type Handler struct {
	posts    repository.PostRepository
	jobs     repository.ScheduleJobRepository
	notifier Notifier
	tracker  Tracker
	effects  effects.Dispatcher
	logger   *zap.Logger
	now      func() time.Time
}

func NewHandler(posts repository.PostRepository, jobs repository.ScheduleJobRepository, notifier Notifier, tracker Tracker, dispatcher effects.Dispatcher, logger *zap.Logger) *Handler {
	return &Handler{
		posts:    posts,
		jobs:     jobs,
		notifier: notifier,
		tracker:  tracker,
		effects:  dispatcher,
		logger:   logger.Named("confirmation"),
		now:      time.Now,
	}
}

// Handle applies c and reports whether it changed the post. A confirmation
// for a post that is already published or failed is ignored.
func (h *Handler) Handle(ctx context.Context, c models.Confirmation) (bool, error) {
	const op = "confirmation.Handle"

	switch c.Status {
	case models.ConfirmationPublished:
		if c.PlatformPostID == "" {
			return false, apperr.Validation(op, "published confirmation for post %d has no platform post id", c.PostID)
		}
	case models.ConfirmationFailed:
	default:
		return false, apperr.Validation(op, "unknown confirmation status %q", c.Status)
	}

	post, err := h.posts.GetByID(ctx, c.PostID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if post == nil {
		return false, apperr.NotFound(op, "post %d not found", c.PostID)
	}

	logger := h.logger.With(zap.Int64("post_id", post.ID), zap.String("platform", string(post.Platform)), zap.String("status", string(c.Status)))

	if post.Status.Terminal() {
		logger.Info("duplicate confirmation ignored", zap.String("current_status", string(post.Status)))
		return false, nil
	}
	if post.Status != models.PostStatusPublishing {
		return false, apperr.Conflict(op, "post %d is %s, not publishing", post.ID, post.Status)
	}

	if c.Status == models.ConfirmationPublished {
		return h.published(ctx, logger, post, c)
	}
	return h.failed(ctx, logger, post, c)
}

func (h *Handler) published(ctx context.Context, logger *zap.Logger, post *models.Post, c models.Confirmation) (bool, error) {
	at := c.Timestamp
	if at.IsZero() {
		at = h.now()
	}

	applied, err := h.posts.MarkPublished(ctx, post.ID, c.PlatformPostID, at.UTC())
	if err != nil {
		return false, err
	}
	if !applied {
		logger.Info("post changed before confirmation applied")
		return false, nil
	}

	h.finishJob(ctx, logger, post, models.ScheduleJobCompleted)

	postID, platform, platformPostID := post.ID, post.Platform, c.PlatformPostID
	h.effects.Go("analytics.start_tracking", func(ctx context.Context) error {
		return h.tracker.StartTrackingPost(ctx, postID, platform, platformPostID)
	})
	h.effects.Go("notify.published", func(ctx context.Context) error {
		return h.notifier.NotifyPostPublished(ctx, postID)
	})

	logger.Info("post published", zap.String("platform_post_id", platformPostID))
	return true, nil
}

func (h *Handler) failed(ctx context.Context, logger *zap.Logger, post *models.Post, c models.Confirmation) (bool, error) {
	reason := c.FailureReason
	if reason == "" {
		reason = "unknown error"
	}

	applied, err := h.posts.MarkFailed(ctx, post.ID, reason)
	if err != nil {
		return false, err
	}
	if !applied {
		logger.Info("post changed before confirmation applied")
		return false, nil
	}

	h.finishJob(ctx, logger, post, models.ScheduleJobFailed)

	postID := post.ID
	h.effects.Go("notify.failed", func(ctx context.Context) error {
		return h.notifier.NotifyPostFailed(ctx, postID, reason)
	})

	logger.Warn("post failed", zap.String("reason", reason))
	return true, nil
}

// finishJob closes the post's schedule job. Confirmations can arrive from the
// platform while the job still waits for a deferred retry.
func (h *Handler) finishJob(ctx context.Context, logger *zap.Logger, post *models.Post, status models.ScheduleJobStatus) {
	if post.JobID == nil {
		return
	}
	if _, err := h.jobs.Finish(ctx, *post.JobID, status); err != nil {
		logger.Error("failed to finish schedule job", zap.String("job_id", *post.JobID), zap.Error(err))
	}
}
