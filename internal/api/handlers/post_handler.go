package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/scheduler"
	"github.com/maheshrc27/postflow/internal/transfer"
)

type PostScheduler interface {
	SchedulePost(ctx context.Context, postID int64, scheduledAt time.Time) (string, error)
	PublishImmediately(ctx context.Context, postID int64) (string, error)
	CancelScheduledPost(ctx context.Context, postID int64) error
	SubmitForApproval(ctx context.Context, postID int64) error
	Approve(ctx context.Context, postID int64) error
	GetQueueStatus(ctx context.Context, organizationID int64) ([]scheduler.QueueStatusItem, error)
	HandlePlatformConfirmation(ctx context.Context, c models.Confirmation) (bool, error)
}

type PostHandler struct {
	s      PostScheduler
	posts  repository.PostRepository
	logger *zap.Logger
}

func NewPostHandler(s PostScheduler, posts repository.PostRepository, logger *zap.Logger) *PostHandler {
	return &PostHandler{s: s, posts: posts, logger: logger.Named("api")}
}

// ownedPost resolves the :id param to a post of the caller's organization.
func (h *PostHandler) ownedPost(c *fiber.Ctx) (*models.Post, error) {
	return h.owned(c, 0)
}

func (h *PostHandler) owned(c *fiber.Ctx, postID int64) (*models.Post, error) {
	if postID == 0 {
		id, err := postIDParam(c)
		if err != nil {
			return nil, err
		}
		postID = id
	}

	post, err := h.posts.GetByID(c.Context(), postID)
	if err != nil {
		return nil, err
	}
	if post == nil || post.OrganizationID != GetOrganizationID(c) {
		return nil, apperr.NotFound("api", "post %d not found", postID)
	}
	return post, nil
}

func (h *PostHandler) SchedulePost(c *fiber.Ctx) error {
	post, err := h.ownedPost(c)
	if err != nil {
		return WriteError(c, err)
	}

	var req transfer.ScheduleRequest
	if err := c.BodyParser(&req); err != nil || req.ScheduledAt.IsZero() {
		return WriteError(c, fiber.NewError(fiber.StatusBadRequest, "scheduled_at is required"))
	}

	jobID, err := h.s.SchedulePost(c.Context(), post.ID, req.ScheduledAt)
	if err != nil {
		return WriteError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(transfer.ScheduleResponse{
		PostID: post.ID,
		JobID:  jobID,
		Status: string(models.PostStatusScheduled),
	})
}

func (h *PostHandler) PublishPost(c *fiber.Ctx) error {
	post, err := h.ownedPost(c)
	if err != nil {
		return WriteError(c, err)
	}

	jobID, err := h.s.PublishImmediately(c.Context(), post.ID)
	if err != nil {
		return WriteError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(transfer.ScheduleResponse{
		PostID: post.ID,
		JobID:  jobID,
		Status: string(models.PostStatusPublishing),
	})
}

func (h *PostHandler) CancelPost(c *fiber.Ctx) error {
	return h.transition(c, h.s.CancelScheduledPost, models.PostStatusDraft)
}

func (h *PostHandler) SubmitPost(c *fiber.Ctx) error {
	return h.transition(c, h.s.SubmitForApproval, models.PostStatusPendingApproval)
}

func (h *PostHandler) ApprovePost(c *fiber.Ctx) error {
	return h.transition(c, h.s.Approve, models.PostStatusApproved)
}

func (h *PostHandler) transition(c *fiber.Ctx, fn func(context.Context, int64) error, to models.PostStatus) error {
	post, err := h.ownedPost(c)
	if err != nil {
		return WriteError(c, err)
	}
	if err := fn(c.Context(), post.ID); err != nil {
		return WriteError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"post_id": post.ID,
		"status":  to,
	})
}

func (h *PostHandler) QueueStatus(c *fiber.Ctx) error {
	items, err := h.s.GetQueueStatus(c.Context(), GetOrganizationID(c))
	if err != nil {
		h.logger.Error("queue status", zap.Error(err))
		return WriteError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"items": items,
	})
}

func (h *PostHandler) Confirm(c *fiber.Ctx) error {
	var req transfer.ConfirmationRequest
	if err := c.BodyParser(&req); err != nil || req.PostID == 0 {
		return WriteError(c, fiber.NewError(fiber.StatusBadRequest, "invalid confirmation body"))
	}
	if _, err := h.owned(c, req.PostID); err != nil {
		return WriteError(c, err)
	}

	conf := models.Confirmation{
		PostID:         req.PostID,
		Status:         models.ConfirmationStatus(req.Status),
		PlatformPostID: req.PlatformPostID,
		FailureReason:  req.FailureReason,
	}
	if req.Timestamp != nil {
		conf.Timestamp = *req.Timestamp
	}

	applied, err := h.s.HandlePlatformConfirmation(c.Context(), conf)
	if err != nil {
		return WriteError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(transfer.ConfirmationResponse{PostID: req.PostID, Applied: applied})
}
