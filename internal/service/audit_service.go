package service

import (
	"context"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
)

type AuditService interface {
	// LogScheduleEvent records that post was handed to the queue as jobID.
	LogScheduleEvent(ctx context.Context, post *models.Post, jobID string) error
	LogEvent(ctx context.Context, post *models.Post, event models.AuditEvent) error
}

type auditService struct {
	repo repository.AuditRepository
}

func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

func (s *auditService) LogScheduleEvent(ctx context.Context, post *models.Post, jobID string) error {
	event := models.AuditPostScheduled
	if post.Status == models.PostStatusPublishing {
		event = models.AuditPostPublishQueued
	}
	return s.write(ctx, post, event, &jobID)
}

func (s *auditService) LogEvent(ctx context.Context, post *models.Post, event models.AuditEvent) error {
	return s.write(ctx, post, event, post.JobID)
}

func (s *auditService) write(ctx context.Context, post *models.Post, event models.AuditEvent, jobID *string) error {
	id, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("generate audit id: %w", err)
	}

	return s.repo.Create(ctx, &models.AuditEntry{
		ID:             id,
		OrganizationID: post.OrganizationID,
		PostID:         post.ID,
		JobID:          jobID,
		Event:          event,
		ScheduledAt:    post.ScheduledAt,
		CreatedAt:      time.Now().UTC(),
	})
}
