package service

import (
	"context"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
)

type AnalyticsService interface {
	StartTrackingPost(ctx context.Context, postID int64, platform models.Platform, platformPostID string) error
}

type analyticsService struct {
	repo repository.AnalyticsRepository
}

func NewAnalyticsService(repo repository.AnalyticsRepository) AnalyticsService {
	return &analyticsService{repo: repo}
}

func (s *analyticsService) StartTrackingPost(ctx context.Context, postID int64, platform models.Platform, platformPostID string) error {
	return s.repo.StartTracking(ctx, &models.PostTracking{
		PostID:         postID,
		Platform:       platform,
		PlatformPostID: platformPostID,
		StartedAt:      time.Now().UTC(),
	})
}
