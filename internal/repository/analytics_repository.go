package repository

import (
	"context"
	"fmt"

	"github.com/maheshrc27/postflow/internal/models"
)

type AnalyticsRepository interface {
	// StartTracking is a no-op for a post that is already tracked.
	StartTracking(ctx context.Context, t *models.PostTracking) error
}

type analyticsRepository struct {
	db Connection
}

func NewAnalyticsRepository(db Connection) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

func (r *analyticsRepository) StartTracking(ctx context.Context, t *models.PostTracking) error {
	query := `
		INSERT INTO post_tracking (post_id, platform, platform_post_id, started_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (post_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, t.PostID, t.Platform, t.PlatformPostID, t.StartedAt); err != nil {
		return fmt.Errorf("start post tracking: %w", err)
	}
	return nil
}
