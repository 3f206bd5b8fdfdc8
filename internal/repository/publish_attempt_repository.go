package repository

import (
	"context"
	"fmt"

	"github.com/maheshrc27/postflow/internal/models"
)

type PublishAttemptRepository interface {
	Create(ctx context.Context, pa *models.PublishAttempt) (int64, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.PublishAttempt, error)
}

type publishAttemptRepository struct {
	db Connection
}

func NewPublishAttemptRepository(db Connection) PublishAttemptRepository {
	return &publishAttemptRepository{db: db}
}

func (r *publishAttemptRepository) Create(ctx context.Context, pa *models.PublishAttempt) (int64, error) {
	query := `
		INSERT INTO publish_attempts (post_id, job_id, platform, attempt, media_ids, platform_post_id, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	var id int64
	err := r.db.GetContext(ctx, &id, query,
		pa.PostID, pa.JobID, pa.Platform, pa.Attempt, pa.MediaIDs, pa.PlatformPostID, pa.ErrorMessage)
	if err != nil {
		return 0, fmt.Errorf("insert publish attempt: %w", err)
	}
	return id, nil
}

func (r *publishAttemptRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PublishAttempt, error) {
	query := `
		SELECT id, post_id, job_id, platform, attempt, media_ids, platform_post_id, error_message, created_at
		FROM publish_attempts
		WHERE post_id = $1
		ORDER BY id
	`
	var attempts []*models.PublishAttempt
	if err := r.db.SelectContext(ctx, &attempts, query, postID); err != nil {
		return nil, fmt.Errorf("list publish attempts: %w", err)
	}
	return attempts, nil
}
