package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/maheshrc27/postflow/internal/models"
)

// PostRepository writes are compare-and-set on status: every update names the
// statuses it may leave from and reports whether a row changed.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	ListQueued(ctx context.Context, organizationID int64) ([]*models.Post, error)
	ListStalePublishing(ctx context.Context, updatedBefore time.Time) ([]*models.Post, error)
	Transition(ctx context.Context, id int64, from []models.PostStatus, to models.PostStatus) (bool, error)
	MarkQueued(ctx context.Context, id int64, from []models.PostStatus, to models.PostStatus, jobID string, scheduledAt time.Time) (bool, error)
	ResetToDraft(ctx context.Context, id int64) (bool, error)
	MarkPublished(ctx context.Context, id int64, platformPostID string, publishedAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id int64, reason string) (bool, error)
}

type postRepository struct {
	db Connection
}

func NewPostRepository(db Connection) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, organization_id, social_account_id, platform, content, media_file_ids, status,
	scheduled_at, job_id, platform_post_id, failure_reason, published_at, created_at, updated_at`

func statusArray(statuses []models.PostStatus) pq.StringArray {
	arr := make(pq.StringArray, len(statuses))
	for i, s := range statuses {
		arr[i] = string(s)
	}
	return arr
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (organization_id, social_account_id, platform, content, media_file_ids, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	status := post.Status
	if status == "" {
		status = models.PostStatusDraft
	}

	var id int64
	err := r.db.GetContext(ctx, &id, query,
		post.OrganizationID, post.SocialAccountID, post.Platform, post.Content, post.MediaFileIDs, status)
	if err != nil {
		return 0, fmt.Errorf("insert post: %w", err)
	}
	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	var post models.Post
	err := r.db.GetContext(ctx, &post, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get post %d: %w", id, err)
	}
	return &post, nil
}

func (r *postRepository) ListQueued(ctx context.Context, organizationID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE organization_id = $1 AND status = ANY($2) AND job_id IS NOT NULL
		ORDER BY scheduled_at NULLS LAST, id`

	var posts []*models.Post
	err := r.db.SelectContext(ctx, &posts, query, organizationID,
		statusArray([]models.PostStatus{models.PostStatusScheduled, models.PostStatusPublishing}))
	if err != nil {
		return nil, fmt.Errorf("list queued posts: %w", err)
	}
	return posts, nil
}

func (r *postRepository) ListStalePublishing(ctx context.Context, updatedBefore time.Time) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE status = $1 AND updated_at < $2 ORDER BY id`

	var posts []*models.Post
	if err := r.db.SelectContext(ctx, &posts, query, models.PostStatusPublishing, updatedBefore); err != nil {
		return nil, fmt.Errorf("list stale publishing posts: %w", err)
	}
	return posts, nil
}

func (r *postRepository) Transition(ctx context.Context, id int64, from []models.PostStatus, to models.PostStatus) (bool, error) {
	query := `UPDATE posts SET status = $1, updated_at = $2 WHERE id = $3 AND status = ANY($4)`
	return r.exec(ctx, "transition post", query, to, time.Now(), id, statusArray(from))
}

func (r *postRepository) MarkQueued(ctx context.Context, id int64, from []models.PostStatus, to models.PostStatus, jobID string, scheduledAt time.Time) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1,
			job_id = $2,
			scheduled_at = $3,
			failure_reason = NULL,
			updated_at = $4
		WHERE id = $5 AND status = ANY($6)
	`
	return r.exec(ctx, "mark post queued", query, to, jobID, scheduledAt, time.Now(), id, statusArray(from))
}

func (r *postRepository) ResetToDraft(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1,
			job_id = NULL,
			scheduled_at = NULL,
			updated_at = $2
		WHERE id = $3 AND status = $4
	`
	return r.exec(ctx, "reset post to draft", query, models.PostStatusDraft, time.Now(), id, models.PostStatusScheduled)
}

func (r *postRepository) MarkPublished(ctx context.Context, id int64, platformPostID string, publishedAt time.Time) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1,
			platform_post_id = $2,
			published_at = $3,
			failure_reason = NULL,
			updated_at = $4
		WHERE id = $5 AND status = ANY($6)
	`
	return r.exec(ctx, "mark post published", query, models.PostStatusPublished, platformPostID, publishedAt, time.Now(), id,
		statusArray(models.SourcesFor(models.PostStatusPublished)))
}

func (r *postRepository) MarkFailed(ctx context.Context, id int64, reason string) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1,
			failure_reason = $2,
			updated_at = $3
		WHERE id = $4 AND status = ANY($5)
	`
	return r.exec(ctx, "mark post failed", query, models.PostStatusFailed, reason, time.Now(), id,
		statusArray(models.SourcesFor(models.PostStatusFailed)))
}

func (r *postRepository) exec(ctx context.Context, op, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}
