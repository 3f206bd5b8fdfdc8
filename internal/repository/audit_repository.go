package repository

import (
	"context"
	"fmt"

	"github.com/maheshrc27/postflow/internal/models"
)

type AuditRepository interface {
	Create(ctx context.Context, entry *models.AuditEntry) error
	ListByPostID(ctx context.Context, postID int64) ([]*models.AuditEntry, error)
}

type auditRepository struct {
	db Connection
}

func NewAuditRepository(db Connection) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, entry *models.AuditEntry) error {
	query := `
		INSERT INTO audit_log (id, organization_id, post_id, job_id, event, scheduled_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.OrganizationID, entry.PostID, entry.JobID, entry.Event, entry.ScheduledAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *auditRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.AuditEntry, error) {
	query := `
		SELECT id, organization_id, post_id, job_id, event, scheduled_at, created_at
		FROM audit_log
		WHERE post_id = $1
		ORDER BY created_at
	`
	var entries []*models.AuditEntry
	if err := r.db.SelectContext(ctx, &entries, query, postID); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}
