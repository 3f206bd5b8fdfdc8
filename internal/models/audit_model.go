package models

import "time"

type AuditEvent string

const (
	AuditPostScheduled     AuditEvent = "post_scheduled"
	AuditPostPublishQueued AuditEvent = "post_publish_queued"
	AuditPostCancelled     AuditEvent = "post_cancelled"
	AuditPostSubmitted     AuditEvent = "post_submitted"
	AuditPostApproved      AuditEvent = "post_approved"
)

type AuditEntry struct {
	ID             string     `db:"id" json:"id"`
	OrganizationID int64      `db:"organization_id" json:"organization_id"`
	PostID         int64      `db:"post_id" json:"post_id"`
	JobID          *string    `db:"job_id" json:"job_id,omitempty"`
	Event          AuditEvent `db:"event" json:"event"`
	ScheduledAt    *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// PostTracking marks a published platform post for analytics collection.
type PostTracking struct {
	PostID         int64     `db:"post_id" json:"post_id"`
	Platform       Platform  `db:"platform" json:"platform"`
	PlatformPostID string    `db:"platform_post_id" json:"platform_post_id"`
	StartedAt      time.Time `db:"started_at" json:"started_at"`
}
