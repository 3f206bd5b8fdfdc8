package models

import (
	"time"

	"github.com/lib/pq"
)

type PublishAttempt struct {
	ID             int64          `db:"id" json:"id"`
	PostID         int64          `db:"post_id" json:"post_id"`
	JobID          string         `db:"job_id" json:"job_id"`
	Platform       Platform       `db:"platform" json:"platform"`
	Attempt        int            `db:"attempt" json:"attempt"`
	MediaIDs       pq.StringArray `db:"media_ids" json:"media_ids"`
	PlatformPostID *string        `db:"platform_post_id" json:"platform_post_id,omitempty"`
	ErrorMessage   string         `db:"error_message" json:"error_message"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}
