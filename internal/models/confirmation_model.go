package models

import "time"

type ConfirmationStatus string

const (
	ConfirmationPublished ConfirmationStatus = "published"
	ConfirmationFailed    ConfirmationStatus = "failed"
)

// Confirmation is the outcome report of a publish attempt.
type Confirmation struct {
	PostID         int64              `json:"post_id"`
	Status         ConfirmationStatus `json:"status"`
	PlatformPostID string             `json:"platform_post_id,omitempty"`
	FailureReason  string             `json:"failure_reason,omitempty"`
	Timestamp      time.Time          `json:"timestamp"`
}
