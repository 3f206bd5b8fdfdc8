package transfer

import "time"

type ScheduleRequest struct {
	ScheduledAt time.Time `json:"scheduled_at"`
}

type ScheduleResponse struct {
	PostID int64  `json:"post_id"`
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type ConfirmationRequest struct {
	PostID         int64      `json:"post_id"`
	Status         string     `json:"status"`
	PlatformPostID string     `json:"platform_post_id,omitempty"`
	FailureReason  string     `json:"failure_reason,omitempty"`
	Timestamp      *time.Time `json:"timestamp,omitempty"`
}

type ConfirmationResponse struct {
	PostID  int64 `json:"post_id"`
	Applied bool  `json:"applied"`
}

type ErrorResponse struct {
	Error      string `json:"error"`
	Kind       string `json:"kind,omitempty"`
	RetryAfter string `json:"retry_after,omitempty"`
}
