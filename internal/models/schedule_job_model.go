package models

import (
	"fmt"
	"time"
)

type ScheduleJobStatus string

const (
	ScheduleJobPending   ScheduleJobStatus = "PENDING"
	ScheduleJobCompleted ScheduleJobStatus = "COMPLETED"
	ScheduleJobCancelled ScheduleJobStatus = "CANCELLED"
	ScheduleJobFailed    ScheduleJobStatus = "FAILED"
)

// ScheduleJob mirrors an in-flight queue task.
type ScheduleJob struct {
	JobID     string            `db:"job_id" json:"job_id"`
	PostID    int64             `db:"post_id" json:"post_id"`
	Platform  Platform          `db:"platform" json:"platform"`
	Status    ScheduleJobStatus `db:"status" json:"status"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt time.Time         `db:"updated_at" json:"updated_at"`
}

// JobID derives the queue identity of a (post, platform) publish job.
func JobID(postID int64, platform Platform) string {
	return fmt.Sprintf("post_%d_%s", postID, platform)
}
