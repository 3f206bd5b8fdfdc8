// Package queue is the durable, delay-capable job store behind publishing.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
)

const TaskTypePublishPost = "publish:post"

const (
	DefaultMaxAttempts = 3
	// DefaultJobTimeout is how long a dequeued job may run before it counts as stalled.
	DefaultJobTimeout = 5 * time.Minute
	// StallGrace lets a worker report a stalled job before the queue itself
	// cancels it.
	StallGrace = 30 * time.Second
	// DefaultRetention keeps finished jobs visible to queue status queries.
	DefaultRetention = 24 * time.Hour
	// DeferralHeadroom is the retry slot kept above the failure budget. The
	// queue archives a job whose retry count reached its maximum whatever the
	// error, so a rate-limit deferral on the last attempt needs one spare
	// slot. Workers enforce the failure budget themselves.
	DeferralHeadroom = 1
)

var (
	ErrDuplicateJob = errors.New("job already queued")
	ErrJobNotFound  = errors.New("job not found")
	ErrJobActive    = errors.New("job is already being processed")
)

// Job identifies one (post, platform) publish attempt.
type Job struct {
	ID       string
	PostID   int64
	Platform models.Platform
	// Attempt is 1-based and only set while a worker runs the job.
	Attempt int
}

func NewJob(postID int64, platform models.Platform) Job {
	return Job{ID: models.JobID(postID, platform), PostID: postID, Platform: platform}
}

type Payload struct {
	PostID   int64           `json:"post_id"`
	Platform models.Platform `json:"platform"`
}

func EncodePayload(job Job) ([]byte, error) {
	return json.Marshal(Payload{PostID: job.PostID, Platform: job.Platform})
}

func DecodePayload(id string, data []byte) (Job, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Job{}, fmt.Errorf("decode job payload: %w", err)
	}
	if p.PostID == 0 || p.Platform == "" {
		return Job{}, fmt.Errorf("decode job payload: missing post id or platform")
	}
	if id == "" {
		id = models.JobID(p.PostID, p.Platform)
	}
	return Job{ID: id, PostID: p.PostID, Platform: p.Platform}, nil
}

type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateScheduled JobState = "scheduled"
	JobStateActive    JobState = "active"
	JobStateRetry     JobState = "retry"
	JobStateArchived  JobState = "archived"
	JobStateCompleted JobState = "completed"
	JobStateMissing   JobState = "missing"
)

// Finished reports whether the job will never run again.
func (s JobState) Finished() bool {
	return s == JobStateArchived || s == JobStateCompleted || s == JobStateMissing
}

type JobInfo struct {
	Job
	State         JobState
	Retried       int
	MaxRetry      int
	NextProcessAt time.Time
	LastErr       string
}

type EnqueueOptions struct {
	Delay       time.Duration
	MaxAttempts int
}

func (o EnqueueOptions) attempts() int {
	if o.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return o.MaxAttempts
}

// MaxRetry is the queue-level retry limit for o, including DeferralHeadroom.
func (o EnqueueOptions) MaxRetry() int {
	return o.attempts() - 1 + DeferralHeadroom
}

// LastAttempt reports whether a job retried times under a queue-level limit
// of maxRetry has used up its failure budget.
func LastAttempt(retried, maxRetry int) bool {
	return retried >= maxRetry-DeferralHeadroom
}

type Queue interface {
	// Enqueue adds job to its platform's partition. It returns ErrDuplicateJob
	// together with the live job when one with the same id is still pending.
	Enqueue(ctx context.Context, job Job, opts EnqueueOptions) (*JobInfo, error)
	Get(ctx context.Context, platform models.Platform, jobID string) (*JobInfo, error)
	// Remove deletes a job that has not been dequeued yet. It returns
	// ErrJobActive once a worker holds the job.
	Remove(ctx context.Context, platform models.Platform, jobID string) error
	Close() error
}

// Name is the queue partition a platform's jobs live in.
func Name(p models.Platform) string {
	return "publish:" + string(p)
}
