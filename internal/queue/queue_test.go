package queue

import (
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/postflow/internal/models"
)

func TestNewJob(t *testing.T) {
	job := NewJob(42, models.PlatformX)
	assert.Equal(t, "post_42_x", job.ID)
	assert.Equal(t, "publish:x", Name(job.Platform))
}

func TestDecodePayload(t *testing.T) {
	data, err := EncodePayload(NewJob(7, models.PlatformLinkedIn))
	require.NoError(t, err)

	job, err := DecodePayload("", data)
	require.NoError(t, err)
	assert.Equal(t, NewJob(7, models.PlatformLinkedIn), job)

	_, err = DecodePayload("post_1_x", []byte(`{"post_id":1}`))
	assert.Error(t, err)
	_, err = DecodePayload("post_1_x", []byte(`not json`))
	assert.Error(t, err)
}

func TestToJobInfo(t *testing.T) {
	payload, err := EncodePayload(NewJob(3, models.PlatformFacebook))
	require.NoError(t, err)
	next := time.Now().Add(time.Hour)

	info := toJobInfo(&asynq.TaskInfo{
		ID:            "post_3_facebook",
		Payload:       payload,
		State:         asynq.TaskStateScheduled,
		Retried:       1,
		MaxRetry:      2,
		NextProcessAt: next,
	})
	assert.Equal(t, int64(3), info.PostID)
	assert.Equal(t, models.PlatformFacebook, info.Platform)
	assert.Equal(t, JobStateScheduled, info.State)
	assert.Equal(t, 1, info.Retried)
	assert.Equal(t, next, info.NextProcessAt)
}

func TestJobStateFinished(t *testing.T) {
	for _, s := range []JobState{JobStateArchived, JobStateCompleted, JobStateMissing} {
		assert.True(t, s.Finished(), s)
	}
	for _, s := range []JobState{JobStatePending, JobStateScheduled, JobStateActive, JobStateRetry} {
		assert.False(t, s.Finished(), s)
	}
}

func TestEnqueueOptionsDefaults(t *testing.T) {
	assert.Equal(t, 3, EnqueueOptions{}.attempts())
	assert.Equal(t, 5, EnqueueOptions{MaxAttempts: 5}.attempts())
}

func TestMaxRetryKeepsDeferralHeadroom(t *testing.T) {
	opts := EnqueueOptions{MaxAttempts: 3}
	assert.Equal(t, 3, opts.MaxRetry())

	assert.False(t, LastAttempt(0, opts.MaxRetry()))
	assert.False(t, LastAttempt(1, opts.MaxRetry()))
	assert.True(t, LastAttempt(2, opts.MaxRetry()))
	assert.True(t, LastAttempt(0, EnqueueOptions{MaxAttempts: 1}.MaxRetry()))
}
