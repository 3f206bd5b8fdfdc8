package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/postflow/internal/models"
)

// openTestDB connects to POSTFLOW_TEST_POSTGRES_URI or skips the test.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	uri := os.Getenv("POSTFLOW_TEST_POSTGRES_URI")
	if uri == "" {
		t.Skip("POSTFLOW_TEST_POSTGRES_URI not set")
	}

	ctx := context.Background()
	db, err := Open(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(ctx, db))
	return db
}

func seedPost(t *testing.T, db *sqlx.DB, status models.PostStatus) *models.Post {
	t.Helper()
	ctx := context.Background()

	accountID, err := NewSocialAccountRepository(db).Create(ctx, &models.SocialAccount{
		OrganizationID: 1,
		Platform:       models.PlatformX,
		AccountID:      "ext",
		AccessToken:    "enc",
		TokenExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	posts := NewPostRepository(db)
	id, err := posts.Create(ctx, &models.Post{
		OrganizationID:  1,
		SocialAccountID: accountID,
		Platform:        models.PlatformX,
		Content:         "hello",
		MediaFileIDs:    []int64{4, 2},
		Status:          status,
	})
	require.NoError(t, err)

	post, err := posts.GetByID(ctx, id)
	require.NoError(t, err)
	return post
}

func TestPostLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	posts := NewPostRepository(db)

	post := seedPost(t, db, models.PostStatusApproved)
	assert.Equal(t, []int64{4, 2}, []int64(post.MediaFileIDs))

	at := time.Now().Add(time.Hour).Truncate(time.Second)
	jobID := models.JobID(post.ID, post.Platform)
	ok, err := posts.MarkQueued(ctx, post.ID, []models.PostStatus{models.PostStatusApproved}, models.PostStatusScheduled, jobID, at)
	require.NoError(t, err)
	assert.True(t, ok)

	// the same CAS a second time finds no approved row
	ok, err = posts.MarkQueued(ctx, post.ID, []models.PostStatus{models.PostStatusApproved}, models.PostStatusScheduled, jobID, at)
	require.NoError(t, err)
	assert.False(t, ok)

	queued, err := posts.ListQueued(ctx, 1)
	require.NoError(t, err)
	var found bool
	for _, p := range queued {
		if p.ID == post.ID {
			found = true
			assert.Equal(t, jobID, *p.JobID)
			assert.True(t, at.Equal(*p.ScheduledAt))
		}
	}
	assert.True(t, found)

	ok, err = posts.Transition(ctx, post.ID, []models.PostStatus{models.PostStatusScheduled}, models.PostStatusPublishing)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = posts.MarkPublished(ctx, post.ID, "tweet-1", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = posts.MarkPublished(ctx, post.ID, "tweet-2", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublished, got.Status)
	assert.Equal(t, "tweet-1", *got.PlatformPostID)
}

func TestResetToDraftClearsJob(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	posts := NewPostRepository(db)

	post := seedPost(t, db, models.PostStatusApproved)
	_, err := posts.MarkQueued(ctx, post.ID, []models.PostStatus{models.PostStatusApproved}, models.PostStatusScheduled,
		models.JobID(post.ID, post.Platform), time.Now().Add(time.Hour))
	require.NoError(t, err)

	ok, err := posts.ResetToDraft(ctx, post.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusDraft, got.Status)
	assert.Nil(t, got.JobID)
	assert.Nil(t, got.ScheduledAt)
}

func TestScheduleJobTerminatesOnce(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	jobs := NewScheduleJobRepository(db)

	post := seedPost(t, db, models.PostStatusApproved)
	job := &models.ScheduleJob{JobID: models.JobID(post.ID, post.Platform), PostID: post.ID, Platform: post.Platform}

	require.NoError(t, jobs.Upsert(ctx, job))
	require.NoError(t, jobs.Upsert(ctx, job))

	ok, err := jobs.Finish(ctx, job.JobID, models.ScheduleJobCompleted)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = jobs.Finish(ctx, job.JobID, models.ScheduleJobFailed)
	require.NoError(t, err)
	assert.False(t, ok)

	// rescheduling the same post reuses the id
	require.NoError(t, jobs.Upsert(ctx, job))
	got, err := jobs.GetByJobID(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleJobPending, got.Status)
}

func TestPublishAttemptsAndAudit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	post := seedPost(t, db, models.PostStatusApproved)

	attempts := NewPublishAttemptRepository(db)
	_, err := attempts.Create(ctx, &models.PublishAttempt{
		PostID: post.ID, JobID: "j", Platform: post.Platform, Attempt: 1, MediaIDs: []string{"m1", "m2"},
	})
	require.NoError(t, err)
	list, err := attempts.ListByPostID(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"m1", "m2"}, []string(list[0].MediaIDs))

	audit := NewAuditRepository(db)
	require.NoError(t, audit.Create(ctx, &models.AuditEntry{
		ID: fmt.Sprintf("audit-%d", post.ID), OrganizationID: 1, PostID: post.ID, Event: models.AuditPostScheduled,
	}))
	entries, err := audit.ListByPostID(ctx, post.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	analytics := NewAnalyticsRepository(db)
	tracking := &models.PostTracking{PostID: post.ID, Platform: post.Platform, PlatformPostID: "p", StartedAt: time.Now()}
	require.NoError(t, analytics.StartTracking(ctx, tracking))
	require.NoError(t, analytics.StartTracking(ctx, tracking))
}
