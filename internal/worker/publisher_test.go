package worker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/confirmation"
	"github.com/maheshrc27/postflow/internal/effects"
	"github.com/maheshrc27/postflow/internal/media"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/maheshrc27/postflow/internal/platform/platformtest"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/ratelimit"
	"github.com/maheshrc27/postflow/internal/repository/repotest"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

type accounts struct {
	err error
}

func (a accounts) GetValidAccessToken(_ context.Context, id int64) (platform.Account, error) {
	if a.err != nil {
		return platform.Account{}, a.err
	}
	return platform.Account{ID: id, ExternalID: "ext", AccessToken: "token"}, nil
}

type files map[int64]*models.MediaFile

func (f files) GetFileByID(_ context.Context, id, _ int64) (*models.MediaFile, error) {
	if file, ok := f[id]; ok {
		return file, nil
	}
	return nil, apperr.NotFound("files", "media file %d not found", id)
}

type nopNotifier struct{}

func (nopNotifier) NotifyPostPublished(context.Context, int64) error       { return nil }
func (nopNotifier) NotifyPostFailed(context.Context, int64, string) error { return nil }

type nopTracker struct{}

func (nopTracker) StartTrackingPost(context.Context, int64, models.Platform, string) error {
	return nil
}

type harness struct {
	posts    *repotest.Posts
	jobs     *repotest.ScheduleJobs
	attempts *repotest.PublishAttempts
	client   *platformtest.Client
	effects  *effects.Recorder
	store    *ratelimit.MemoryStore
	pub      *Publisher
	job      queue.Job
}

func newHarness(t *testing.T, p models.Platform, limits platform.Limits, post *models.Post, acc AccountProvider, mediaFiles files) *harness {
	t.Helper()
	h := &harness{
		posts:    repotest.NewPosts(),
		jobs:     repotest.NewScheduleJobs(),
		attempts: repotest.NewPublishAttempts(),
		client:   platformtest.New(p, limits),
		effects:  &effects.Recorder{},
		store:    ratelimit.NewMemoryStore(),
	}
	post.Platform = p
	h.posts.Put(post)
	h.job = queue.NewJob(post.ID, p)
	h.job.Attempt = 1
	require.NoError(t, h.jobs.Upsert(context.Background(), &models.ScheduleJob{JobID: h.job.ID, PostID: post.ID, Platform: p, Status: models.ScheduleJobPending}))

	limiter := ratelimit.NewLimiter(h.store, ratelimit.DefaultRules, zap.NewNop())
	h.pub = NewPublisher(h.client, PublisherDeps{
		Posts:     h.posts,
		Jobs:      h.jobs,
		Attempts:  h.attempts,
		Accounts:  acc,
		Media:     media.NewPreparer(mediaFiles, limiter, zap.NewNop(), media.WithDownloadTimeout(50*time.Millisecond)),
		Limiter:   limiter,
		Confirmer: confirmation.NewHandler(h.posts, h.jobs, nopNotifier{}, nopTracker{}, h.effects, zap.NewNop()),
	}, 0, zap.NewNop())
	return h
}

func (h *harness) post(t *testing.T) *models.Post {
	t.Helper()
	p, err := h.posts.GetByID(context.Background(), h.job.PostID)
	require.NoError(t, err)
	return p
}

func (h *harness) jobStatus(t *testing.T) models.ScheduleJobStatus {
	t.Helper()
	j, err := h.jobs.GetByJobID(context.Background(), h.job.ID)
	require.NoError(t, err)
	return j.Status
}

var igLimits = platform.Limits{
	MaxContentLength:  2200,
	RequiresMedia:     true,
	MaxMediaCount:     10,
	AcceptedMIMETypes: []string{"image/jpeg", "image/png"},
}

var xLimits = platform.Limits{MaxContentLength: 280, MaxMediaCount: 4, RateLimitDeferral: 15 * time.Minute}

func TestPublishInstagramWithMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write(pngBytes) }))
	defer srv.Close()

	mediaFiles := files{
		11: {ID: 11, URL: srv.URL + "/a.png", Filename: "a.png", MimeType: "image/png"},
		12: {ID: 12, URL: srv.URL + "/b.png", Filename: "b.png", MimeType: "image/png"},
	}
	h := newHarness(t, models.PlatformInstagram, igLimits,
		&models.Post{ID: 1, OrganizationID: 7, SocialAccountID: 3, Content: "launch day", MediaFileIDs: []int64{11, 12}, Status: models.PostStatusScheduled},
		accounts{}, mediaFiles)

	require.NoError(t, h.pub.ProcessJob(context.Background(), h.job))

	post := h.post(t)
	assert.Equal(t, models.PostStatusPublished, post.Status)
	assert.Equal(t, "instagram-post-1", *post.PlatformPostID)
	assert.Equal(t, models.ScheduleJobCompleted, h.jobStatus(t))

	require.Len(t, h.client.Published, 1)
	req := h.client.Published[0]
	assert.Equal(t, "launch day", req.Content)
	require.Len(t, req.Media, 2)
	assert.Equal(t, "media-a.png", req.Media[0].ID)
	assert.Equal(t, "media-b.png", req.Media[1].ID)

	attempts, _ := h.attempts.ListByPostID(context.Background(), 1)
	require.Len(t, attempts, 1)
	assert.Equal(t, []string{"media-a.png", "media-b.png"}, []string(attempts[0].MediaIDs))
	assert.Equal(t, 1, attempts[0].Attempt)
	assert.Empty(t, attempts[0].ErrorMessage)
	assert.Equal(t, []string{"analytics.start_tracking", "notify.published"}, h.effects.Names())
}

func TestPublishRateLimitedDefersWithoutFailing(t *testing.T) {
	h := newHarness(t, models.PlatformX, xLimits,
		&models.Post{ID: 2, SocialAccountID: 3, Content: "hello", Status: models.PostStatusScheduled}, accounts{}, nil)
	h.client.SetPublishErr(&platform.Error{Platform: models.PlatformX, Kind: platform.ErrorRateLimited, StatusCode: 429, RetryAfter: time.Minute, Message: "rate limit exceeded"})

	err := h.pub.ProcessJob(context.Background(), h.job)
	require.Error(t, err)

	var rl *RateLimitedError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 15*time.Minute, rl.RetryAfter)
	assert.Equal(t, 15*time.Minute, retryDelay(0, err, nil))
	assert.False(t, isFailure(err))
	assert.False(t, isFinal(err, 2, 2))

	assert.Equal(t, models.PostStatusPublishing, h.post(t).Status)
	assert.Equal(t, models.ScheduleJobPending, h.jobStatus(t))
}

func TestPublishAuthoritativeLimitDefers(t *testing.T) {
	h := newHarness(t, models.PlatformX, xLimits,
		&models.Post{ID: 2, SocialAccountID: 3, Content: "hello", Status: models.PostStatusScheduled}, accounts{}, nil)

	rule, _ := ratelimit.DefaultRules.Lookup(models.PlatformX, ratelimit.ActionPublish)
	for i := int64(0); i < rule.Limit; i++ {
		_, ok, err := h.store.Take(context.Background(), "ratelimit:x:3:publish", rule.Limit, rule.Window)
		require.NoError(t, err)
		require.True(t, ok)
	}

	err := h.pub.ProcessJob(context.Background(), h.job)
	var rl *RateLimitedError
	require.True(t, errors.As(err, &rl))
	assert.GreaterOrEqual(t, rl.RetryAfter, 14*time.Minute)
	assert.Equal(t, 0, h.client.PublishCount())
}

func TestPublishAuthErrorFailsWithoutRetry(t *testing.T) {
	h := newHarness(t, models.PlatformFacebook, platform.Limits{MaxContentLength: 63206},
		&models.Post{ID: 4, SocialAccountID: 3, Content: "hi", Status: models.PostStatusScheduled},
		accounts{err: apperr.Auth("accounts", errors.New("access token expired"))}, nil)

	err := h.pub.ProcessJob(context.Background(), h.job)
	require.True(t, isFinal(err, 0, 2))
	assert.Equal(t, 0, h.client.PublishCount())

	h.pub.OnFailure(context.Background(), h.job, err)
	post := h.post(t)
	assert.Equal(t, models.PostStatusFailed, post.Status)
	assert.Contains(t, *post.FailureReason, "access token expired")
	assert.Equal(t, models.ScheduleJobFailed, h.jobStatus(t))
}

func TestPublishPlatformErrorKinds(t *testing.T) {
	tests := []struct {
		kind      platform.ErrorKind
		permanent bool
	}{
		{platform.ErrorTransient, false},
		{platform.ErrorAuthExpired, true},
		{platform.ErrorPermanent, true},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			h := newHarness(t, models.PlatformLinkedIn, platform.Limits{MaxContentLength: 3000},
				&models.Post{ID: 5, SocialAccountID: 3, Content: "hi", Status: models.PostStatusScheduled}, accounts{}, nil)
			h.client.SetPublishErr(&platform.Error{Platform: models.PlatformLinkedIn, Kind: tt.kind, Message: "nope"})

			err := h.pub.ProcessJob(context.Background(), h.job)
			require.Error(t, err)
			assert.Equal(t, tt.permanent, isFinal(err, 0, 2))
			assert.True(t, isFailure(err))

			attempts, _ := h.attempts.ListByPostID(context.Background(), 5)
			require.Len(t, attempts, 1)
			assert.Contains(t, attempts[0].ErrorMessage, "nope")
		})
	}
}

func TestPublishAllMediaFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	mediaFiles := files{}
	for i, name := range []string{"a.png", "b.png", "c.png"} {
		id := int64(21 + i)
		mediaFiles[id] = &models.MediaFile{ID: id, URL: srv.URL + "/" + name, Filename: name}
	}
	h := newHarness(t, models.PlatformInstagram, igLimits,
		&models.Post{ID: 6, SocialAccountID: 3, Content: "x", MediaFileIDs: []int64{21, 22, 23}, Status: models.PostStatusScheduled},
		accounts{}, mediaFiles)

	err := h.pub.ProcessJob(context.Background(), h.job)
	require.Error(t, err)
	assert.True(t, isFinal(err, 0, 2))
	assert.Equal(t, 0, h.client.PublishCount())

	w := testWorker(h.pub, time.Second)
	w.handleError(context.Background(), publishTaskFor(t, h.job), err)

	post := h.post(t)
	assert.Equal(t, models.PostStatusFailed, post.Status)
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		assert.Contains(t, *post.FailureReason, name)
	}
	assert.Contains(t, *post.FailureReason, "timed out")
}

func TestPublishTruncatesContent(t *testing.T) {
	h := newHarness(t, models.PlatformX, xLimits,
		&models.Post{ID: 7, SocialAccountID: 3, Content: strings.Repeat("é", 300), Status: models.PostStatusPublishing}, accounts{}, nil)

	require.NoError(t, h.pub.ProcessJob(context.Background(), h.job))
	require.Len(t, h.client.Published, 1)
	assert.Equal(t, 280, platform.Length(h.client.Published[0].Content))
}

func TestPublishSkipsCancelledAndFinishedPosts(t *testing.T) {
	tests := []struct {
		status models.PostStatus
		job    models.ScheduleJobStatus
	}{
		{models.PostStatusDraft, models.ScheduleJobCancelled},
		{models.PostStatusPublished, models.ScheduleJobCompleted},
		{models.PostStatusFailed, models.ScheduleJobFailed},
		{models.PostStatusPendingApproval, models.ScheduleJobCancelled},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			h := newHarness(t, models.PlatformX, xLimits,
				&models.Post{ID: 8, SocialAccountID: 3, Content: "hi", Status: tt.status}, accounts{}, nil)

			require.NoError(t, h.pub.ProcessJob(context.Background(), h.job))
			assert.Equal(t, 0, h.client.PublishCount())
			assert.Equal(t, tt.status, h.post(t).Status)
			assert.Equal(t, tt.job, h.jobStatus(t))
		})
	}
}

// A platform confirmation can resolve the post while its job waits out a
// deferral; the job then finishes without publishing again.
func TestPublishAfterExternalConfirmation(t *testing.T) {
	h := newHarness(t, models.PlatformX, xLimits,
		&models.Post{ID: 8, SocialAccountID: 3, Content: "hi", Status: models.PostStatusPublishing}, accounts{}, nil)
	post := h.post(t)
	post.JobID = &h.job.ID
	h.posts.Put(post)

	applied, err := h.pub.Confirmer.Handle(context.Background(), models.Confirmation{
		PostID: 8, Status: models.ConfirmationPublished, PlatformPostID: "tw-1", Timestamp: time.Now(),
	})
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, models.ScheduleJobCompleted, h.jobStatus(t))

	require.NoError(t, h.pub.ProcessJob(context.Background(), h.job))
	assert.Equal(t, 0, h.client.PublishCount())
	assert.Equal(t, models.ScheduleJobCompleted, h.jobStatus(t))
}

func TestPublishMissingPostFinishesJob(t *testing.T) {
	h := newHarness(t, models.PlatformX, xLimits,
		&models.Post{ID: 9, Status: models.PostStatusScheduled}, accounts{}, nil)
	job := queue.NewJob(99, models.PlatformX)
	require.NoError(t, h.jobs.Upsert(context.Background(), &models.ScheduleJob{JobID: job.ID, PostID: 99, Platform: models.PlatformX}))

	require.NoError(t, h.pub.ProcessJob(context.Background(), job))
	j, _ := h.jobs.GetByJobID(context.Background(), job.ID)
	assert.Equal(t, models.ScheduleJobCancelled, j.Status)
}

func TestOnFailureFromScheduled(t *testing.T) {
	h := newHarness(t, models.PlatformX, xLimits,
		&models.Post{ID: 10, Content: "hi", Status: models.PostStatusScheduled}, accounts{}, nil)

	h.pub.OnFailure(context.Background(), h.job, Permanent(ErrStalled))

	post := h.post(t)
	assert.Equal(t, models.PostStatusFailed, post.Status)
	assert.Equal(t, "stalled", *post.FailureReason)
}

func TestThrottleFromJobsPerMinute(t *testing.T) {
	pub := NewPublisher(platformtest.New(models.PlatformX, xLimits), PublisherDeps{}, 15, zap.NewNop())
	require.NotNil(t, pub.RateLimit())
	assert.InDelta(t, 0.25, float64(pub.RateLimit().Limit()), 0.0001)

	assert.Nil(t, NewPublisher(platformtest.New(models.PlatformX, xLimits), PublisherDeps{}, 0, zap.NewNop()).RateLimit())
}

func publishTaskFor(t *testing.T, job queue.Job) *asynq.Task {
	t.Helper()
	payload, err := queue.EncodePayload(job)
	require.NoError(t, err)
	return asynq.NewTask(queue.TaskTypePublishPost, payload)
}
