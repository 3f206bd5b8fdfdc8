package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/ratelimit"
	"github.com/maheshrc27/postflow/internal/repository"
)

type AccountProvider interface {
	GetValidAccessToken(ctx context.Context, accountID int64) (platform.Account, error)
}

type MediaPreparer interface {
	Prepare(ctx context.Context, client platform.Client, account platform.Account, post *models.Post) ([]platform.Media, error)
}

type RateLimiter interface {
	CheckLimit(ctx context.Context, p models.Platform, accountID int64, action ratelimit.Action) error
}

type Confirmer interface {
	Handle(ctx context.Context, c models.Confirmation) (bool, error)
}

type PublisherDeps struct {
	Posts     repository.PostRepository
	Jobs      repository.ScheduleJobRepository
	Attempts  repository.PublishAttemptRepository
	Accounts  AccountProvider
	Media     MediaPreparer
	Limiter   RateLimiter
	Confirmer Confirmer
}

// Publisher is the JobHandler that publishes posts to one platform.
type Publisher struct {
	PublisherDeps
	client   platform.Client
	throttle *rate.Limiter
	logger   *zap.Logger
	now      func() time.Time
}

// NewPublisher builds the handler for client's platform. jobsPerMinute caps
// how fast jobs are taken off the queue; zero disables the cap.
func NewPublisher(client platform.Client, deps PublisherDeps, jobsPerMinute int, logger *zap.Logger) *Publisher {
	p := &Publisher{
		PublisherDeps: deps,
		client:        client,
		logger:        logger.Named("publisher").With(zap.String("platform", string(client.Platform()))),
		now:           time.Now,
	}
	if jobsPerMinute > 0 {
		p.throttle = rate.NewLimiter(rate.Every(time.Minute/time.Duration(jobsPerMinute)), 1)
	}
	return p
}

func (p *Publisher) RateLimit() *rate.Limiter { return p.throttle }

func (p *Publisher) ProcessJob(ctx context.Context, job queue.Job) error {
	logger := p.logger.With(zap.String("job_id", job.ID), zap.Int64("post_id", job.PostID), zap.Int("attempt", job.Attempt))

	post, err := p.Posts.GetByID(ctx, job.PostID)
	if err != nil {
		return err
	}
	if post == nil {
		logger.Warn("post no longer exists, dropping job")
		p.finish(ctx, logger, job, models.ScheduleJobCancelled)
		return nil
	}
	if post.Platform != job.Platform {
		return Permanent(apperr.Validation("publisher.ProcessJob", "post %d targets %s, job is for %s", post.ID, post.Platform, job.Platform))
	}

	switch post.Status {
	case models.PostStatusDraft:
		logger.Info("post was cancelled, skipping")
		p.finish(ctx, logger, job, models.ScheduleJobCancelled)
		return nil
	case models.PostStatusPublished:
		logger.Info("post already published, skipping")
		p.finish(ctx, logger, job, models.ScheduleJobCompleted)
		return nil
	case models.PostStatusFailed:
		logger.Info("post already failed, skipping")
		p.finish(ctx, logger, job, models.ScheduleJobFailed)
		return nil
	case models.PostStatusScheduled:
		ok, err := p.Posts.Transition(ctx, post.ID, []models.PostStatus{models.PostStatusScheduled}, models.PostStatusPublishing)
		if err != nil {
			return err
		}
		if !ok {
			logger.Info("post changed before publishing started, skipping")
			p.finish(ctx, logger, job, models.ScheduleJobCancelled)
			return nil
		}
	case models.PostStatusPublishing:
	default:
		logger.Warn("post is not ready to publish, skipping", zap.String("status", string(post.Status)))
		p.finish(ctx, logger, job, models.ScheduleJobCancelled)
		return nil
	}

	account, err := p.Accounts.GetValidAccessToken(ctx, post.SocialAccountID)
	if err != nil {
		return p.classify(logger, err)
	}

	// the schedule-time check was advisory; this one consumes the slot
	if err := p.Limiter.CheckLimit(ctx, post.Platform, account.ID, ratelimit.ActionPublish); err != nil {
		return p.classify(logger, err)
	}

	media, err := p.Media.Prepare(ctx, p.client, account, post)
	if err != nil {
		p.recordAttempt(ctx, logger, job, nil, nil, err)
		return p.classify(logger, err)
	}

	limits := p.client.Limits()
	content, truncated := platform.Truncate(post.Content, limits.MaxContentLength)
	if truncated {
		logger.Warn("content truncated to platform limit",
			zap.Int("original_length", platform.Length(post.Content)),
			zap.Int("limit", limits.MaxContentLength))
	}

	result, err := p.client.PublishPost(ctx, account, platform.PublishRequest{Content: content, Media: media})
	p.recordAttempt(ctx, logger, job, media, result, err)
	if err != nil {
		return p.classify(logger, err)
	}

	// the post is live now; a retry would publish it twice
	if _, err := p.Confirmer.Handle(ctx, models.Confirmation{
		PostID:         post.ID,
		Status:         models.ConfirmationPublished,
		PlatformPostID: result.PlatformPostID,
		Timestamp:      p.now().UTC(),
	}); err != nil {
		logger.Error("failed to confirm published post", zap.String("platform_post_id", result.PlatformPostID), zap.Error(err))
	}
	p.finish(ctx, logger, job, models.ScheduleJobCompleted)
	return nil
}

func (p *Publisher) OnFailure(ctx context.Context, job queue.Job, err error) {
	logger := p.logger.With(zap.String("job_id", job.ID), zap.Int64("post_id", job.PostID))
	reason := FailureReason(err)

	// failures before publishing started leave the post scheduled
	if _, terr := p.Posts.Transition(ctx, job.PostID, []models.PostStatus{models.PostStatusScheduled}, models.PostStatusPublishing); terr != nil {
		logger.Error("failed to move post to publishing", zap.Error(terr))
	}

	if _, cerr := p.Confirmer.Handle(ctx, models.Confirmation{
		PostID:        job.PostID,
		Status:        models.ConfirmationFailed,
		FailureReason: reason,
		Timestamp:     p.now().UTC(),
	}); cerr != nil {
		logger.Error("failed to confirm failed post", zap.String("reason", reason), zap.Error(cerr))
	}
	p.finish(ctx, logger, job, models.ScheduleJobFailed)
}

// classify maps err to a retry decision: rate limits defer, auth and
// permanent errors fail at once, everything else retries.
func (p *Publisher) classify(logger *zap.Logger, err error) error {
	if perr, ok := platform.AsError(err); ok {
		switch perr.Kind {
		case platform.ErrorRateLimited:
			return p.deferral(logger, perr.RetryAfter, err)
		case platform.ErrorAuthExpired, platform.ErrorPermanent:
			return Permanent(err)
		default:
			return err
		}
	}

	switch apperr.KindOf(err) {
	case apperr.KindRateLimited:
		return p.deferral(logger, apperr.RetryAfterOf(err), err)
	case apperr.KindAuth, apperr.KindNotFound, apperr.KindValidation, apperr.KindBadRequest:
		return Permanent(err)
	}
	return err
}

func (p *Publisher) deferral(logger *zap.Logger, wait time.Duration, err error) error {
	floor := p.client.Limits().RateLimitDeferral
	if floor <= 0 {
		floor = platform.DefaultRateLimitDeferral
	}
	if wait < floor {
		wait = floor
	}
	logger.Info("rate limited, deferring job", zap.Duration("retry_after", wait), zap.Error(err))
	return Defer(wait, err)
}

func (p *Publisher) recordAttempt(ctx context.Context, logger *zap.Logger, job queue.Job, media []platform.Media, result *platform.PublishResult, err error) {
	attempt := &models.PublishAttempt{
		PostID:   job.PostID,
		JobID:    job.ID,
		Platform: job.Platform,
		Attempt:  job.Attempt,
	}
	for _, m := range media {
		attempt.MediaIDs = append(attempt.MediaIDs, m.ID)
	}
	if result != nil {
		attempt.PlatformPostID = &result.PlatformPostID
	}
	if err != nil {
		attempt.ErrorMessage = err.Error()
	}

	if _, cerr := p.Attempts.Create(ctx, attempt); cerr != nil {
		logger.Error("failed to record publish attempt", zap.Error(cerr))
	}
}

func (p *Publisher) finish(ctx context.Context, logger *zap.Logger, job queue.Job, status models.ScheduleJobStatus) {
	if _, err := p.Jobs.Finish(ctx, job.ID, status); err != nil {
		logger.Error("failed to finish schedule job", zap.String("status", string(status)), zap.Error(err))
	}
}

var _ JobHandler = (*Publisher)(nil)
