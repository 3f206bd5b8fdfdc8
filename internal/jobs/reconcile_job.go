package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/repository"
)

const StalledReason = "stalled"

type Confirmer interface {
	Handle(ctx context.Context, c models.Confirmation) (bool, error)
}

// ReconcileJob resolves posts left in publishing after their job is gone, for
// example when a worker crashed between the platform call and the status write.
type ReconcileJob struct {
	posts      repository.PostRepository
	jobs       repository.ScheduleJobRepository
	attempts   repository.PublishAttemptRepository
	queue      queue.Queue
	confirmer  Confirmer
	staleAfter time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

func NewReconcileJob(
	posts repository.PostRepository,
	jobs repository.ScheduleJobRepository,
	attempts repository.PublishAttemptRepository,
	q queue.Queue,
	confirmer Confirmer,
	staleAfter time.Duration,
	logger *zap.Logger) *ReconcileJob {
	return &ReconcileJob{
		posts:      posts,
		jobs:       jobs,
		attempts:   attempts,
		queue:      q,
		confirmer:  confirmer,
		staleAfter: staleAfter,
		logger:     logger.Named("reconcile"),
		now:        time.Now,
	}
}

// Reconcile is the cron entry point.
func (j *ReconcileJob) Reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	resolved, err := j.Run(ctx)
	if err != nil {
		j.logger.Error("reconcile sweep failed", zap.Error(err))
		return
	}
	if resolved > 0 {
		j.logger.Info("reconcile sweep resolved stale posts", zap.Int("resolved", resolved))
	}
}

// Run resolves every stale publishing post and returns how many it changed.
func (j *ReconcileJob) Run(ctx context.Context) (int, error) {
	posts, err := j.posts.ListStalePublishing(ctx, j.now().Add(-j.staleAfter))
	if err != nil {
		return 0, err
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		resolved int
	)
	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, post := range posts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(post *models.Post) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if j.resolve(ctx, post) {
				mu.Lock()
				resolved++
				mu.Unlock()
			}
		}(post)
	}
	wg.Wait()

	return resolved, nil
}

func (j *ReconcileJob) resolve(ctx context.Context, post *models.Post) bool {
	logger := j.logger.With(zap.Int64("post_id", post.ID), zap.String("platform", string(post.Platform)))

	jobID := models.JobID(post.ID, post.Platform)
	if post.JobID != nil {
		jobID = *post.JobID
	}

	info, err := j.queue.Get(ctx, post.Platform, jobID)
	switch {
	case errors.Is(err, queue.ErrJobNotFound):
	case err != nil:
		logger.Warn("could not inspect job", zap.String("job_id", jobID), zap.Error(err))
		return false
	case !info.State.Finished():
		// still retrying or running
		return false
	}

	c := models.Confirmation{PostID: post.ID, Status: models.ConfirmationFailed, FailureReason: StalledReason, Timestamp: j.now().UTC()}
	jobStatus := models.ScheduleJobFailed

	// a recorded platform post id means the publish went through
	attempts, err := j.attempts.ListByPostID(ctx, post.ID)
	if err != nil {
		logger.Warn("could not load publish attempts", zap.Error(err))
		return false
	}
	for i := len(attempts) - 1; i >= 0; i-- {
		if id := attempts[i].PlatformPostID; id != nil && *id != "" {
			c = models.Confirmation{PostID: post.ID, Status: models.ConfirmationPublished, PlatformPostID: *id, Timestamp: attempts[i].CreatedAt}
			jobStatus = models.ScheduleJobCompleted
			break
		}
	}

	applied, err := j.confirmer.Handle(ctx, c)
	if err != nil {
		logger.Error("failed to resolve stale post", zap.Error(err))
		return false
	}
	if _, err := j.jobs.Finish(ctx, jobID, jobStatus); err != nil {
		logger.Warn("failed to finish schedule job", zap.String("job_id", jobID), zap.Error(err))
	}
	if applied {
		logger.Warn("resolved stale publishing post", zap.String("status", string(c.Status)))
	}
	return applied
}
