// Package worker runs publish jobs off the per-platform queues.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/queue"
)

const (
	BaseRetryDelay = 5 * time.Second
	MaxRetryDelay  = time.Hour
	failureTimeout = 30 * time.Second
)

// JobHandler is the platform-specific part of a Worker.
type JobHandler interface {
	ProcessJob(ctx context.Context, job queue.Job) error
	// RateLimit throttles how fast the worker dequeues. Nil means unthrottled.
	RateLimit() *rate.Limiter
	// OnFailure runs once per job, after its last attempt failed.
	OnFailure(ctx context.Context, job queue.Job, err error)
}

type Config struct {
	Platform        models.Platform
	Concurrency     int
	JobTimeout      time.Duration
	ShutdownTimeout time.Duration
}

type Worker struct {
	cfg     Config
	handler JobHandler
	server  *asynq.Server
	logger  *zap.Logger
}

func New(redis asynq.RedisConnOpt, cfg Config, handler JobHandler, logger *zap.Logger) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = queue.DefaultJobTimeout
	}

	w := &Worker{
		cfg:     cfg,
		handler: handler,
		logger:  logger.Named("worker").With(zap.String("platform", string(cfg.Platform))),
	}
	w.server = asynq.NewServer(redis, asynq.Config{
		Concurrency:     cfg.Concurrency,
		Queues:          map[string]int{queue.Name(cfg.Platform): 1},
		RetryDelayFunc:  retryDelay,
		IsFailure:       isFailure,
		ErrorHandler:    asynq.ErrorHandlerFunc(w.handleError),
		Logger:          w.logger.Sugar(),
		ShutdownTimeout: cfg.ShutdownTimeout,
	})
	return w
}

func (w *Worker) Platform() models.Platform { return w.cfg.Platform }

func (w *Worker) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskTypePublishPost, w.ProcessTask)
	if err := w.server.Start(mux); err != nil {
		return err
	}
	w.logger.Info("worker started", zap.Int("concurrency", w.cfg.Concurrency))
	return nil
}

// Shutdown stops dequeuing and waits for in-flight jobs up to the shutdown timeout.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
	w.logger.Info("worker stopped")
}

func (w *Worker) ProcessTask(ctx context.Context, task *asynq.Task) error {
	id, _ := asynq.GetTaskID(ctx)
	job, err := queue.DecodePayload(id, task.Payload())
	if err != nil {
		return Permanent(err)
	}
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, hasMax := asynq.GetMaxRetry(ctx)
	job.Attempt = retried + 1

	err = w.run(ctx, job)
	if err == nil || !isFailure(err) || isPermanent(err) {
		return err
	}
	// the queue keeps one retry in reserve for deferrals; a failure on the
	// last budgeted attempt ends the job here
	if hasMax && queue.LastAttempt(retried, maxRetry) {
		return Permanent(err)
	}
	return err
}

func (w *Worker) run(ctx context.Context, job queue.Job) error {
	if lim := w.handler.RateLimit(); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return Defer(throttleDelay(lim), fmt.Errorf("wait for %s throttle: %w", w.cfg.Platform, err))
		}
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	err := w.handler.ProcessJob(jobCtx, job)
	if err != nil && errors.Is(jobCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		w.logger.Error("job stalled",
			zap.String("job_id", job.ID),
			zap.Int64("post_id", job.PostID),
			zap.Duration("timeout", w.cfg.JobTimeout),
			zap.Error(err))
		return Permanent(ErrStalled)
	}
	return err
}

func (w *Worker) handleError(ctx context.Context, task *asynq.Task, err error) {
	id, _ := asynq.GetTaskID(ctx)
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	logger := w.logger.With(zap.String("job_id", id), zap.Int("retried", retried), zap.Error(err))

	var rl *RateLimitedError
	if errors.As(err, &rl) {
		logger.Info("job deferred", zap.Duration("retry_after", rl.RetryAfter))
		return
	}
	if !isFinal(err, retried, maxRetry) {
		logger.Warn("job failed, will retry", zap.Duration("retry_in", retryDelay(retried, err, task)))
		return
	}

	job, derr := queue.DecodePayload(id, task.Payload())
	if derr != nil {
		logger.Error("dropping job with unreadable payload", zap.NamedError("decode_error", derr))
		return
	}
	job.Attempt = retried + 1

	logger.Error("job failed permanently", zap.Int64("post_id", job.PostID))
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureTimeout)
	defer cancel()
	w.handler.OnFailure(fctx, job, err)
}

// retryDelay backs off exponentially from BaseRetryDelay. A rate-limited job
// waits exactly as long as the limit asks.
func retryDelay(n int, err error, _ *asynq.Task) time.Duration {
	var rl *RateLimitedError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}

	d := BaseRetryDelay
	for i := 0; i < n && d < MaxRetryDelay; i++ {
		d *= 2
	}
	if d > MaxRetryDelay {
		d = MaxRetryDelay
	}
	return d
}

// throttleDelay is one token interval of lim, at least BaseRetryDelay.
func throttleDelay(lim *rate.Limiter) time.Duration {
	l := lim.Limit()
	if l == rate.Inf || l <= 0 {
		return BaseRetryDelay
	}
	d := time.Duration(float64(time.Second) / float64(l)).Round(time.Millisecond)
	if d < BaseRetryDelay {
		d = BaseRetryDelay
	}
	return d
}

// isFailure keeps deferrals from counting against the retry budget.
func isFailure(err error) bool {
	var rl *RateLimitedError
	return !errors.As(err, &rl)
}

func isFinal(err error, retried, maxRetry int) bool {
	if !isFailure(err) {
		return false
	}
	return isPermanent(err) || retried >= maxRetry
}
