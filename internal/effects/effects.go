// Package effects runs side effects that must never fail the operation that
// triggered them: audit writes, analytics tracking and notifications.
package effects

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Task func(ctx context.Context) error

type Dispatcher interface {
	// Go schedules task and returns immediately. Failures are logged, not returned.
	Go(name string, task Task)
}

type AsyncDispatcher struct {
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsyncDispatcher(logger *zap.Logger, timeout time.Duration) *AsyncDispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AsyncDispatcher{logger: logger.Named("effects"), timeout: timeout}
}

func (d *AsyncDispatcher) Go(name string, task Task) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("side effect panicked", zap.String("effect", name), zap.Any("panic", r))
			}
		}()

		// detached from the caller, which has usually returned by now
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := task(ctx); err != nil {
			d.logger.Warn("side effect failed", zap.String("effect", name), zap.Error(err))
		}
	}()
}

// Wait blocks until every dispatched task finished or ctx is done.
func (d *AsyncDispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for side effects: %w", ctx.Err())
	}
}

// Recorder runs nothing until Run is called. Tests use it to assert which
// effects an operation scheduled.
type Recorder struct {
	mu    sync.Mutex
	names []string
	tasks []Task
}

func (r *Recorder) Go(name string, task Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	r.tasks = append(r.tasks, task)
}

func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

// Run executes every recorded task in order and clears the recording.
func (r *Recorder) Run(ctx context.Context) []error {
	r.mu.Lock()
	tasks := r.tasks
	r.tasks, r.names = nil, nil
	r.mu.Unlock()

	var errs []error
	for _, t := range tasks {
		if err := t(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

var (
	_ Dispatcher = (*AsyncDispatcher)(nil)
	_ Dispatcher = (*Recorder)(nil)
)
