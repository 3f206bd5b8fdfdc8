// Package queuetest is an in-memory queue.Queue for tests.
package queuetest

import (
	"context"
	"sync"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/queue"
)

type Entry struct {
	Job        queue.Job
	Options    queue.EnqueueOptions
	State      queue.JobState
	EnqueuedAt time.Time
}

type Queue struct {
	mu      sync.Mutex
	entries map[string]*Entry
	// EnqueueErr fails the next Enqueue call when set.
	EnqueueErr error
}

func New() *Queue {
	return &Queue{entries: make(map[string]*Entry)}
}

func (q *Queue) Enqueue(_ context.Context, job queue.Job, opts queue.EnqueueOptions) (*queue.JobInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.EnqueueErr; err != nil {
		q.EnqueueErr = nil
		return nil, err
	}

	if e, ok := q.entries[job.ID]; ok && !e.State.Finished() {
		return info(e), queue.ErrDuplicateJob
	}

	state := queue.JobStatePending
	if opts.Delay > 0 {
		state = queue.JobStateScheduled
	}
	e := &Entry{Job: job, Options: opts, State: state, EnqueuedAt: time.Now()}
	q.entries[job.ID] = e
	return info(e), nil
}

func (q *Queue) Get(_ context.Context, _ models.Platform, jobID string) (*queue.JobInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[jobID]
	if !ok {
		return nil, queue.ErrJobNotFound
	}
	return info(e), nil
}

func (q *Queue) Remove(_ context.Context, _ models.Platform, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[jobID]
	if !ok {
		return queue.ErrJobNotFound
	}
	if e.State == queue.JobStateActive {
		return queue.ErrJobActive
	}
	delete(q.entries, jobID)
	return nil
}

func (q *Queue) Close() error { return nil }

// SetState moves a job to state, for example to simulate a worker dequeuing it.
func (q *Queue) SetState(jobID string, state queue.JobState) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.entries[jobID]; ok {
		e.State = state
	}
}

func (q *Queue) Entry(jobID string) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[jobID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func info(e *Entry) *queue.JobInfo {
	return &queue.JobInfo{
		Job:      e.Job,
		State:    e.State,
		MaxRetry: e.Options.MaxRetry(),
	}
}

var _ queue.Queue = (*Queue)(nil)
