package worker

import (
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// ErrStalled is the failure reason of a job that ran past its timeout.
var ErrStalled = errors.New("stalled")

// RateLimitedError defers a job by RetryAfter without consuming an attempt.
type RateLimitedError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("deferred for %s: %v", e.RetryAfter, e.Err)
}

func (e *RateLimitedError) Unwrap() error { return e.Err }

func Defer(after time.Duration, err error) error {
	return &RateLimitedError{RetryAfter: after, Err: err}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() []error { return []error{e.err, asynq.SkipRetry} }

// Permanent fails a job immediately, skipping the remaining attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	return errors.Is(err, asynq.SkipRetry)
}

// FailureReason is the text stored on a post whose job failed with err.
func FailureReason(err error) string {
	if errors.Is(err, ErrStalled) {
		return ErrStalled.Error()
	}
	var pe *permanentError
	if errors.As(err, &pe) {
		return pe.err.Error()
	}
	return err.Error()
}
