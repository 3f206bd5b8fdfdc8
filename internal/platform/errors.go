package platform

import (
	"errors"
	"fmt"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
)

type ErrorKind int

const (
	ErrorTransient ErrorKind = iota
	ErrorRateLimited
	ErrorAuthExpired
	ErrorPermanent
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorRateLimited:
		return "rate_limited"
	case ErrorAuthExpired:
		return "auth_expired"
	case ErrorPermanent:
		return "permanent"
	default:
		return "transient"
	}
}

// Error is how an adapter reports a failed platform call. Adapters decide the
// Kind from the platform's own signals so callers never inspect message text.
type Error struct {
	Platform   models.Platform
	Kind       ErrorKind
	StatusCode int
	RetryAfter time.Duration
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s", e.Platform, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the same request may succeed later.
func (e *Error) Retryable() bool {
	return e.Kind == ErrorTransient || e.Kind == ErrorRateLimited
}

func AsError(err error) (*Error, bool) {
	var perr *Error
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}

func KindOf(err error) (ErrorKind, bool) {
	if perr, ok := AsError(err); ok {
		return perr.Kind, true
	}
	return 0, false
}
