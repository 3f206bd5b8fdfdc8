// Package apperr is the error taxonomy shared by the scheduler, workers and HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindConflict
	KindRateLimited
	KindAuth
	KindNetwork
	KindBadRequest
	KindPlatform
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindAuth:
		return "auth"
	case KindNetwork:
		return "network"
	case KindBadRequest:
		return "bad_request"
	case KindPlatform:
		return "platform"
	default:
		return "internal"
	}
}

type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error

	// RetryAfter is set on rate-limited errors: the wait until the window resets.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches errors of the same kind so callers can write errors.Is(err, apperr.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrValidation  = &Error{Kind: KindValidation}
	ErrConflict    = &Error{Kind: KindConflict}
	ErrRateLimited = &Error{Kind: KindRateLimited}
	ErrAuth        = &Error{Kind: KindAuth}
	ErrNetwork     = &Error{Kind: KindNetwork}
	ErrBadRequest  = &Error{Kind: KindBadRequest}
)

func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func NotFound(op, format string, args ...any) *Error {
	return New(KindNotFound, op, format, args...)
}

func Validation(op, format string, args ...any) *Error {
	return New(KindValidation, op, format, args...)
}

func Conflict(op, format string, args ...any) *Error {
	return New(KindConflict, op, format, args...)
}

func Auth(op string, err error) *Error {
	return Wrap(KindAuth, op, err)
}

func Network(op string, err error) *Error {
	return Wrap(KindNetwork, op, err)
}

func BadRequest(op, format string, args ...any) *Error {
	return New(KindBadRequest, op, format, args...)
}

func RateLimited(op string, retryAfter time.Duration, format string, args ...any) *Error {
	e := New(KindRateLimited, op, format, args...)
	e.RetryAfter = retryAfter
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func RetryAfterOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}
