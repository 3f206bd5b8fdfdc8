package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
)

const maxErrorBody = 64 << 10

// DefaultHTTPClient bounds every platform call so one slow request cannot hold a
// worker slot.
func DefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}

// Classifier turns a non-2xx response into an Error.
type Classifier func(p models.Platform, status int, header http.Header, body []byte) *Error

// Do sends req and decodes a 2xx JSON body into out (when out is non-nil).
// Failures come back as *Error classified by status code.
func Do(client *http.Client, p models.Platform, req *http.Request, out any) (http.Header, error) {
	return DoWith(client, p, req, out, ClassifyResponse)
}

// DoWith is Do with a platform specific classifier.
func DoWith(client *http.Client, p models.Platform, req *http.Request, out any, classify Classifier) (http.Header, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, TransportError(p, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.Header, classify(p, resp.StatusCode, resp.Header, body)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.Header, &Error{
				Platform:   p,
				Kind:       ErrorTransient,
				StatusCode: resp.StatusCode,
				Message:    "decode response",
				Err:        err,
			}
		}
	}
	return resp.Header, nil
}

// NewJSONRequest builds a request with a JSON body.
func NewJSONRequest(ctx context.Context, method, url string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("error marshalling payload: %w", err)
		}
		body = strings.NewReader(string(data))
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func TransportError(p models.Platform, err error) *Error {
	msg := "request failed"
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "request timed out"
	}
	return &Error{Platform: p, Kind: ErrorTransient, Message: msg, Err: err}
}

// ClassifyResponse maps a non-2xx response to an Error using the status code and
// the standard rate limit headers.
func ClassifyResponse(p models.Platform, status int, header http.Header, body []byte) *Error {
	e := &Error{Platform: p, StatusCode: status, Message: ErrorMessage(body)}
	switch {
	case status == http.StatusTooManyRequests:
		e.Kind = ErrorRateLimited
		e.RetryAfter = RetryAfter(header, time.Now())
	case status == http.StatusUnauthorized:
		e.Kind = ErrorAuthExpired
	case status >= 500:
		e.Kind = ErrorTransient
	case status == http.StatusRequestTimeout:
		e.Kind = ErrorTransient
	default:
		e.Kind = ErrorPermanent
	}
	return e
}

// RetryAfter reads Retry-After (seconds or HTTP date) or x-rate-limit-reset
// (unix seconds). Zero means the platform gave no hint.
func RetryAfter(header http.Header, now time.Time) time.Duration {
	if header == nil {
		return 0
	}
	if v := header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
		if at, err := http.ParseTime(v); err == nil && at.After(now) {
			return at.Sub(now)
		}
	}
	if v := header.Get("x-rate-limit-reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			if at := time.Unix(epoch, 0); at.After(now) {
				return at.Sub(now)
			}
		}
	}
	return 0
}

// ErrorMessage pulls a human readable message out of a platform error body.
func ErrorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Title   string `json:"title"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		for _, m := range []string{payload.Error.Message, payload.Detail, payload.Message, payload.Title} {
			if m != "" {
				return m
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
