// Package platform defines what a social platform adapter must provide and the
// typed errors adapters report back to the worker.
package platform

import (
	"context"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
)

// Account is the identity a request is made on behalf of.
type Account struct {
	ID          int64
	ExternalID  string
	AccessToken string
}

// Media is an uploaded asset attached to a publish request. Platforms that
// ingest media by URL use SourceURL; the others use ID.
type Media struct {
	ID        string
	SourceURL string
	MimeType  string
}

type PublishRequest struct {
	Content string
	Media   []Media
	Options map[string]string
}

type PublishResult struct {
	PlatformPostID string
	URL            string
}

type MediaUpload struct {
	Data      []byte
	Filename  string
	MimeType  string
	AltText   string
	SourceURL string
}

type Limits struct {
	MaxContentLength  int
	RequiresMedia     bool
	MaxMediaCount     int
	MaxMediaBytes     int64
	AcceptedMIMETypes []string
	// RateLimitDeferral is the minimum re-delay after the platform signals a rate limit.
	RateLimitDeferral time.Duration
}

// Accepts reports whether mime is one of the accepted media types. An empty
// list accepts everything.
func (l Limits) Accepts(mime string) bool {
	if len(l.AcceptedMIMETypes) == 0 {
		return true
	}
	for _, m := range l.AcceptedMIMETypes {
		if m == mime {
			return true
		}
	}
	return false
}

const DefaultRateLimitDeferral = 5 * time.Minute

type Client interface {
	Platform() models.Platform
	Limits() Limits
	PublishPost(ctx context.Context, account Account, req PublishRequest) (*PublishResult, error)
	UploadMedia(ctx context.Context, account Account, upload MediaUpload) (string, error)
}
