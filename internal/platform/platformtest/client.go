// Package platformtest provides a scriptable platform.Client for tests.
package platformtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
)

type Client struct {
	mu sync.Mutex

	P      models.Platform
	Lim    platform.Limits
	Result *platform.PublishResult

	// PublishErr is returned by every PublishPost call when set.
	PublishErr error
	// UploadErr maps a filename to the error its upload returns.
	UploadErr map[string]error

	Published []platform.PublishRequest
	Uploaded  []platform.MediaUpload
}

func New(p models.Platform, limits platform.Limits) *Client {
	return &Client{
		P:         p,
		Lim:       limits,
		UploadErr: make(map[string]error),
	}
}

func (c *Client) Platform() models.Platform { return c.P }
func (c *Client) Limits() platform.Limits    { return c.Lim }

func (c *Client) PublishPost(_ context.Context, _ platform.Account, req platform.PublishRequest) (*platform.PublishResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Published = append(c.Published, req)
	if c.PublishErr != nil {
		return nil, c.PublishErr
	}
	if c.Result != nil {
		return c.Result, nil
	}
	return &platform.PublishResult{PlatformPostID: fmt.Sprintf("%s-post-%d", c.P, len(c.Published))}, nil
}

func (c *Client) UploadMedia(_ context.Context, _ platform.Account, upload platform.MediaUpload) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Uploaded = append(c.Uploaded, upload)
	if err := c.UploadErr[upload.Filename]; err != nil {
		return "", err
	}
	return "media-" + upload.Filename, nil
}

func (c *Client) PublishCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Published)
}

func (c *Client) SetPublishErr(err error) {
	c.mu.Lock()
	c.PublishErr = err
	c.mu.Unlock()
}

var _ platform.Client = (*Client)(nil)
