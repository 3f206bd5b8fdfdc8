// Package facebook publishes page feed posts through the Graph API.
package facebook

import (
	"context"
	"fmt"
	"net/http"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/maheshrc27/postflow/internal/platform/graph"
)

const DefaultBaseURL = "https://graph.facebook.com/v21.0"

type Client struct {
	graph *graph.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{graph: graph.New(models.PlatformFacebook, baseURL, httpClient)}
}

func (c *Client) Platform() models.Platform { return models.PlatformFacebook }

func (c *Client) Limits() platform.Limits {
	return platform.Limits{
		MaxContentLength:  63206,
		MaxMediaCount:     10,
		MaxMediaBytes:     10 << 20,
		AcceptedMIMETypes: []string{"image/jpeg", "image/png", "image/gif", "image/webp"},
		RateLimitDeferral: platform.DefaultRateLimitDeferral,
	}
}

// UploadMedia stores an unpublished page photo that a feed post can attach later.
func (c *Client) UploadMedia(ctx context.Context, account platform.Account, upload platform.MediaUpload) (string, error) {
	if upload.SourceURL == "" {
		return "", &platform.Error{Platform: models.PlatformFacebook, Kind: platform.ErrorPermanent,
			Message: fmt.Sprintf("%s has no public URL", upload.Filename)}
	}

	params := map[string]any{
		"url":       upload.SourceURL,
		"published": false,
	}
	if upload.AltText != "" {
		params["alt_text_custom"] = upload.AltText
	}

	var result graph.IDResponse
	if err := c.graph.Post(ctx, fmt.Sprintf("/%s/photos", account.ExternalID), account.AccessToken, params, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", &platform.Error{Platform: models.PlatformFacebook, Kind: platform.ErrorTransient, Message: "no photo id returned"}
	}
	return result.ID, nil
}

func (c *Client) PublishPost(ctx context.Context, account platform.Account, req platform.PublishRequest) (*platform.PublishResult, error) {
	params := map[string]any{"message": req.Content}
	if len(req.Media) > 0 {
		attached := make([]map[string]string, 0, len(req.Media))
		for _, m := range req.Media {
			attached = append(attached, map[string]string{"media_fbid": m.ID})
		}
		params["attached_media"] = attached
	}
	if link := req.Options["link"]; link != "" {
		params["link"] = link
	}

	var result graph.IDResponse
	if err := c.graph.Post(ctx, fmt.Sprintf("/%s/feed", account.ExternalID), account.AccessToken, params, &result); err != nil {
		return nil, err
	}
	if result.ID == "" {
		return nil, &platform.Error{Platform: models.PlatformFacebook, Kind: platform.ErrorTransient, Message: "no post id returned"}
	}
	return &platform.PublishResult{
		PlatformPostID: result.ID,
		URL:            "https://www.facebook.com/" + result.ID,
	}, nil
}

var _ platform.Client = (*Client)(nil)
