// Package instagram publishes through the Instagram Graph API content publishing flow:
// create a media container, then publish it.
package instagram

import (
	"context"
	"fmt"
	"net/http"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/maheshrc27/postflow/internal/platform/graph"
)

const DefaultBaseURL = "https://graph.instagram.com/v21.0"

type Client struct {
	graph *graph.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{graph: graph.New(models.PlatformInstagram, baseURL, httpClient)}
}

func (c *Client) Platform() models.Platform { return models.PlatformInstagram }

func (c *Client) Limits() platform.Limits {
	return platform.Limits{
		MaxContentLength:  2200,
		RequiresMedia:     true,
		MaxMediaCount:     10,
		MaxMediaBytes:     8 << 20,
		AcceptedMIMETypes: []string{"image/jpeg", "image/png"},
		RateLimitDeferral: platform.DefaultRateLimitDeferral,
	}
}

// UploadMedia creates a carousel item container. Instagram fetches the image
// itself, so the source URL must be publicly reachable.
func (c *Client) UploadMedia(ctx context.Context, account platform.Account, upload platform.MediaUpload) (string, error) {
	if upload.SourceURL == "" {
		return "", &platform.Error{Platform: models.PlatformInstagram, Kind: platform.ErrorPermanent,
			Message: fmt.Sprintf("%s has no public URL", upload.Filename)}
	}

	params := map[string]any{
		"image_url":        upload.SourceURL,
		"is_carousel_item": true,
	}
	if upload.AltText != "" {
		params["alt_text"] = upload.AltText
	}

	var result graph.IDResponse
	if err := c.graph.Post(ctx, fmt.Sprintf("/%s/media", account.ExternalID), account.AccessToken, params, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", &platform.Error{Platform: models.PlatformInstagram, Kind: platform.ErrorTransient, Message: "no container id returned"}
	}
	return result.ID, nil
}

func (c *Client) PublishPost(ctx context.Context, account platform.Account, req platform.PublishRequest) (*platform.PublishResult, error) {
	if len(req.Media) == 0 {
		return nil, &platform.Error{Platform: models.PlatformInstagram, Kind: platform.ErrorPermanent, Message: "instagram posts require media"}
	}

	var params map[string]any
	if len(req.Media) == 1 {
		// a single image is its own container, the item container is only used in carousels
		params = map[string]any{
			"image_url": req.Media[0].SourceURL,
			"caption":   req.Content,
		}
	} else {
		children := make([]string, 0, len(req.Media))
		for _, m := range req.Media {
			children = append(children, m.ID)
		}
		params = map[string]any{
			"media_type": "CAROUSEL",
			"caption":    req.Content,
			"children":   children,
		}
	}

	var container graph.IDResponse
	if err := c.graph.Post(ctx, fmt.Sprintf("/%s/media", account.ExternalID), account.AccessToken, params, &container); err != nil {
		return nil, err
	}
	if container.ID == "" {
		return nil, &platform.Error{Platform: models.PlatformInstagram, Kind: platform.ErrorTransient, Message: "no container id returned"}
	}

	var published graph.IDResponse
	err := c.graph.Post(ctx, fmt.Sprintf("/%s/media_publish", account.ExternalID), account.AccessToken,
		map[string]any{"creation_id": container.ID}, &published)
	if err != nil {
		return nil, err
	}
	if published.ID == "" {
		return nil, &platform.Error{Platform: models.PlatformInstagram, Kind: platform.ErrorTransient, Message: "no media id returned"}
	}

	return &platform.PublishResult{PlatformPostID: published.ID}, nil
}

var _ platform.Client = (*Client)(nil)
