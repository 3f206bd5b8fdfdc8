// Package linkedin publishes through the LinkedIn versioned REST API (Posts and Images).
package linkedin

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
)

const (
	DefaultBaseURL = "https://api.linkedin.com"
	apiVersion     = "202401"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = platform.DefaultHTTPClient()
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) Platform() models.Platform { return models.PlatformLinkedIn }

func (c *Client) Limits() platform.Limits {
	return platform.Limits{
		MaxContentLength:  3000,
		MaxMediaCount:     20,
		MaxMediaBytes:     36 << 20,
		AcceptedMIMETypes: []string{"image/jpeg", "image/png", "image/gif"},
		RateLimitDeferral: platform.DefaultRateLimitDeferral,
	}
}

// authorURN accepts either a bare member id or a full person/organization URN.
func authorURN(externalID string) string {
	if strings.HasPrefix(externalID, "urn:") {
		return externalID
	}
	return "urn:li:person:" + externalID
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	req, err := platform.NewJSONRequest(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("LinkedIn-Version", apiVersion)
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
	return req, nil
}

// UploadMedia registers an image and PUTs its bytes to the returned upload URL.
func (c *Client) UploadMedia(ctx context.Context, account platform.Account, upload platform.MediaUpload) (string, error) {
	client := platform.BearerClient(ctx, c.http, account.AccessToken)

	req, err := c.newRequest(ctx, http.MethodPost, "/rest/images?action=initializeUpload", map[string]any{
		"initializeUploadRequest": map[string]string{"owner": authorURN(account.ExternalID)},
	})
	if err != nil {
		return "", err
	}

	var initResp struct {
		Value struct {
			UploadURL string `json:"uploadUrl"`
			Image     string `json:"image"`
		} `json:"value"`
	}
	if _, err := platform.Do(client, models.PlatformLinkedIn, req, &initResp); err != nil {
		return "", err
	}
	if initResp.Value.UploadURL == "" || initResp.Value.Image == "" {
		return "", &platform.Error{Platform: models.PlatformLinkedIn, Kind: platform.ErrorTransient, Message: "image upload was not initialized"}
	}

	put, err := http.NewRequestWithContext(ctx, http.MethodPut, initResp.Value.UploadURL, bytes.NewReader(upload.Data))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	put.Header.Set("Content-Type", upload.MimeType)
	if _, err := platform.Do(client, models.PlatformLinkedIn, put, nil); err != nil {
		return "", err
	}

	return initResp.Value.Image, nil
}

func (c *Client) PublishPost(ctx context.Context, account platform.Account, req platform.PublishRequest) (*platform.PublishResult, error) {
	client := platform.BearerClient(ctx, c.http, account.AccessToken)

	payload := map[string]any{
		"author":     authorURN(account.ExternalID),
		"commentary": req.Content,
		"visibility": "PUBLIC",
		"distribution": map[string]any{
			"feedDistribution":               "MAIN_FEED",
			"targetEntities":                 []any{},
			"thirdPartyDistributionChannels": []any{},
		},
		"lifecycleState":            "PUBLISHED",
		"isReshareDisabledByAuthor": false,
	}
	switch len(req.Media) {
	case 0:
	case 1:
		payload["content"] = map[string]any{"media": map[string]string{"id": req.Media[0].ID}}
	default:
		images := make([]map[string]string, 0, len(req.Media))
		for _, m := range req.Media {
			images = append(images, map[string]string{"id": m.ID})
		}
		payload["content"] = map[string]any{"multiImage": map[string]any{"images": images}}
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/rest/posts", payload)
	if err != nil {
		return nil, err
	}
	header, err := platform.Do(client, models.PlatformLinkedIn, httpReq, nil)
	if err != nil {
		return nil, err
	}

	postURN := header.Get("x-restli-id")
	if postURN == "" {
		return nil, &platform.Error{Platform: models.PlatformLinkedIn, Kind: platform.ErrorTransient, Message: "no post id returned"}
	}
	return &platform.PublishResult{
		PlatformPostID: postURN,
		URL:            "https://www.linkedin.com/feed/update/" + postURN,
	}, nil
}

var _ platform.Client = (*Client)(nil)
