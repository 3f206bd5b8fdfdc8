// Package x publishes through the X API v2.
package x

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
)

const DefaultBaseURL = "https://api.x.com"

// X rate limit windows are 15 minutes, so a shorter deferral only burns attempts.
const rateLimitDeferral = 15 * time.Minute

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

func (c *Client) Platform() models.Platform { return models.PlatformX }

func (c *Client) Limits() platform.Limits {
	return platform.Limits{
		MaxContentLength:  280,
		MaxMediaCount:     4,
		MaxMediaBytes:     5 << 20,
		AcceptedMIMETypes: []string{"image/jpeg", "image/png", "image/gif", "image/webp"},
		RateLimitDeferral: rateLimitDeferral,
	}
}

func (c *Client) classify(p models.Platform, status int, header http.Header, body []byte) *platform.Error {
	e := platform.ClassifyResponse(p, status, header, body)
	if e.Kind == platform.ErrorRateLimited && e.RetryAfter == 0 {
		e.RetryAfter = rateLimitDeferral
	}
	return e
}

func (c *Client) UploadMedia(ctx context.Context, account platform.Account, upload platform.MediaUpload) (string, error) {
	client := platform.BearerClient(ctx, c.http, account.AccessToken)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("media", upload.Filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(upload.Data); err != nil {
		return "", fmt.Errorf("failed to write media: %w", err)
	}
	if err := mw.WriteField("media_category", "tweet_image"); err != nil {
		return "", fmt.Errorf("failed to write field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/2/media/upload", &buf)
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if _, err := platform.DoWith(client, models.PlatformX, req, &resp, c.classify); err != nil {
		return "", err
	}
	if resp.Data.ID == "" {
		return "", &platform.Error{Platform: models.PlatformX, Kind: platform.ErrorTransient, Message: "no media id returned"}
	}

	if upload.AltText != "" {
		meta, err := platform.NewJSONRequest(ctx, http.MethodPost, c.baseURL+"/2/media/metadata", map[string]any{
			"id":       resp.Data.ID,
			"metadata": map[string]any{"alt_text": map[string]string{"text": upload.AltText}},
		})
		if err != nil {
			return "", err
		}
		if _, err := platform.DoWith(client, models.PlatformX, meta, nil, c.classify); err != nil {
			return "", err
		}
	}

	return resp.Data.ID, nil
}

func (c *Client) PublishPost(ctx context.Context, account platform.Account, req platform.PublishRequest) (*platform.PublishResult, error) {
	client := platform.BearerClient(ctx, c.http, account.AccessToken)

	payload := map[string]any{"text": req.Content}
	if len(req.Media) > 0 {
		ids := make([]string, 0, len(req.Media))
		for _, m := range req.Media {
			ids = append(ids, m.ID)
		}
		payload["media"] = map[string]any{"media_ids": ids}
	}
	if replyTo := req.Options["reply_to"]; replyTo != "" {
		payload["reply"] = map[string]string{"in_reply_to_tweet_id": replyTo}
	}

	httpReq, err := platform.NewJSONRequest(ctx, http.MethodPost, c.baseURL+"/2/tweets", payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if _, err := platform.DoWith(client, models.PlatformX, httpReq, &resp, c.classify); err != nil {
		return nil, err
	}
	if resp.Data.ID == "" {
		return nil, &platform.Error{Platform: models.PlatformX, Kind: platform.ErrorTransient, Message: "no post id returned"}
	}
	return &platform.PublishResult{
		PlatformPostID: resp.Data.ID,
		URL:            "https://x.com/i/web/status/" + resp.Data.ID,
	}, nil
}

var _ platform.Client = (*Client)(nil)
