// Package graph talks to the Meta Graph API shared by the Instagram and Facebook adapters.
package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
)

type Client struct {
	platform models.Platform
	baseURL  string
	http     *http.Client
}

func New(p models.Platform, baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = platform.DefaultHTTPClient()
	}
	return &Client{platform: p, baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type IDResponse struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
}

// Post sends params as a JSON body with the access token attached.
func (c *Client) Post(ctx context.Context, path, accessToken string, params map[string]any, out any) error {
	payload := make(map[string]any, len(params)+1)
	for k, v := range params {
		payload[k] = v
	}
	payload["access_token"] = accessToken

	req, err := platform.NewJSONRequest(ctx, http.MethodPost, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	_, err = platform.DoWith(c.http, c.platform, req, out, Classify)
	return err
}

// Classify reads the Graph error envelope. The Graph API reports throttling and
// expired tokens with error codes on a plain 400, so status alone is not enough.
func Classify(p models.Platform, status int, header http.Header, body []byte) *platform.Error {
	e := platform.ClassifyResponse(p, status, header, body)

	var envelope struct {
		Error struct {
			Message     string `json:"message"`
			Code        int    `json:"code"`
			Subcode     int    `json:"error_subcode"`
			IsTransient bool   `json:"is_transient"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) != nil || envelope.Error.Code == 0 {
		return e
	}

	switch envelope.Error.Code {
	case 190, 102, 463, 467:
		e.Kind = platform.ErrorAuthExpired
	case 4, 17, 32, 613, 80001, 80002:
		e.Kind = platform.ErrorRateLimited
		if e.RetryAfter == 0 {
			e.RetryAfter = platform.DefaultRateLimitDeferral
		}
	case 1, 2:
		e.Kind = platform.ErrorTransient
	default:
		if envelope.Error.IsTransient {
			e.Kind = platform.ErrorTransient
		}
	}
	return e
}
