package platform

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

// BearerClient returns an HTTP client that sends token as a bearer credential
// over base's transport.
func BearerClient(ctx context.Context, base *http.Client, token string) *http.Client {
	if base == nil {
		base = DefaultHTTPClient()
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
	client.Timeout = base.Timeout
	return client
}
