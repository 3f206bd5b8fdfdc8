package x

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/postflow/internal/platform"
)

var account = platform.Account{ID: 7, ExternalID: "999", AccessToken: "x-token"}

func TestUploadAndPublish(t *testing.T) {
	var tweet map[string]any
	var altText map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("/2/media/upload", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer x-token", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "tweet_image", r.FormValue("media_category"))
		f, hdr, err := r.FormFile("media")
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "cat.png", hdr.Filename)
		assert.Equal(t, []byte("cat"), data)
		w.Write([]byte(`{"data":{"id":"m-1"}}`))
	})
	mux.HandleFunc("/2/media/metadata", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&altText))
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/2/tweets", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&tweet))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"1850","text":"hi"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	id, err := c.UploadMedia(context.Background(), account, platform.MediaUpload{
		Data: []byte("cat"), Filename: "cat.png", MimeType: "image/png", AltText: "a cat",
	})
	require.NoError(t, err)
	assert.Equal(t, "m-1", id)
	assert.Equal(t, "m-1", altText["id"])

	res, err := c.PublishPost(context.Background(), account, platform.PublishRequest{
		Content: "hi",
		Media:   []platform.Media{{ID: id}},
	})
	require.NoError(t, err)
	assert.Equal(t, "1850", res.PlatformPostID)
	assert.Equal(t, "hi", tweet["text"])
	assert.Equal(t, map[string]any{"media_ids": []any{"m-1"}}, tweet["media"])
}

func TestRateLimitUsesResetHeader(t *testing.T) {
	reset := time.Now().Add(10 * time.Minute).Unix()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-rate-limit-reset", strconv.FormatInt(reset, 10))
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"title":"Too Many Requests","detail":"Too Many Requests","status":429}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, srv.Client()).PublishPost(context.Background(), account, platform.PublishRequest{Content: "x"})
	perr, ok := platform.AsError(err)
	require.True(t, ok)
	assert.Equal(t, platform.ErrorRateLimited, perr.Kind)
	assert.InDelta(t, (10 * time.Minute).Seconds(), perr.RetryAfter.Seconds(), 2)
}

func TestRateLimitWithoutHintDefersFifteenMinutes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := New(srv.URL, srv.Client()).PublishPost(context.Background(), account, platform.PublishRequest{Content: "x"})
	perr, ok := platform.AsError(err)
	require.True(t, ok)
	assert.Equal(t, 15*time.Minute, perr.RetryAfter)
	assert.Equal(t, 15*time.Minute, New("", nil).Limits().RateLimitDeferral)
}

func TestDuplicateIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"detail":"You are not allowed to create a Tweet with duplicate content."}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, srv.Client()).PublishPost(context.Background(), account, platform.PublishRequest{Content: "dup"})
	kind, ok := platform.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, platform.ErrorPermanent, kind)
}
