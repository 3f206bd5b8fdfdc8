package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type NotificationService interface {
	NotifyPostPublished(ctx context.Context, postID int64) error
	NotifyPostFailed(ctx context.Context, postID int64, reason string) error
}

type Notification struct {
	Event     string    `json:"event"`
	PostID    int64     `json:"post_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type webhookNotifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewNotificationService posts notifications to a webhook. With an empty url
// notifications are only logged.
func NewNotificationService(url string, client *http.Client, logger *zap.Logger) NotificationService {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &webhookNotifier{url: url, client: client, logger: logger.Named("notifications")}
}

func (n *webhookNotifier) NotifyPostPublished(ctx context.Context, postID int64) error {
	return n.send(ctx, Notification{Event: "post.published", PostID: postID, Timestamp: time.Now().UTC()})
}

func (n *webhookNotifier) NotifyPostFailed(ctx context.Context, postID int64, reason string) error {
	return n.send(ctx, Notification{Event: "post.failed", PostID: postID, Reason: reason, Timestamp: time.Now().UTC()})
}

func (n *webhookNotifier) send(ctx context.Context, msg Notification) error {
	if n.url == "" {
		n.logger.Info("notification", zap.String("event", msg.Event), zap.Int64("post_id", msg.PostID), zap.String("reason", msg.Reason))
		return nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s notification: %w", msg.Event, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("send %s notification: webhook returned %d", msg.Event, resp.StatusCode)
	}
	return nil
}
