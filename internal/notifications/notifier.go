package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lala/internal/config"
)

const userAgent = "lala/0.1"

// Notification is one message posted to the topic.
type Notification struct {
	Title    string
	Message  string
	Tags     []string
	Priority string
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NewNotifier builds an ntfy-backed notifier when a topic is configured.
// When no topic is configured, a noop implementation is returned.
func NewNotifier(cfg *config.Config) Notifier {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopNotifier{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyNotifier{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether n delivers anywhere.
func Enabled(n Notifier) bool {
	_, noop := n.(noopNotifier)
	return n != nil && !noop
}

type ntfyNotifier struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyNotifier) Notify(ctx context.Context, data Notification) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.Message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.Title != "" {
		req.Header.Set("Title", data.Title)
	}
	if len(data.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.Tags, ","))
	}
	if data.Priority != "" && data.Priority != "default" {
		req.Header.Set("Priority", data.Priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Notification) error { return nil }
