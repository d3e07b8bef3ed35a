package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DiscordContentLimit is the maximum length of a webhook message.
	DiscordContentLimit = 2000
	discordTimeout      = 10 * time.Second
)

// StatusError is returned when a chat API answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Discord posts messages to a Discord channel webhook.
type Discord struct {
	webhookURL string
	httpClient *http.Client
	retry      *retryPolicy
}

type discordPayload struct {
	Content  string `json:"content"`
	Username string `json:"username,omitempty"`
}

// NewDiscord creates a Discord notifier for a webhook URL.
func NewDiscord(webhookURL string) (*Discord, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("discord webhook URL is required")
	}
	return &Discord{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: discordTimeout},
	}, nil
}

// WithRetry retries each post with backoff until maxElapsed.
func (d *Discord) WithRetry(maxElapsed time.Duration) *Discord {
	d.retry = newRetryPolicy(maxElapsed)
	return d
}

// Notify posts the message, split into several posts when it exceeds the
// content limit. A failed post is retried on its own; earlier posts are not
// repeated.
func (d *Discord) Notify(ctx context.Context, msg Message) error {
	if msg.Text == "" {
		return fmt.Errorf("message text is required")
	}
	for _, chunk := range SplitContent(msg.Text, DiscordContentLimit) {
		payload := discordPayload{Content: chunk, Username: msg.Username}
		err := d.retry.do(ctx, msg.Site, func() error {
			return d.post(ctx, payload)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *Discord) post(ctx context.Context, payload discordPayload) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord webhook: %w", &StatusError{Code: resp.StatusCode, Body: string(body)})
	}
	return nil
}
