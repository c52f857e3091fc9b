// Package mattermost delivers notifications to Mattermost-compatible
// incoming webhooks.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bissquit/healthboard/internal/notifications"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultUsername = "healthboard"
	maxErrorBody    = 512
)

// Config holds webhook sender configuration. The webhook URL travels in
// Notification.To.
type Config struct {
	Username string // display name, default "healthboard"
	IconURL  string
	Channel  string // overrides the webhook's default channel when set
	Timeout  time.Duration
}

// Sender posts notifications to an incoming webhook.
type Sender struct {
	config     Config
	httpClient *http.Client
}

// NewSender creates a new webhook sender.
func NewSender(config Config) *Sender {
	if config.Username == "" {
		config.Username = defaultUsername
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	return &Sender{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

type webhookPayload struct {
	Text     string `json:"text"`
	Username string `json:"username,omitempty"`
	IconURL  string `json:"icon_url,omitempty"`
	Channel  string `json:"channel,omitempty"`
}

// Send implements notifications.Sender.
func (s *Sender) Send(ctx context.Context, notification notifications.Notification) error {
	webhookURL := notification.To
	if webhookURL == "" {
		return notifications.NewNonRetryableError(&StatusError{Message: "webhook URL is empty"})
	}

	payload := webhookPayload{
		Text:     notification.Body,
		Username: s.config.Username,
		IconURL:  s.config.IconURL,
		Channel:  s.config.Channel,
	}
	if notification.Subject != "" {
		payload.Text = fmt.Sprintf("### %s\n\n%s", notification.Subject, notification.Body)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return notifications.NewNonRetryableError(fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return notifications.NewNonRetryableError(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return notifications.NewRetryableError(&StatusError{Message: fmt.Sprintf("send request: %v", err)})
	}
	defer func() { _ = resp.Body.Close() }()

	return s.handleResponse(resp, webhookURL)
}

func (s *Sender) handleResponse(resp *http.Response, webhookURL string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	statusErr := &StatusError{Code: resp.StatusCode}
	switch {
	case resp.StatusCode == http.StatusOK:
		slog.Debug("webhook message sent", "webhook", maskWebhookURL(webhookURL))
		return nil
	case resp.StatusCode == http.StatusBadRequest:
		statusErr.Message = "bad request: " + string(body)
		return notifications.NewNonRetryableError(statusErr)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		statusErr.Message = "invalid or expired webhook"
		return notifications.NewNonRetryableError(statusErr)
	case resp.StatusCode == http.StatusNotFound:
		statusErr.Message = "webhook not found"
		return notifications.NewNonRetryableError(statusErr)
	case resp.StatusCode == http.StatusTooManyRequests:
		statusErr.Message = "rate limited"
		return notifications.NewRetryableError(statusErr)
	case resp.StatusCode >= http.StatusInternalServerError:
		statusErr.Message = "server error: " + string(body)
		return notifications.NewRetryableError(statusErr)
	default:
		statusErr.Message = fmt.Sprintf("unexpected status: %s", string(body))
		return notifications.NewNonRetryableError(statusErr)
	}
}

// maskWebhookURL hides the webhook secret for logging.
func maskWebhookURL(url string) string {
	if len(url) > 40 {
		return url[:20] + "..." + url[len(url)-10:]
	}
	return url
}

// StatusError describes a failed webhook call.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("webhook error %d: %s", e.Code, e.Message)
	}
	return "webhook error: " + e.Message
}
