// Package notifications delivers service status changes to chat webhooks.
package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bissquit/healthboard/internal/domain"
	"github.com/bissquit/healthboard/internal/tasks"
	"golang.org/x/time/rate"
)

// Sender delivers a rendered notification.
type Sender interface {
	Send(ctx context.Context, notification Notification) error
}

// Submitter runs delivery tasks in the background.
type Submitter interface {
	Submit(ctx context.Context, task tasks.Task) (<-chan tasks.Result, error)
}

// NotifierConfig contains delivery configuration.
type NotifierConfig struct {
	WebhookURL        string
	BaseURL           string
	RateLimit         float64 // messages per second
	Burst             int
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultNotifierConfig returns default delivery configuration.
func DefaultNotifierConfig() NotifierConfig {
	return NotifierConfig{
		RateLimit:         1,
		Burst:             5,
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        1 * time.Minute,
		BackoffMultiplier: 2.0,
	}
}

// Notifier renders status changes and delivers them asynchronously.
// It implements health.StatusNotifier.
type Notifier struct {
	config   NotifierConfig
	renderer *Renderer
	sender   Sender
	pool     Submitter
	limiter  *rate.Limiter
	sleep    func(ctx context.Context, d time.Duration) bool
}

// NewNotifier creates a new Notifier.
func NewNotifier(config NotifierConfig, renderer *Renderer, sender Sender, pool Submitter) *Notifier {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}

	return &Notifier{
		config:   config,
		renderer: renderer,
		sender:   sender,
		pool:     pool,
		limiter:  rate.NewLimiter(limit, config.Burst),
		sleep:    sleep,
	}
}

// NotifyStatusChanges queues one notification per change. Failures are
// logged; they never fail the caller's write.
func (n *Notifier) NotifyStatusChanges(ctx context.Context, changes []domain.ServiceStatusChange) {
	for _, change := range changes {
		notification, err := n.render(change)
		if err != nil {
			slog.Error("failed to render notification", "service", change.Slug, "error", err)
			recordNotificationSent("failed")
			continue
		}

		if _, err := n.pool.Submit(ctx, n.deliveryTask(notification)); err != nil {
			slog.Error("failed to queue notification", "service", change.Slug, "error", err)
			recordNotificationSent("dropped")
			continue
		}

		slog.Debug("notification queued",
			"service", change.Slug,
			"from", change.OldStatus.String(),
			"to", change.NewStatus.String(),
		)
	}
}

func (n *Notifier) render(change domain.ServiceStatusChange) (Notification, error) {
	subject, body, err := n.renderer.RenderStatusChange(NewStatusChangePayload(change, n.config.BaseURL))
	if err != nil {
		return Notification{}, err
	}
	return Notification{To: n.config.WebhookURL, Subject: subject, Body: body}, nil
}

func (n *Notifier) deliveryTask(notification Notification) tasks.Task {
	return func(ctx context.Context) (any, error) {
		return nil, n.deliver(ctx, notification)
	}
}

// deliver sends with rate limiting and retries retryable errors with
// exponential backoff.
func (n *Notifier) deliver(ctx context.Context, notification Notification) error {
	start := time.Now()
	defer func() { recordNotificationDuration(time.Since(start)) }()

	for attempt := 1; ; attempt++ {
		if err := n.limiter.Wait(ctx); err != nil {
			recordNotificationSent("failed")
			return fmt.Errorf("wait for rate limiter: %w", err)
		}

		err := n.sender.Send(ctx, notification)
		if err == nil {
			recordNotificationSent("sent")
			slog.Debug("notification sent", "subject", notification.Subject, "attempt", attempt)
			return nil
		}

		slog.Warn("send failed",
			"subject", notification.Subject,
			"attempt", attempt,
			"max_attempts", n.config.MaxAttempts,
			"error", err,
		)

		if !isRetryable(err) {
			recordNotificationSent("failed")
			return err
		}
		if attempt >= n.config.MaxAttempts {
			recordNotificationSent("failed")
			return fmt.Errorf("max attempts exceeded: %w", err)
		}

		recordNotificationSent("retry")
		if !n.sleep(ctx, n.calculateBackoff(attempt)) {
			recordNotificationSent("failed")
			return fmt.Errorf("%w: %v", ErrNotifierStopped, ctx.Err())
		}
	}
}

func (n *Notifier) calculateBackoff(attempt int) time.Duration {
	backoff := float64(n.config.InitialBackoff)
	for i := 1; i < attempt; i++ {
		backoff *= n.config.BackoffMultiplier
	}

	if backoff > float64(n.config.MaxBackoff) {
		backoff = float64(n.config.MaxBackoff)
	}
	return time.Duration(backoff)
}

// sleep waits for d or until ctx is done. Returns false if cancelled.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
