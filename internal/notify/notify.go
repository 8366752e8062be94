// Package notify posts ask-user prompts and completion pings to a
// configured webhook URL, throttled so a runaway agent network cannot
// flood the receiving endpoint.
//
// Grounded on the teacher's internal/channels package: the outbound
// HTTP call shape follows internal/channels/slack/attachments.go's
// http.NewRequestWithContext usage, and the throttling need mirrors
// internal/channels/ratelimit.go's token-bucket purpose — but where the
// teacher hand-rolls that limiter, this repo wires golang.org/x/time/rate
// directly per SPEC_FULL.md's domain-stack expansion.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Kind discriminates a notification's purpose.
type Kind string

const (
	KindAskUser    Kind = "ask_user"
	KindCompletion Kind = "completion"
)

// Notification is the payload posted to the webhook.
type Notification struct {
	Kind      Kind   `json:"kind"`
	NetworkID string `json:"networkId"`
	AgentID   string `json:"agentId"`
	Message   string `json:"message"`
	SentAt    time.Time `json:"sentAt"`
}

// Notifier posts Notifications to WebhookURL, rate limited.
type Notifier struct {
	WebhookURL string
	client     *http.Client
	limiter    *rate.Limiter
}

// New returns a Notifier posting to webhookURL, allowing up to
// burst notifications immediately and ratePerSecond thereafter.
func New(webhookURL string, ratePerSecond float64, burst int) *Notifier {
	return &Notifier{
		WebhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// Send waits for throttling, then POSTs n as JSON to WebhookURL. It
// returns an error describing either the throttle wait being cancelled
// or the HTTP call failing — never panics on a misconfigured endpoint.
func (n *Notifier) Send(ctx context.Context, notification Notification) error {
	if n.WebhookURL == "" {
		return fmt.Errorf("notify: no webhook URL configured")
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notify: rate limit wait: %w", err)
	}

	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("notify: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
