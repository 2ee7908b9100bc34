// Package notify hands finished-pipeline events to the external notification
// system. Delivery is best-effort: a failed notification never rolls back the
// call record or claim that was already persisted.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/warranty-intake/internal/model"
	"github.com/sells-group/warranty-intake/internal/resilience"
)

// Scenario identifies which pipeline outcome is being reported.
type Scenario string

const (
	ScenarioClaimCreated   Scenario = "claim_created"
	ScenarioMatchedNoClaim Scenario = "matched_no_claim"
	ScenarioUnmatched      Scenario = "unmatched"
)

// Event is the finished-pipeline payload consumed by the notification system.
type Event struct {
	Scenario   Scenario          `json:"scenario"`
	CallRecord *model.CallRecord `json:"call_record"`
	Homeowner  *model.Homeowner  `json:"homeowner,omitempty"`
	Claim      *model.Claim      `json:"claim,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Dispatcher delivers pipeline events. Implementations must be safe for
// concurrent use.
type Dispatcher interface {
	Notify(ctx context.Context, event Event)
}

// Config configures the webhook dispatcher.
type Config struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// WebhookDispatcher posts events to the notification system's webhook.
type WebhookDispatcher struct {
	cfg    Config
	client *http.Client
}

// NewWebhook creates a webhook-backed dispatcher.
func NewWebhook(cfg Config) *WebhookDispatcher {
	return &WebhookDispatcher{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify posts the event with bounded retries. Every failure is logged and
// swallowed.
func (d *WebhookDispatcher) Notify(ctx context.Context, event Event) {
	if d.cfg.WebhookURL == "" {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("notify", string(event.Scenario))

	err := resilience.Do(ctx, retryCfg, func(ctx context.Context) error {
		return d.send(ctx, event)
	})
	if err != nil {
		zap.L().Error("notify: delivery failed",
			zap.String("scenario", string(event.Scenario)),
			zap.Error(err),
		)
		return
	}
	zap.L().Info("notify: delivered", zap.String("scenario", string(event.Scenario)))
}

func (d *WebhookDispatcher) send(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return eris.Wrap(err, "notify: marshal event")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: post event")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return resilience.NewTransientError(
			eris.Errorf("notify: webhook returned status %d", resp.StatusCode),
			resp.StatusCode,
		)
	}
	if resp.StatusCode >= 400 {
		return eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Nop is a Dispatcher that drops every event. Used when no webhook is
// configured and in tests.
type Nop struct{}

// Notify implements Dispatcher.
func (Nop) Notify(context.Context, Event) {}
