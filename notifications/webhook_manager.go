package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"options-flow-tracker/helpers"
	"options-flow-tracker/models"
)

// Webhook is one configured alert destination
type Webhook struct {
	URL        string        `yaml:"url"`
	Method     string        `yaml:"method"`
	AuthHeader string        `yaml:"auth_header"`
	AuthValue  string        `yaml:"auth_value"`
	AlertTypes []string      `yaml:"alert_types"` // empty matches all
	Symbols    []string      `yaml:"symbols"`     // empty matches all
	MinPremium float64       `yaml:"min_premium"`
	RetryCount int           `yaml:"retry_count"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// WebhookPayload represents the JSON payload sent to webhooks
type WebhookPayload struct {
	AlertID    string           `json:"alertId"`
	AlertType  string           `json:"alertType"`
	DetectedAt time.Time        `json:"detectedAt"`
	Message    string           `json:"message"`
	Alert      models.FlowAlert `json:"alert"`
}

// WebhookManager handles webhook notifications
type WebhookManager struct {
	webhooks []Webhook
	client   *http.Client
	log      *logrus.Entry

	ctx context.Context
	wg  sync.WaitGroup
}

// NewWebhookManager creates a new webhook manager. Deliveries stop when ctx is done.
func NewWebhookManager(ctx context.Context, webhooks []Webhook, logger *logrus.Logger) *WebhookManager {
	return &WebhookManager{
		webhooks: webhooks,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: logger.WithField("component", "webhooks"),
		ctx: ctx,
	}
}

// SendAlert sends the alert to matching webhooks asynchronously
func (wm *WebhookManager) SendAlert(alert models.FlowAlert) {
	if len(wm.webhooks) == 0 {
		return
	}

	payload := wm.CreatePayload(alert)
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		wm.log.WithError(err).Warn("⚠️  Failed to marshal webhook payload")
		return
	}

	for _, hook := range wm.webhooks {
		if wm.shouldSend(hook, alert) {
			wm.wg.Add(1)
			go func(hook Webhook) {
				defer wm.wg.Done()
				wm.deliverWebhook(hook, payload.AlertID, payloadBytes)
			}(hook)
		}
	}
}

// Wait blocks until in-flight deliveries finish
func (wm *WebhookManager) Wait() {
	wm.wg.Wait()
}

// CreatePayload generates the webhook payload from an alert
func (wm *WebhookManager) CreatePayload(alert models.FlowAlert) WebhookPayload {
	return WebhookPayload{
		AlertID:    uuid.New().String(),
		AlertType:  alert.AlertType,
		DetectedAt: alert.DetectedAt,
		Message:    FormatMessage(alert),
		Alert:      alert,
	}
}

// FormatMessage renders a readable one-line alert
// Example: "🐋 LARGE_SWEEP! NVDA BTO CALL 900 | Size: 500 | Premium: $1.25M | Stance: +62"
func FormatMessage(alert models.FlowAlert) string {
	if alert.AlertType == models.AlertLifecycle {
		return fmt.Sprintf("🔔 Auto-trade update: %s", alert.Kind)
	}
	return fmt.Sprintf("🐋 %s! %s %s %s %g | Size: %g | Premium: %s | Stance: %+.0f",
		alert.AlertType,
		alert.Symbol,
		alert.Direction,
		alert.OptionType,
		alert.Strike,
		alert.Size,
		helpers.FormatPremium(alert.Premium),
		alert.StanceScore,
	)
}

func (wm *WebhookManager) shouldSend(hook Webhook, alert models.FlowAlert) bool {
	// Check Alert Type filter
	if len(hook.AlertTypes) > 0 && !containsFold(hook.AlertTypes, alert.AlertType) {
		return false
	}

	// Lifecycle alerts carry no symbol or premium
	if alert.AlertType == models.AlertLifecycle {
		return true
	}

	// Check Symbol filter
	if len(hook.Symbols) > 0 && !containsFold(hook.Symbols, alert.Symbol) {
		return false
	}

	// Check thresholds
	if hook.MinPremium > 0 && alert.Premium < hook.MinPremium {
		return false
	}

	return true
}

func (wm *WebhookManager) deliverWebhook(hook Webhook, alertID string, payload []byte) {
	maxRetries := hook.RetryCount
	if maxRetries <= 0 {
		maxRetries = 1
	}
	method := hook.Method
	if method == "" {
		method = http.MethodPost
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(wm.ctx, method, hook.URL, bytes.NewReader(payload))
		if err != nil {
			wm.log.WithError(err).Warnf("⚠️  Invalid webhook %s", hook.URL)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "Options-Flow-Alert/1.0")
		req.Header.Set("X-Request-ID", alertID)
		if hook.AuthHeader != "" {
			req.Header.Set(hook.AuthHeader, hook.AuthValue)
		}

		wm.log.Debugf("🔹 Sending webhook to %s (Attempt %d/%d)", hook.URL, attempt, maxRetries)

		resp, err := wm.client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return
			}
			err = fmt.Errorf("status %d", resp.StatusCode)
		}
		lastErr = err

		// Wait before retry
		if attempt < maxRetries {
			select {
			case <-wm.ctx.Done():
				return
			case <-time.After(hook.RetryDelay):
			}
		}
	}

	wm.log.WithError(lastErr).Warnf("⚠️  Webhook delivery to %s failed after %d attempts", hook.URL, maxRetries)
}

func containsFold(values []string, v string) bool {
	for _, candidate := range values {
		if strings.EqualFold(candidate, v) {
			return true
		}
	}
	return false
}
