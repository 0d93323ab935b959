package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/salesvox/conversa/internal/config"
	"github.com/salesvox/conversa/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertConversationFailureRate AlertType = "conversation_failure_rate"
	AlertReconciliationErrors    AlertType = "reconciliation_errors"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitorConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitorConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	// Conversation failure rate, only once enough conversations finished.
	finished := snap.ConversationsCompleted + snap.ConversationsFailed
	if finished >= 5 && snap.ConversationFailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertConversationFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Conversation failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished)",
				snap.ConversationFailRate*100, a.cfg.FailureRateThreshold*100,
				snap.ConversationsFailed, finished,
			),
			Details: map[string]any{
				"failure_rate": snap.ConversationFailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.ConversationsFailed,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}

	// Reconciliation error rate within the lookback window.
	if snap.ReconcileTotal >= 5 && snap.ReconcileErrorRate > a.cfg.ErrorRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertReconciliationErrors,
			Severity: "high",
			Message: fmt.Sprintf(
				"Reconciliation error rate %.1f%% exceeds threshold %.1f%% (%d errors / %d runs in last %dh)",
				snap.ReconcileErrorRate*100, a.cfg.ErrorRateThreshold*100,
				snap.ReconcileErrors, snap.ReconcileTotal, snap.LookbackHours,
			),
			Details: map[string]any{
				"error_rate": snap.ReconcileErrorRate,
				"threshold":  a.cfg.ErrorRateThreshold,
				"errors":     snap.ReconcileErrors,
				"total":      snap.ReconcileTotal,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL, retrying transient
// delivery failures with backoff.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	return resilience.Do(ctx, resilience.DefaultRetryConfig(), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
		if err != nil {
			return eris.Wrap(err, "monitoring: create webhook request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := a.client.Do(req)
		if err != nil {
			return resilience.NewTransientError(eris.Wrap(err, "monitoring: webhook request"), 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return resilience.NewTransientError(eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode), resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
		}
		return nil
	})
}
