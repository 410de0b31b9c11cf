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

	"github.com/sells-group/listing-recon/internal/config"
	"github.com/sells-group/listing-recon/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertLowConsistencyRate AlertType = "low_consistency_rate"
	AlertAverageConsistency AlertType = "average_consistency"
	AlertIdle               AlertType = "no_comparisons"
)

// minProperties is the sample size below which rate alerts stay quiet.
const minProperties = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds and posts
// alerts to a webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	retry  resilience.RetryConfig
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
			Multiplier:     2,
			JitterFraction: 0.2,
			OnRetry:        resilience.LogRetry("alert webhook"),
		},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if snap.Properties == 0 {
		if a.cfg.AlertOnIdle {
			alerts = append(alerts, Alert{
				Type:      AlertIdle,
				Severity:  "medium",
				Message:   fmt.Sprintf("No properties compared in last %dh", snap.LookbackHours),
				Timestamp: now,
			})
		}
		return alerts
	}

	if a.cfg.LowConsistencyRate > 0 && snap.Properties >= minProperties && snap.LowRate > a.cfg.LowConsistencyRate {
		alerts = append(alerts, Alert{
			Type:     AlertLowConsistencyRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"%.1f%% of properties have low consistency, threshold %.1f%% (%d of %d in last %dh)",
				snap.LowRate*100, a.cfg.LowConsistencyRate*100,
				snap.Bands["low"], snap.Properties, snap.LookbackHours,
			),
			Details: map[string]any{
				"low_rate":   snap.LowRate,
				"threshold":  a.cfg.LowConsistencyRate,
				"low":        snap.Bands["low"],
				"properties": snap.Properties,
			},
			Timestamp: now,
		})
	}

	if a.cfg.MinAverageConsistency > 0 && snap.AvgConsistency < a.cfg.MinAverageConsistency {
		alerts = append(alerts, Alert{
			Type:     AlertAverageConsistency,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Average consistency %.1f%% is below %.1f%% across %d properties in last %dh",
				snap.AvgConsistency, a.cfg.MinAverageConsistency, snap.Properties, snap.LookbackHours,
			),
			Details: map[string]any{
				"avg_consistency": snap.AvgConsistency,
				"minimum":         a.cfg.MinAverageConsistency,
				"critical_issues": snap.CriticalIssues,
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

// sendWebhook posts a single alert, retrying network errors and retryable
// status codes.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	_, err = resilience.Do(ctx, a.retry, func(ctx context.Context) (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
		if err != nil {
			return struct{}{}, eris.Wrap(err, "monitoring: create webhook request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := a.client.Do(req)
		if err != nil {
			return struct{}{}, resilience.NewTransientError(eris.Wrap(err, "monitoring: webhook request"), 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode >= 400 {
			err := eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return struct{}{}, resilience.NewTransientError(err, resp.StatusCode)
			}
			return struct{}{}, err
		}
		return struct{}{}, nil
	})
	return err
}
