// Package notify delivers recalibration outcomes to an operator webhook.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/fightpulse/calibration/internal/config"
	"github.com/fightpulse/calibration/internal/service"
)

const (
	maxRetries   = 3
	retryWaitMin = 500 * time.Millisecond
	retryWaitMax = 5 * time.Second
)

// recalibrationEvent is the webhook payload for one recalibration run.
type recalibrationEvent struct {
	Event        string    `json:"event"`
	Stream       string    `json:"stream"`
	State        string    `json:"state"`
	RunID        string    `json:"run_id"`
	SampleSize   int       `json:"sample_size"`
	DriftReasons []string  `json:"drift_reasons,omitempty"`
	A            float64   `json:"a,omitempty"`
	B            float64   `json:"b,omitempty"`
	ECEBefore    *float64  `json:"ece_before,omitempty"`
	ECEAfter     *float64  `json:"ece_after,omitempty"`
	Error        string    `json:"error,omitempty"`
	FinishedAt   time.Time `json:"finished_at"`
}

// WebhookNotifier posts recalibration events to the configured URL with
// retries and a small rate limit. An empty URL disables delivery.
type WebhookNotifier struct {
	client  *retryablehttp.Client
	limiter *rate.Limiter
	url     string
	log     *logrus.Entry
}

// NewWebhookNotifier creates a new webhook notifier
func NewWebhookNotifier(cfg *config.NotifyConfig, baseLogger *logrus.Logger) *WebhookNotifier {
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = cfg.Timeout()
	retryClient.RetryMax = maxRetries
	retryClient.RetryWaitMin = retryWaitMin
	retryClient.RetryWaitMax = retryWaitMax
	retryClient.Logger = nil

	return &WebhookNotifier{
		client:  retryClient,
		limiter: rate.NewLimiter(rate.Limit(1), 3),
		url:     cfg.WebhookURL,
		log:     baseLogger.WithField("component", "notify"),
	}
}

// NotifyRecalibration posts the outcome of one recalibration run.
func (n *WebhookNotifier) NotifyRecalibration(ctx context.Context, result *service.RecalibrationResult) error {
	if n.url == "" {
		return nil
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	payload := recalibrationEvent{
		Event:        "calibration_run_completed",
		Stream:       result.Stream,
		State:        string(result.State),
		RunID:        result.RunID.String(),
		SampleSize:   result.SampleSize,
		DriftReasons: result.DriftReasons,
		A:            result.A,
		B:            result.B,
		Error:        result.Err,
		FinishedAt:   result.FinishedAt,
	}
	if result.Before != nil {
		payload.ECEBefore = &result.Before.ECE
	}
	if result.After != nil {
		payload.ECEAfter = &result.After.ECE
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, n.url, body)
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	n.log.WithFields(logrus.Fields{
		"stream": result.Stream,
		"state":  result.State,
	}).Debug("Delivered recalibration notification")

	return nil
}
