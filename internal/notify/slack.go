package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/rpi-gardener/greenhouse/internal/alerts"
	"github.com/rpi-gardener/greenhouse/internal/retry"
)

// SlackBackend posts alert notifications to an incoming webhook, grounded
// on original_source/rpi/lib/notifications.py's SlackNotifier.
type SlackBackend struct {
	WebhookURL string
	Timeout    time.Duration

	client *http.Client
	log    zerolog.Logger
}

func NewSlackBackend(log zerolog.Logger, webhookURL string) *SlackBackend {
	timeout := 10 * time.Second
	return &SlackBackend{
		WebhookURL: webhookURL,
		Timeout:    timeout,
		client:     &http.Client{Timeout: timeout},
		log:        log.With().Str("backend", "slack").Logger(),
	}
}

func (s *SlackBackend) Name() string { return "Slack" }

func (s *SlackBackend) Send(ctx context.Context, violation alerts.ThresholdViolation) error {
	return retry.Do(ctx, s.log, retry.Options{
		Name:           "Slack",
		MaxRetries:     3,
		InitialBackoff: 2 * time.Second,
		Retryable:      slackRetryable,
	}, func(ctx context.Context) error {
		if err := s.send(ctx, violation); err != nil {
			return err
		}
		s.log.Info().Str("sensor", violation.SensorName.String()).Msg("sent slack notification")
		return nil
	})
}

// slackStatusError carries the webhook's HTTP status so slackRetryable can
// distinguish a rejected request from a transient failure.
type slackStatusError struct {
	Code int
}

func (e *slackStatusError) Error() string {
	return fmt.Sprintf("slack webhook returned status %d", e.Code)
}

// slackRetryable treats any non-5xx response (bad payload, invalid/revoked
// webhook, rate limiting included) as terminal; only 5xx responses and
// transport-level errors are retried (spec.md §4.8 "Non-retryable errors").
func slackRetryable(err error) bool {
	var statusErr *slackStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500
	}
	return true
}

type slackBlock struct {
	Type string      `json:"type"`
	Text interface{} `json:"text,omitempty"`
	Fields []slackField `json:"fields,omitempty"`
	Elements []slackField `json:"elements,omitempty"`
}

type slackField struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (s *SlackBackend) send(ctx context.Context, v alerts.ThresholdViolation) error {
	label := SensorLabel(v.SensorName)
	timeStr := v.RecordingTime.Format("15:04:05")

	payload := map[string]any{
		"text": fmt.Sprintf("%s alert!", label),
		"blocks": []slackBlock{
			{Type: "header", Text: slackField{Type: "plain_text", Text: label + " Alert"}},
			{Type: "section", Fields: []slackField{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Current:*\n%.1f%s", v.Value, v.Unit)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Threshold:*\n%.0f%s", v.Threshold, v.Unit)},
			}},
			{Type: "context", Elements: []slackField{
				{Type: "mrkdwn", Text: ":clock1: " + timeStr},
			}},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &slackStatusError{Code: resp.StatusCode}
	}
	return nil
}
