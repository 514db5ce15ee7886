package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// WebhookAgent POSTs notification payloads as JSON to a configured endpoint.
type WebhookAgent struct {
	url        string
	authHeader string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewWebhookAgent creates a new webhook agent
func NewWebhookAgent(url, authHeader string, logger *logrus.Logger) *WebhookAgent {
	return &WebhookAgent{
		url:        url,
		authHeader: authHeader,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Name identifies the agent in logs
func (a *WebhookAgent) Name() string {
	return "webhook"
}

// Send delivers one payload
func (a *WebhookAgent) Send(ctx context.Context, payload Payload) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if a.authHeader != "" {
		req.Header.Set("Authorization", a.authHeader)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	a.logger.WithFields(logrus.Fields{
		"event":    payload.Event,
		"media_id": payload.MediaID,
	}).Debug("Webhook notification delivered")

	return nil
}
