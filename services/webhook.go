package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// WebhookChannel posts alerts to the on-site annunciator (siren/light panel) API
type WebhookChannel struct {
	logger     *zap.Logger
	apiURL     string
	httpClient *http.Client
	now        func() time.Time
}

// HardwareAlertPayload represents the payload sent to hardware alert API
type HardwareAlertPayload struct {
	Source    string    `json:"source"`
	AlertType string    `json:"alert_type"`
	Message   string    `json:"message"`
	SentAt    time.Time `json:"sent_at"`
}

// NewWebhookChannel creates a channel posting to apiURL
func NewWebhookChannel(apiURL string, timeout time.Duration, logger *zap.Logger) *WebhookChannel {
	return &WebhookChannel{
		logger: logger,
		apiURL: strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}
}

func (h *WebhookChannel) Name() string { return "webhook" }

// Send posts message as JSON
func (h *WebhookChannel) Send(ctx context.Context, message string) error {
	payload := HardwareAlertPayload{
		Source:    "coopwatch",
		AlertType: "facility_alert",
		Message:   plainText(message),
		SentAt:    h.now(),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/hardware-alert", h.apiURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "coopwatch/1.0")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		h.logger.Debug("Hardware alert sent",
			zap.String("url", endpoint),
			zap.Int("status_code", resp.StatusCode))
		return nil
	}

	return fmt.Errorf("hardware alert API error: %s", resp.Status)
}
