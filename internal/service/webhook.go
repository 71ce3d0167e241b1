package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"whatsapp-outbound-gateway/internal/config"
	"whatsapp-outbound-gateway/internal/model"
	"whatsapp-outbound-gateway/pkg/logger"
)

// ReplyWebhookService forwards inbound messages to the upstream reply
// webhook and returns the computed reply, if any.
type ReplyWebhookService struct {
	httpClient *http.Client
	config     *config.ReplyConfig
	logger     *logger.Logger
}

// NewReplyWebhookService creates a new reply webhook service
func NewReplyWebhookService(cfg *config.ReplyConfig, log *logger.Logger) *ReplyWebhookService {
	return &ReplyWebhookService{
		httpClient: &http.Client{
			Timeout: cfg.WebhookTimeout,
		},
		config: cfg,
		logger: log,
	}
}

// Enabled reports whether a webhook URL is configured
func (s *ReplyWebhookService) Enabled() bool {
	return s.config.WebhookURL != ""
}

// RequestReply delivers the inbound message to the webhook with retry and
// exponential backoff, returning the upstream's reply. A nil reply with a
// nil error means the upstream chose not to answer.
func (s *ReplyWebhookService) RequestReply(ctx context.Context, msg model.InboundMessage) (*model.ReplyResult, error) {
	payload := &model.WebhookPayload{
		Event:   "message_received",
		Message: msg,
	}

	var lastErr error

	for attempt := 0; attempt <= s.config.RetryCount; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			s.logger.WithMessageID(msg.ID).Warn("Retrying reply webhook",
				"attempt", attempt+1,
				"backoff_seconds", backoff.Seconds(),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		reply, err := s.send(ctx, payload)
		if err == nil {
			if attempt > 0 {
				s.logger.WithMessageID(msg.ID).Info("Reply webhook delivered",
					"attempt", attempt+1,
				)
			}
			return reply, nil
		}

		lastErr = err
		s.logger.WithMessageID(msg.ID).Warn("Reply webhook delivery failed",
			"attempt", attempt+1,
			"error", err,
		)
	}

	return nil, fmt.Errorf("reply webhook failed after %d attempts: %w",
		s.config.RetryCount+1, lastErr)
}

// send performs the actual HTTP request to the reply webhook
func (s *ReplyWebhookService) send(ctx context.Context, payload *model.WebhookPayload) (*model.ReplyResult, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.config.WebhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook response: %w", err)
	}
	if len(body) == 0 {
		return nil, nil
	}

	var webhookResp model.WebhookResponse
	if err := json.Unmarshal(body, &webhookResp); err != nil {
		return nil, fmt.Errorf("failed to parse webhook response: %w", err)
	}

	return webhookResp.Reply, nil
}
