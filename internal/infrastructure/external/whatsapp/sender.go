// Package whatsapp delivers structured template messages through an HTTP
// messaging gateway.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/marketplace-returns/internal/application/port"
	"github.com/garyjia/marketplace-returns/internal/domain/notification"
)

// IdempotencyHeader carries the idempotency key on every request
const IdempotencyHeader = "Idempotency-Key"

// Config holds gateway settings
type Config struct {
	Endpoint string
	APIToken string
	Sender   string
	Language string
	Timeout  time.Duration
}

// HTTPClient is the subset of *http.Client the sender needs
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Sender implements port.ChannelSender for the structured message channel
type Sender struct {
	cfg    Config
	client HTTPClient
	logger *zap.Logger
}

// NewSender creates a gateway sender. client may be nil.
func NewSender(cfg Config, client HTTPClient, logger *zap.Logger) *Sender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Sender{cfg: cfg, client: client, logger: logger}
}

type button struct {
	Text string `json:"text"`
	URL  string `json:"url,omitempty"`
}

type sendRequest struct {
	From     string   `json:"from,omitempty"`
	To       string   `json:"to"`
	Template string   `json:"template"`
	Language string   `json:"language"`
	Params   []string `json:"params"`
	Header   string   `json:"header,omitempty"`
	Body     string   `json:"body"`
	Footer   string   `json:"footer,omitempty"`
	Buttons  []button `json:"buttons,omitempty"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Duplicate bool   `json:"duplicate"`
	Error     string `json:"error"`
}

// Channel implements port.ChannelSender
func (s *Sender) Channel() notification.Channel {
	return notification.ChannelWhatsApp
}

// Send posts one message. Network errors, 429 and 5xx are transient; other
// 4xx responses are permanent.
func (s *Sender) Send(ctx context.Context, msg *notification.RenderedMessage, to port.Recipient, idempotencyKey string) (*port.DeliveryReceipt, error) {
	payload := sendRequest{
		From:     s.cfg.Sender,
		To:       to.Address,
		Template: msg.TemplateCode,
		Language: s.cfg.Language,
		Params:   msg.Params,
		Header:   msg.Header,
		Body:     msg.Body,
		Footer:   msg.Footer,
	}
	if payload.Params == nil {
		payload.Params = []string{}
	}
	for _, b := range msg.Buttons {
		payload.Buttons = append(payload.Buttons, button{Text: b.Text, URL: b.URL})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, port.Permanent(fmt.Errorf("failed to encode message: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, port.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(IdempotencyHeader, idempotencyKey)
	if s.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("Gateway request failed",
			zap.String("template_code", msg.TemplateCode),
			zap.String("idempotency_key", idempotencyKey),
			zap.Error(err))
		return nil, port.Transient(fmt.Errorf("gateway request failed: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, port.Transient(fmt.Errorf("failed to read gateway response: %w", err))
	}

	var decoded sendResponse
	_ = json.Unmarshal(raw, &decoded)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, port.Transient(fmt.Errorf("gateway returned %d: %s", resp.StatusCode, errorText(decoded, raw)))
	case resp.StatusCode == http.StatusConflict:
		// the gateway already accepted this key
		return &port.DeliveryReceipt{ProviderRef: decoded.MessageID, Duplicate: true, AcceptedAt: time.Now()}, nil
	case resp.StatusCode >= 400:
		return nil, port.Permanent(fmt.Errorf("gateway rejected message with %d: %s", resp.StatusCode, errorText(decoded, raw)))
	}

	s.logger.Debug("Structured message accepted",
		zap.String("template_code", msg.TemplateCode),
		zap.String("message_id", decoded.MessageID),
		zap.Bool("duplicate", decoded.Duplicate))

	return &port.DeliveryReceipt{
		ProviderRef: decoded.MessageID,
		Duplicate:   decoded.Duplicate,
		AcceptedAt:  time.Now(),
	}, nil
}

func errorText(decoded sendResponse, raw []byte) string {
	if decoded.Error != "" {
		return decoded.Error
	}
	return string(raw)
}

// Verify interface compliance
var _ port.ChannelSender = (*Sender)(nil)
