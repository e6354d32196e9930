package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/marketplace-returns/internal/application/port"
)

// alertNamespace seeds the per-alert message uuid so a repeated alert for
// the same delivery is dropped by Lark
var alertNamespace = uuid.MustParse("6f1f8f44-3c57-4b8e-9a0e-0c5d1d2b7a31")

// Alerter implements port.AlertNotifier with an interactive card
type Alerter struct {
	messages   MessageCreator
	chatID     string
	consoleURL string
	logger     *zap.Logger
}

// NewAlerter creates an alerter posting into cfg.ChatID
func NewAlerter(messages MessageCreator, cfg Config, logger *zap.Logger) *Alerter {
	return &Alerter{
		messages:   messages,
		chatID:     cfg.ChatID,
		consoleURL: strings.TrimRight(cfg.ConsoleURL, "/"),
		logger:     logger,
	}
}

// NotifyFailure posts one failure card
func (a *Alerter) NotifyFailure(ctx context.Context, alert port.FailureAlert) error {
	if a.chatID == "" {
		return fmt.Errorf("alert chat id is not configured")
	}

	content, err := json.Marshal(a.buildCard(alert))
	if err != nil {
		return fmt.Errorf("failed to marshal alert card: %w", err)
	}

	req := larkIm.NewCreateMessageReqBuilder().
		ReceiveIdType(larkIm.ReceiveIdTypeChatId).
		Body(larkIm.NewCreateMessageReqBodyBuilder().
			ReceiveId(a.chatID).
			MsgType(larkIm.MsgTypeInteractive).
			Content(string(content)).
			Uuid(uuid.NewSHA1(alertNamespace, []byte(alert.IdempotencyKey)).String()).
			Build()).
		Build()

	resp, err := a.messages.Create(ctx, req)
	if err != nil {
		a.logger.Error("Failed to post delivery alert",
			zap.String("idempotency_key", alert.IdempotencyKey),
			zap.Error(err))
		return fmt.Errorf("failed to post alert: %w", err)
	}

	if !resp.Success() {
		a.logger.Error("Lark rejected delivery alert",
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("lark API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	a.logger.Info("Delivery alert posted",
		zap.String("event_code", alert.EventCode),
		zap.String("return_number", alert.ReturnNumber),
		zap.String("channel", alert.Channel.String()))

	return nil
}

type cardText struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

type cardElement struct {
	Tag     string       `json:"tag"`
	Text    *cardText    `json:"text,omitempty"`
	Actions []cardAction `json:"actions,omitempty"`
}

type cardAction struct {
	Tag  string   `json:"tag"`
	Text cardText `json:"text"`
	URL  string   `json:"url"`
	Type string   `json:"type"`
}

type cardHeader struct {
	Title    cardText `json:"title"`
	Template string   `json:"template"`
}

type card struct {
	Header   cardHeader    `json:"header"`
	Elements []cardElement `json:"elements"`
}

func (a *Alerter) buildCard(alert port.FailureAlert) card {
	var b strings.Builder
	fmt.Fprintf(&b, "**Return:** %s\n", alert.ReturnNumber)
	fmt.Fprintf(&b, "**Event:** %s\n", alert.EventCode)
	fmt.Fprintf(&b, "**Channel:** %s\n", alert.Channel)
	fmt.Fprintf(&b, "**Attempts:** %d\n", alert.Attempts)
	fmt.Fprintf(&b, "**Error:** %s", alert.Err)

	c := card{
		Header: cardHeader{
			Title:    cardText{Tag: "plain_text", Content: "Return notification failed"},
			Template: "red",
		},
		Elements: []cardElement{
			{Tag: "div", Text: &cardText{Tag: "lark_md", Content: b.String()}},
		},
	}

	if a.consoleURL != "" && alert.CaseID > 0 {
		c.Elements = append(c.Elements, cardElement{
			Tag: "action",
			Actions: []cardAction{{
				Tag:  "button",
				Text: cardText{Tag: "plain_text", Content: "Open tracking"},
				URL:  fmt.Sprintf("%s/returns/%d", a.consoleURL, alert.CaseID),
				Type: "primary",
			}},
		})
	}

	return c
}

// Verify interface compliance
var _ port.AlertNotifier = (*Alerter)(nil)
