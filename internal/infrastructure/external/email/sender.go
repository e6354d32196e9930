// Package email delivers rendered notification emails over SMTP.
package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/marketplace-returns/internal/application/port"
	"github.com/garyjia/marketplace-returns/internal/domain/notification"
)

// TLS modes
const (
	TLSModeNone     = "none"
	TLSModeTLS      = "tls"
	TLSModeStartTLS = "starttls"
)

// Config holds SMTP settings
type Config struct {
	Host          string
	Port          string
	Username      string
	Password      string
	From          string
	FromName      string
	TLSMode       string
	SkipVerifyTLS bool
	DialTimeout   time.Duration
	WriteTimeout  time.Duration
}

// Sender implements port.ChannelSender for the email channel
type Sender struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewSender creates a new SMTP sender
func NewSender(cfg Config, logger *zap.Logger) *Sender {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.TLSMode == "" {
		cfg.TLSMode = TLSModeNone
	}
	return &Sender{cfg: cfg, logger: logger, now: time.Now}
}

// Channel implements port.ChannelSender
func (s *Sender) Channel() notification.Channel {
	return notification.ChannelEmail
}

// Send delivers one email. Connection problems and 4xx replies are transient;
// 5xx replies and malformed messages are permanent.
func (s *Sender) Send(ctx context.Context, msg *notification.RenderedMessage, to port.Recipient, idempotencyKey string) (*port.DeliveryReceipt, error) {
	domain := s.cfg.Host
	if domain == "" {
		domain = "localhost"
	}
	id := messageID(idempotencyKey, domain)

	raw, err := message{
		From:           s.cfg.From,
		FromName:       s.cfg.FromName,
		To:             to.Address,
		ToName:         to.Name,
		Subject:        msg.Subject,
		Body:           msg.Body,
		MessageID:      id,
		IdempotencyKey: idempotencyKey,
		Date:           s.now(),
	}.build()
	if err != nil {
		return nil, port.Permanent(err)
	}

	if err := s.deliver(ctx, to.Address, raw); err != nil {
		s.logger.Warn("SMTP delivery failed",
			zap.String("template_code", msg.TemplateCode),
			zap.String("idempotency_key", idempotencyKey),
			zap.Error(err))
		return nil, classify(err)
	}

	s.logger.Debug("Email accepted by SMTP server",
		zap.String("template_code", msg.TemplateCode),
		zap.String("message_id", id))

	return &port.DeliveryReceipt{ProviderRef: id, AcceptedAt: s.now()}, nil
}

func (s *Sender) deliver(ctx context.Context, rcpt, raw string) error {
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)

	dialer := &net.Dialer{Timeout: s.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial failed: %w", err)
	}
	defer conn.Close()

	// bounds the whole conversation, a silent server included
	deadline := time.Now().Add(s.cfg.DialTimeout + s.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("smtp set deadline failed: %w", err)
	}

	tlsCfg := &tls.Config{ServerName: s.cfg.Host, InsecureSkipVerify: s.cfg.SkipVerifyTLS}
	if strings.EqualFold(s.cfg.TLSMode, TLSModeTLS) {
		tlsConn := tls.Client(conn, tlsCfg)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			return fmt.Errorf("smtp tls handshake failed: %w", err)
		}
		conn = tlsConn
	}

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp new client failed: %w", err)
	}
	defer c.Close()

	if strings.EqualFold(s.cfg.TLSMode, TLSModeStartTLS) {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return port.Permanent(errors.New("smtp server does not support STARTTLS"))
		}
		if err := c.StartTLS(tlsCfg); err != nil {
			return fmt.Errorf("smtp starttls failed: %w", err)
		}
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
			if err := c.Auth(auth); err != nil {
				return fmt.Errorf("smtp auth failed: %w", err)
			}
		}
	}

	if err := c.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from failed: %w", err)
	}
	if err := c.Rcpt(rcpt); err != nil {
		return fmt.Errorf("smtp rcpt failed (%s): %w", rcpt, err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data failed: %w", err)
	}
	if _, err := w.Write([]byte(raw)); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close failed: %w", err)
	}

	return c.Quit()
}

// classify maps SMTP reply codes onto the sender error classes
func classify(err error) error {
	if errors.Is(err, port.ErrPermanent) {
		return err
	}
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) && tpErr.Code >= 500 {
		return port.Permanent(err)
	}
	return port.Transient(err)
}

// Verify interface compliance
var _ port.ChannelSender = (*Sender)(nil)
