package email

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"mime"
	"strings"
	"time"
)

func formatAddress(name, addr string) string {
	if name == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", name), addr)
}

// messageID is derived from the idempotency key so a retried send carries
// the same Message-ID and receiving systems can drop the duplicate
func messageID(idempotencyKey, domain string) string {
	sum := sha256.Sum256([]byte(idempotencyKey))
	return fmt.Sprintf("<%s@%s>", hex.EncodeToString(sum[:12]), domain)
}

type message struct {
	From           string
	FromName       string
	To             string
	ToName         string
	Subject        string
	Body           string
	MessageID      string
	IdempotencyKey string
	Date           time.Time
}

func (m message) build() (string, error) {
	if m.To == "" {
		return "", fmt.Errorf("recipient address required")
	}
	if m.From == "" {
		return "", fmt.Errorf("from address required")
	}
	if strings.ContainsAny(m.To, "\r\n") || strings.ContainsAny(m.Subject, "\r\n") {
		return "", fmt.Errorf("header values must not contain line breaks")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s\r\n", m.Date.Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Message-ID: %s\r\n", m.MessageID)
	fmt.Fprintf(&b, "From: %s\r\n", formatAddress(m.FromName, m.From))
	fmt.Fprintf(&b, "To: %s\r\n", formatAddress(m.ToName, m.To))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	if m.IdempotencyKey != "" {
		fmt.Fprintf(&b, "X-Idempotency-Key: %s\r\n", m.IdempotencyKey)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(m.Body, "\n", "\r\n"))
	if !strings.HasSuffix(m.Body, "\n") {
		b.WriteString("\r\n")
	}
	return b.String(), nil
}
