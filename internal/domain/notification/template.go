package notification

import (
	"fmt"
	"time"
)

// Content is the channel-specific body of a template.
// Implementations are EmailContent and StructuredContent.
type Content interface {
	channel() Channel
	// parts lists every sub-template in rendering order
	parts() []string
}

// EmailContent is a named-placeholder email with a subject line
type EmailContent struct {
	Subject string `json:"subject" yaml:"subject"`
	Body    string `json:"body" yaml:"body"`
}

func (EmailContent) channel() Channel { return ChannelEmail }

func (c EmailContent) parts() []string {
	return []string{c.Subject, c.Body}
}

// Button is a call-to-action attached to a structured message
type Button struct {
	Text string `json:"text" yaml:"text"`
	URL  string `json:"url,omitempty" yaml:"url,omitempty"`
}

// StructuredContent is a positional-placeholder message.
// Header, footer and buttons share the body's numbering space.
type StructuredContent struct {
	Header  string   `json:"header,omitempty" yaml:"header,omitempty"`
	Body    string   `json:"body" yaml:"body"`
	Footer  string   `json:"footer,omitempty" yaml:"footer,omitempty"`
	Buttons []Button `json:"buttons,omitempty" yaml:"buttons,omitempty"`
}

func (StructuredContent) channel() Channel { return ChannelWhatsApp }

func (c StructuredContent) parts() []string {
	out := []string{c.Header, c.Body, c.Footer}
	for _, btn := range c.Buttons {
		out = append(out, btn.Text, btn.URL)
	}
	return out
}

// Template is a stored message template for one channel
type Template struct {
	Code      string    `json:"code"`
	Channel   Channel   `json:"channel"`
	Variables []string  `json:"variables"`
	Active    bool      `json:"active"`
	Content   Content   `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the template's variable contract.
// Every placeholder must be declared; declared variables may go unused.
func (t *Template) Validate() error {
	if t.Code == "" {
		return fmt.Errorf("%w: code is required", ErrTemplateInvalid)
	}
	if !t.Channel.IsValid() {
		return fmt.Errorf("%w: %s: unknown channel %q", ErrTemplateInvalid, t.Code, t.Channel)
	}
	if t.Content == nil {
		return fmt.Errorf("%w: %s: content is required", ErrTemplateInvalid, t.Code)
	}
	if t.Content.channel() != t.Channel {
		return fmt.Errorf("%w: %s: %T does not belong to channel %s", ErrTemplateInvalid, t.Code, t.Content, t.Channel)
	}

	declared := make(map[string]bool, len(t.Variables))
	for _, v := range t.Variables {
		if !namePattern.MatchString(v) {
			return fmt.Errorf("%w: %s: bad variable name %q", ErrTemplateInvalid, t.Code, v)
		}
		if declared[v] {
			return fmt.Errorf("%w: %s: variable %q declared twice", ErrTemplateInvalid, t.Code, v)
		}
		declared[v] = true
	}

	for _, part := range t.Content.parts() {
		for _, token := range Placeholders(part) {
			if err := t.checkPlaceholder(token, declared); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Template) checkPlaceholder(token string, declared map[string]bool) error {
	switch t.Channel.PlaceholderMode() {
	case PlaceholderPositional:
		idx, ok := positionalIndex(token)
		if !ok {
			return fmt.Errorf("%w: %s: placeholder {{%s}} is not positional", ErrTemplateInvalid, t.Code, token)
		}
		if idx < 1 || idx > len(t.Variables) {
			return fmt.Errorf("%w: %s: placeholder {{%d}} has no declared variable", ErrTemplateInvalid, t.Code, idx)
		}
	default:
		if !declared[token] {
			return fmt.Errorf("%w: %s: placeholder {{%s}} is not declared", ErrTemplateInvalid, t.Code, token)
		}
	}
	return nil
}

// MaxPosition returns the highest positional index referenced by the template, or 0
func (t *Template) MaxPosition() int {
	if t.Content == nil || t.Channel.PlaceholderMode() != PlaceholderPositional {
		return 0
	}
	highest := 0
	for _, part := range t.Content.parts() {
		for _, token := range Placeholders(part) {
			if idx, ok := positionalIndex(token); ok && idx > highest {
				highest = idx
			}
		}
	}
	return highest
}
