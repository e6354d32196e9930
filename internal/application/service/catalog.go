package service

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/garyjia/marketplace-returns/internal/domain/event"
	"github.com/garyjia/marketplace-returns/internal/domain/notification"
)

// TemplateInput is the editable form of a notification template
type TemplateInput struct {
	Code      string                   `json:"code" yaml:"code" binding:"required"`
	Channel   notification.Channel     `json:"channel" yaml:"channel" binding:"required"`
	Variables []string                 `json:"variables" yaml:"variables"`
	Active    *bool                    `json:"active,omitempty" yaml:"active,omitempty"`
	Content   notification.ContentSpec `json:"content" yaml:"content"`
}

// ToTemplate converts the input into a validated domain template
func (in TemplateInput) ToTemplate() (*notification.Template, error) {
	content, err := in.Content.For(in.Channel)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", in.Code, err)
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}

	t := &notification.Template{
		Code:      strings.TrimSpace(in.Code),
		Channel:   in.Channel,
		Variables: append([]string(nil), in.Variables...),
		Active:    active,
		Content:   content,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// TriggerInput is the editable form of an event trigger
type TriggerInput struct {
	EventCode string                                               `json:"event_code" yaml:"event" binding:"required"`
	Category  string                                               `json:"category,omitempty" yaml:"category,omitempty"`
	Channels  map[notification.Channel]notification.ChannelBinding `json:"channels" yaml:"channels"`
	Variables []string                                             `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// ToTrigger converts the input into a validated domain trigger
func (in TriggerInput) ToTrigger() (*notification.EventTrigger, error) {
	code := strings.TrimSpace(in.EventCode)
	if !event.Type(code).IsValid() {
		return nil, fmt.Errorf("%w: unknown event code %q", notification.ErrTriggerInvalid, code)
	}

	category := in.Category
	if category == "" {
		category = event.Type(code).Category()
	}

	t := &notification.EventTrigger{
		EventCode: code,
		Category:  category,
		Channels:  make(map[notification.Channel]notification.ChannelBinding, len(in.Channels)),
		Variables: append([]string(nil), in.Variables...),
	}
	for ch, b := range in.Channels {
		b.TemplateCode = strings.TrimSpace(b.TemplateCode)
		t.Channels[ch] = b
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// ErrCatalogInvalid is returned when a catalog document cannot be decoded
var ErrCatalogInvalid = errors.New("catalog invalid")

// Catalog is the file format for bulk template and trigger definitions
type Catalog struct {
	Templates []TemplateInput `yaml:"templates"`
	Triggers  []TriggerInput  `yaml:"triggers"`
}

// ParseCatalog decodes a YAML catalog. Unknown keys are rejected.
func ParseCatalog(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return &c, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrCatalogInvalid, err)
	}
	return &c, nil
}
