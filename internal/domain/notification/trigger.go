package notification

import (
	"fmt"
	"sort"
	"time"
)

// ChannelBinding is the per-channel part of an event trigger
type ChannelBinding struct {
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	TemplateCode string `json:"template_code,omitempty" yaml:"template,omitempty"`
}

// EventTrigger binds a domain event code to notification channels
type EventTrigger struct {
	EventCode string                     `json:"event_code"`
	Category  string                     `json:"category"`
	Channels  map[Channel]ChannelBinding `json:"channels"`
	Variables []string                   `json:"variables"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

// Validate checks the trigger definition
func (t *EventTrigger) Validate() error {
	if t.EventCode == "" {
		return fmt.Errorf("%w: event code is required", ErrTriggerInvalid)
	}
	for ch := range t.Channels {
		if !ch.IsValid() {
			return fmt.Errorf("%w: %s: unknown channel %q", ErrTriggerInvalid, t.EventCode, ch)
		}
	}
	return nil
}

// Usable reports whether a channel should be dispatched for this trigger.
// Both the enabled flag and a template reference are required.
func (t *EventTrigger) Usable(ch Channel) bool {
	b, ok := t.Channels[ch]
	return ok && b.Enabled && b.TemplateCode != ""
}

// UsableChannels lists usable channels in a stable order
func (t *EventTrigger) UsableChannels() []Channel {
	var out []Channel
	for ch := range t.Channels {
		if t.Usable(ch) {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns a deep copy of the trigger
func (t *EventTrigger) Clone() *EventTrigger {
	out := *t
	out.Channels = make(map[Channel]ChannelBinding, len(t.Channels))
	for ch, b := range t.Channels {
		out.Channels[ch] = b
	}
	out.Variables = append([]string(nil), t.Variables...)
	return &out
}

// Route is one resolved (channel, template) pair for an event
type Route struct {
	Channel  Channel
	Template *Template
}
