package notification

import "fmt"

// ContentSpec is the flat, channel-agnostic form of Content used for storage
// and catalog files. Fields that do not apply to a channel must be empty.
type ContentSpec struct {
	Subject string   `json:"subject,omitempty" yaml:"subject,omitempty"`
	Header  string   `json:"header,omitempty" yaml:"header,omitempty"`
	Body    string   `json:"body" yaml:"body"`
	Footer  string   `json:"footer,omitempty" yaml:"footer,omitempty"`
	Buttons []Button `json:"buttons,omitempty" yaml:"buttons,omitempty"`
}

// For converts the spec into the content variant of the given channel
func (s ContentSpec) For(ch Channel) (Content, error) {
	switch ch {
	case ChannelEmail:
		if s.Header != "" || s.Footer != "" || len(s.Buttons) > 0 {
			return nil, fmt.Errorf("%w: email content cannot carry header, footer or buttons", ErrTemplateInvalid)
		}
		return EmailContent{Subject: s.Subject, Body: s.Body}, nil
	case ChannelWhatsApp:
		if s.Subject != "" {
			return nil, fmt.Errorf("%w: structured content cannot carry a subject", ErrTemplateInvalid)
		}
		buttons := append([]Button(nil), s.Buttons...)
		return StructuredContent{Header: s.Header, Body: s.Body, Footer: s.Footer, Buttons: buttons}, nil
	default:
		return nil, fmt.Errorf("%w: unknown channel %q", ErrTemplateInvalid, ch)
	}
}

// SpecOf flattens content back into a ContentSpec
func SpecOf(c Content) ContentSpec {
	switch v := c.(type) {
	case EmailContent:
		return ContentSpec{Subject: v.Subject, Body: v.Body}
	case StructuredContent:
		return ContentSpec{
			Header:  v.Header,
			Body:    v.Body,
			Footer:  v.Footer,
			Buttons: append([]Button(nil), v.Buttons...),
		}
	default:
		return ContentSpec{}
	}
}
