package notification

// RenderedMessage is a fully substituted template ready for a channel sender
type RenderedMessage struct {
	TemplateCode string   `json:"template_code"`
	Channel      Channel  `json:"channel"`
	Subject      string   `json:"subject,omitempty"`
	Header       string   `json:"header,omitempty"`
	Body         string   `json:"body"`
	Footer       string   `json:"footer,omitempty"`
	Buttons      []Button `json:"buttons,omitempty"`

	// Params holds the ordered values used for positional templates
	Params []string `json:"params,omitempty"`
}
