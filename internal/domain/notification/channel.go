package notification

// PlaceholderMode is how a channel's templates reference variables
type PlaceholderMode int

const (
	// PlaceholderNamed uses {{variable_name}} placeholders
	PlaceholderNamed PlaceholderMode = iota
	// PlaceholderPositional uses 1-based {{1}}, {{2}} placeholders
	PlaceholderPositional
)

// String returns the string representation of the placeholder mode
func (m PlaceholderMode) String() string {
	switch m {
	case PlaceholderNamed:
		return "named"
	case PlaceholderPositional:
		return "positional"
	default:
		return "unknown"
	}
}

// Channel is a notification medium
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

// AllChannels lists the supported channels in dispatch order
var AllChannels = []Channel{ChannelEmail, ChannelWhatsApp}

// String returns the string representation of the channel
func (c Channel) String() string {
	return string(c)
}

// IsValid checks if the channel is supported
func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelWhatsApp:
		return true
	default:
		return false
	}
}

// PlaceholderMode returns the placeholder syntax templates on this channel use.
// Email is named, structured messages are positional.
func (c Channel) PlaceholderMode() PlaceholderMode {
	if c == ChannelWhatsApp {
		return PlaceholderPositional
	}
	return PlaceholderNamed
}
