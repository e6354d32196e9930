package notification

import (
	"errors"
	"fmt"
)

var (
	// ErrTemplateNotFound is returned when a referenced template does not exist or is inactive
	ErrTemplateNotFound = errors.New("template not found")
	// ErrTemplateInvalid is returned when a template breaks its variable contract
	ErrTemplateInvalid = errors.New("template invalid")
	// ErrTriggerInvalid is returned when an event trigger definition is malformed
	ErrTriggerInvalid = errors.New("event trigger invalid")
)

// RenderError reports a placeholder that could not be substituted.
// Variable is set for named placeholders, Index for positional ones.
type RenderError struct {
	TemplateCode string
	Variable     string
	Index        int
	Provided     int
	Reason       string
}

func (e *RenderError) Error() string {
	switch {
	case e.Reason != "":
		return fmt.Sprintf("render template %q: %s", e.TemplateCode, e.Reason)
	case e.Variable != "":
		return fmt.Sprintf("render template %q: missing variable %q", e.TemplateCode, e.Variable)
	default:
		return fmt.Sprintf("render template %q: placeholder {{%d}} out of range (%d values provided)",
			e.TemplateCode, e.Index, e.Provided)
	}
}

// IsRenderError reports whether err is a *RenderError
func IsRenderError(err error) bool {
	var re *RenderError
	return errors.As(err, &re)
}
