package notification

import "fmt"

// Bindings supplies variable values to the renderer.
// Implementations are NamedBindings and PositionalBindings.
type Bindings interface {
	isBindings()
}

// NamedBindings maps variable names to values; extra keys are ignored
type NamedBindings map[string]string

// PositionalBindings is an ordered value list addressed 1-based by {{n}}
type PositionalBindings []string

func (NamedBindings) isBindings()      {}
func (PositionalBindings) isBindings() {}

// PositionalFrom orders named values by the template's declared variables.
// The list stops at the first declared variable without a value, so a
// placeholder past that point fails to render rather than rendering blank.
func PositionalFrom(t *Template, named map[string]string) PositionalBindings {
	out := make(PositionalBindings, 0, len(t.Variables))
	for _, name := range t.Variables {
		v, ok := named[name]
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

// BindingsFor adapts a named bundle to the template's placeholder mode
func BindingsFor(t *Template, named map[string]string) Bindings {
	if t.Channel.PlaceholderMode() == PlaceholderPositional {
		return PositionalFrom(t, named)
	}
	return NamedBindings(named)
}

// Render substitutes every placeholder of the template. It is deterministic
// and has no side effects.
func Render(t *Template, b Bindings) (*RenderedMessage, error) {
	if t == nil || t.Content == nil {
		return nil, ErrTemplateNotFound
	}

	var resolve func(token string) (string, error)
	switch mode := t.Channel.PlaceholderMode(); bound := b.(type) {
	case NamedBindings:
		if mode != PlaceholderNamed {
			return nil, &RenderError{TemplateCode: t.Code, Reason: "positional template needs positional bindings"}
		}
		resolve = func(token string) (string, error) {
			v, ok := bound[token]
			if !ok {
				return "", &RenderError{TemplateCode: t.Code, Variable: token}
			}
			return v, nil
		}
	case PositionalBindings:
		if mode != PlaceholderPositional {
			return nil, &RenderError{TemplateCode: t.Code, Reason: "named template needs named bindings"}
		}
		resolve = func(token string) (string, error) {
			idx, ok := positionalIndex(token)
			if !ok {
				return "", &RenderError{TemplateCode: t.Code, Reason: fmt.Sprintf("placeholder {{%s}} is not positional", token)}
			}
			if idx < 1 || idx > len(bound) {
				return "", &RenderError{TemplateCode: t.Code, Index: idx, Provided: len(bound)}
			}
			return bound[idx-1], nil
		}
	default:
		return nil, &RenderError{TemplateCode: t.Code, Reason: "no bindings supplied"}
	}

	msg := &RenderedMessage{TemplateCode: t.Code, Channel: t.Channel}
	var err error

	switch c := t.Content.(type) {
	case EmailContent:
		if msg.Subject, err = substitute(c.Subject, resolve); err != nil {
			return nil, err
		}
		if msg.Body, err = substitute(c.Body, resolve); err != nil {
			return nil, err
		}
	case StructuredContent:
		if msg.Header, err = substitute(c.Header, resolve); err != nil {
			return nil, err
		}
		if msg.Body, err = substitute(c.Body, resolve); err != nil {
			return nil, err
		}
		if msg.Footer, err = substitute(c.Footer, resolve); err != nil {
			return nil, err
		}
		for _, btn := range c.Buttons {
			text, err := substitute(btn.Text, resolve)
			if err != nil {
				return nil, err
			}
			url, err := substitute(btn.URL, resolve)
			if err != nil {
				return nil, err
			}
			msg.Buttons = append(msg.Buttons, Button{Text: text, URL: url})
		}
		if pb, ok := b.(PositionalBindings); ok {
			msg.Params = append([]string(nil), pb...)
		}
	default:
		return nil, &RenderError{TemplateCode: t.Code, Reason: fmt.Sprintf("unsupported content %T", t.Content)}
	}

	return msg, nil
}
