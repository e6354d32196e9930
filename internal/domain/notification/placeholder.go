package notification

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)
	namePattern        = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// placeholder is one {{...}} occurrence in a template part
type placeholder struct {
	start, end int
	token      string
}

func scanPlaceholders(text string) []placeholder {
	matches := placeholderPattern.FindAllStringSubmatchIndex(text, -1)
	out := make([]placeholder, 0, len(matches))
	for _, m := range matches {
		out = append(out, placeholder{start: m[0], end: m[1], token: text[m[2]:m[3]]})
	}
	return out
}

// positionalIndex parses a positional token. ok is false for non-numeric tokens.
func positionalIndex(token string) (int, bool) {
	if token == "" || strings.TrimLeft(token, "0123456789") != "" {
		return 0, false
	}
	n, err := strconv.Atoi(token)
	if err != nil {
		return 0, false
	}
	return n, true
}

// substitute replaces every placeholder in text using resolve, stopping at the first error
func substitute(text string, resolve func(token string) (string, error)) (string, error) {
	found := scanPlaceholders(text)
	if len(found) == 0 {
		return text, nil
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, p := range found {
		value, err := resolve(p.token)
		if err != nil {
			return "", err
		}
		b.WriteString(text[last:p.start])
		b.WriteString(value)
		last = p.end
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

// Placeholders returns the distinct placeholder tokens of text in order of first use
func Placeholders(text string) []string {
	seen := make(map[string]bool)
	var tokens []string
	for _, p := range scanPlaceholders(text) {
		if !seen[p.token] {
			seen[p.token] = true
			tokens = append(tokens, p.token)
		}
	}
	return tokens
}
