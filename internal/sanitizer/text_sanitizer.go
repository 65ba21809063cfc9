// Package sanitizer strips markup from user and upstream supplied text
// before it is echoed back to the browser.
package sanitizer

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// TextSanitizer removes every HTML element from text using bluemonday's
// strict policy
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer creates a TextSanitizer
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Escaped strips tags and returns HTML-escaped text, safe to place inside
// markup as is. Used for display names in flash messages.
func (s *TextSanitizer) Escaped(text string) string {
	return strings.TrimSpace(s.policy.Sanitize(text))
}

// PlainText strips tags, decodes entities and collapses whitespace.
// Used for text the client renders as text nodes.
func (s *TextSanitizer) PlainText(text string) string {
	if text == "" {
		return ""
	}
	stripped := html.UnescapeString(s.policy.Sanitize(text))
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(stripped, " "))
}
