// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

// Package security cleans user supplied text before it is stored.
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer strips markup from free text and entity-escapes what remains,
// so stored values are inert when rendered in admin views.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer creates a Sanitizer that allows no HTML at all.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Text returns s without tags, trimmed and HTML-escaped.
func (s *Sanitizer) Text(value string) string {
	stripped := s.policy.Sanitize(strings.TrimSpace(value))
	// bluemonday escapes its output; normalise to a single escape pass.
	return html.EscapeString(html.UnescapeString(stripped))
}

// Texts applies Text to every element.
func (s *Sanitizer) Texts(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, s.Text(v))
	}
	return out
}
