// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package security_test

import (
	"testing"

	"codeberg.org/naturkirken/medlemsportal/internal/security"
	"github.com/stretchr/testify/assert"
)

func TestSanitizer_Text(t *testing.T) {
	s := security.NewSanitizer()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "Anna", "Anna"},
		{"norwegian letters", "Blåbærveien 7", "Blåbærveien 7"},
		{"trimmed", "  Oslo  ", "Oslo"},
		{"script removed", `<script>alert(1)</script>Anna`, "Anna"},
		{"tags stripped", `<b>Anna</b>`, "Anna"},
		{"event handler removed", `<img src=x onerror=alert(1)>Anna`, "Anna"},
		{"ampersand escaped once", "Natur & stillhet", "Natur &amp; stillhet"},
		{"quotes escaped", `O'Brien "Jr"`, "O&#39;Brien &#34;Jr&#34;"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, s.Text(tt.input))
		})
	}
}

func TestSanitizer_TextIsStable(t *testing.T) {
	s := security.NewSanitizer()

	once := s.Text("Natur & <i>stillhet</i>")

	assert.Equal(t, "Natur &amp; stillhet", once)
}

func TestSanitizer_Texts(t *testing.T) {
	s := security.NewSanitizer()

	assert.Equal(t, []string{"natur", "&lt;3"}, s.Texts([]string{"<p>natur</p>", "&lt;3"}))
}
