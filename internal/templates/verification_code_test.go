// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package templates_test

import (
	"bytes"
	"context"
	"testing"

	"codeberg.org/naturkirken/medlemsportal/internal/i18n"
	"codeberg.org/naturkirken/medlemsportal/internal/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestVerificationCodeEmail(t *testing.T) {
	require.NoError(t, i18n.Init())
	ctx := i18n.WithLocale(context.Background(), i18n.Norwegian)

	var buf bytes.Buffer
	require.NoError(t, templates.VerificationCodeEmail("042917", 10).Render(ctx, &buf))

	html := buf.String()
	assert.Contains(t, html, `<html lang="nb">`)
	assert.Contains(t, html, "042917")
	assert.Contains(t, html, "Logg inn på Naturkirken")
	assert.Contains(t, html, "gyldig i 10 minutter")
}

func TestVerificationCodeEmail_English(t *testing.T) {
	require.NoError(t, i18n.Init())
	ctx := i18n.WithLocale(context.Background(), language.English)

	var buf bytes.Buffer
	require.NoError(t, templates.VerificationCodeEmail("042917", 10).Render(ctx, &buf))

	assert.Contains(t, buf.String(), "Sign in to Naturkirken")
}

func TestVerificationCodeEmail_EscapesCode(t *testing.T) {
	require.NoError(t, i18n.Init())

	var buf bytes.Buffer
	require.NoError(t, templates.VerificationCodeEmail("<b>1</b>", 10).Render(context.Background(), &buf))

	assert.NotContains(t, buf.String(), "<b>1</b>")
	assert.Contains(t, buf.String(), "&lt;b&gt;1&lt;/b&gt;")
}

func TestVerificationCodeText(t *testing.T) {
	require.NoError(t, i18n.Init())
	ctx := i18n.WithLocale(context.Background(), language.English)

	text := templates.VerificationCodeText(ctx, "042917", 10)

	assert.Contains(t, text, "042917")
	assert.Contains(t, text, "valid for 10 minutes")
}
