// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

// Package templates renders the HTML sent to members.
package templates

import (
	"context"
	"strconv"

	"codeberg.org/naturkirken/medlemsportal/internal/i18n"
)

// T translates a message by ID.
func T(ctx context.Context, messageID string) string {
	return i18n.T(ctx, messageID)
}

// TData translates a message with template data.
func TData(ctx context.Context, messageID string, data map[string]any) string {
	return i18n.TData(ctx, messageID, data)
}

// Locale returns the current locale.
func Locale(ctx context.Context) string {
	return i18n.GetLocale(ctx)
}

// CodeExpiry tells the member how long a sign-in code stays valid.
func CodeExpiry(ctx context.Context, validMinutes int) string {
	return TData(ctx, "email_code_expiry", map[string]any{"Minutes": strconv.Itoa(validMinutes)})
}

// VerificationCodeText is the plain text alternative of VerificationCodeEmail.
func VerificationCodeText(ctx context.Context, code string, validMinutes int) string {
	return T(ctx, "email_code_intro") + "\n\n" + code + "\n\n" +
		CodeExpiry(ctx, validMinutes) + "\n\n" +
		T(ctx, "email_code_ignore") + "\n"
}
