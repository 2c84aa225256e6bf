// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

// Package auth provides authentication context helpers.
package auth

import (
	"context"

	"codeberg.org/naturkirken/medlemsportal/internal/ctxkeys"
	"codeberg.org/naturkirken/medlemsportal/internal/services/session"
)

// WithClaims stores the session claims of the signed-in member.
func WithClaims(ctx context.Context, claims *session.Claims) context.Context {
	return context.WithValue(ctx, ctxkeys.Claims{}, claims)
}

// GetClaims returns the session claims from the context, or nil if not authenticated.
func GetClaims(ctx context.Context) *session.Claims {
	if claims, ok := ctx.Value(ctxkeys.Claims{}).(*session.Claims); ok {
		return claims
	}
	return nil
}

// IsAuthenticated returns true if the context has session claims.
func IsAuthenticated(ctx context.Context) bool {
	return GetClaims(ctx) != nil
}
