// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

// Package ctxkeys defines typed context keys used across packages.
package ctxkeys

// Claims is the context key for the authenticated session claims.
type Claims struct{}
