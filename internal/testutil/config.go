// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package testutil

import (
	"time"

	"codeberg.org/naturkirken/medlemsportal/internal/config"
)

// TestHashKey is a valid 32-byte hex session key.
const TestHashKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

// NewTestConfig returns a configuration for wiring services in tests.
func NewTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:           "localhost",
			Port:           8080,
			BaseURL:        "http://localhost:8080",
			MaxBodySize:    1,
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Log: config.LogConfig{Level: "error", Format: "text"},
		Session: config.SessionConfig{
			CookieName: "_test_session",
			MaxAge:     3600,
			HashKey:    TestHashKey,
		},
		Stripe: config.StripeConfig{
			SecretKey:  "sk_test_123",
			PriceID:    "price_medlem",
			SuccessURL: "http://localhost:8080/medlemskap/takk",
			CancelURL:  "http://localhost:8080/medlemskap",
		},
		Auth: config.AuthConfig{
			CodeTTL:        10 * time.Minute,
			CodesPerWindow: 5,
			CodeWindow:     15 * time.Minute,
			MaxAttempts:    5,
			IPRatePerMin:   100,
		},
	}
}
