// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

// Package session issues and verifies the signed credentials that represent
// a signed-in member. The same value is used as bearer token and cookie.
package session

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"codeberg.org/naturkirken/medlemsportal/internal/config"
	"codeberg.org/naturkirken/medlemsportal/internal/models"
	"github.com/gorilla/securecookie"
)

var (
	// ErrMissingCredential is returned when a request carries no credential.
	ErrMissingCredential = errors.New("missing session credential")
	// ErrInvalidCredential is returned for tampered or expired credentials.
	ErrInvalidCredential = errors.New("invalid session credential")
)

// Claims is the data carried by a session credential.
type Claims struct {
	UserID    string    `json:"uid"`
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// Manager encodes and decodes session credentials.
type Manager struct {
	codec      *securecookie.SecureCookie
	cookieName string
	maxAge     int
	secure     bool
}

// NewManager creates a session manager. Keys are 32-byte hex strings; without
// a hash key a random one is generated and sessions do not survive restarts.
func NewManager(cfg *config.SessionConfig, secure bool) (*Manager, error) {
	hashKey, err := decodeKey(cfg.HashKey, "hash")
	if err != nil {
		return nil, err
	}
	if hashKey == nil {
		slog.Warn("session hash key not configured, generating a random key")
		hashKey = securecookie.GenerateRandomKey(32)
		if hashKey == nil {
			return nil, errors.New("generating session hash key failed")
		}
	}

	blockKey, err := decodeKey(cfg.BlockKey, "block")
	if err != nil {
		return nil, err
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(cfg.MaxAge)
	codec.SetSerializer(securecookie.JSONEncoder{})

	return &Manager{
		codec:      codec,
		cookieName: cfg.CookieName,
		maxAge:     cfg.MaxAge,
		secure:     secure,
	}, nil
}

func decodeKey(value, name string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid session %s key: %w", name, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("session %s key must be 32 bytes, got %d", name, len(key))
	}
	return key, nil
}

// MaxAge returns the credential lifetime.
func (m *Manager) MaxAge() time.Duration {
	return time.Duration(m.maxAge) * time.Second
}

// Issue creates a credential for the identity.
func (m *Manager) Issue(identity *models.Identity) (string, *Claims, error) {
	now := time.Now().UTC()
	claims := &Claims{
		UserID:    identity.ID,
		Email:     identity.Email,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.MaxAge()),
	}
	value, err := m.codec.Encode(m.cookieName, claims)
	if err != nil {
		return "", nil, fmt.Errorf("encoding session: %w", err)
	}
	return value, claims, nil
}

// Authenticate decodes a credential.
func (m *Manager) Authenticate(value string) (*Claims, error) {
	if value == "" {
		return nil, ErrInvalidCredential
	}
	var claims Claims
	if err := m.codec.Decode(m.cookieName, value, &claims); err != nil {
		return nil, ErrInvalidCredential
	}
	if claims.UserID == "" || !time.Now().Before(claims.ExpiresAt) {
		return nil, ErrInvalidCredential
	}
	return &claims, nil
}

// FromRequest authenticates the bearer token of the request, falling back
// to the session cookie.
func (m *Manager) FromRequest(r *http.Request) (*Claims, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return nil, ErrInvalidCredential
		}
		return m.Authenticate(strings.TrimSpace(token))
	}
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrMissingCredential
	}
	return m.Authenticate(cookie.Value)
}

// Cookie wraps a credential in the session cookie.
func (m *Manager) Cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   m.maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Clear returns a cookie that removes the session.
func (m *Manager) Clear() *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
