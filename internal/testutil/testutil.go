// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"codeberg.org/naturkirken/medlemsportal/internal/database"
	"codeberg.org/naturkirken/medlemsportal/internal/models"
	"codeberg.org/naturkirken/medlemsportal/internal/repository"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

// NewTestDB creates a migrated SQLite database in a temporary directory.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, repository.New(db)
}

// NewTestMember creates a member profile with realistic field values.
// The profile ID is unrelated to any identity.
func NewTestMember(t *testing.T, repo *repository.Repository, email string) *models.MemberProfile {
	t.Helper()
	p := &models.MemberProfile{
		ID:                   uuid.NewString(),
		Email:                strings.ToLower(email),
		FirstName:            "Anna",
		MiddleName:           "Marie",
		LastName:             "Nordmann",
		FullName:             "Anna Marie Nordmann",
		Phone:                "+4791234567",
		Address:              "Skogveien 1",
		PostalCode:           "0123",
		City:                 "Oslo",
		Country:              "Norge",
		Personnummer:         "01019012345",
		Gender:               models.GenderFemale,
		MembershipType:       models.MembershipSupporting,
		ThemeGroups:          models.NewStringSet("natur", "meditasjon"),
		NewsletterSubscribed: true,
		CreatedAt:            time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.CreateMemberProfile(context.Background(), p))
	return p
}

// NewTestIdentity creates an identity with the given email.
func NewTestIdentity(t *testing.T, repo *repository.Repository, email string) *models.Identity {
	t.Helper()
	now := time.Now().UTC()
	identity := &models.Identity{
		ID:               uuid.NewString(),
		Email:            strings.ToLower(email),
		PasswordHash:     "$2a$10$invalidinvalidinvalidinvalidinvalidinvalidinvalidinva",
		EmailConfirmedAt: &now,
	}
	require.NoError(t, repo.CreateIdentity(context.Background(), identity))
	return identity
}

// SentMail is a message captured by FakeMailer.
type SentMail struct {
	To   string
	Code string
}

// FakeMailer records verification emails instead of sending them.
type FakeMailer struct {
	mu   sync.Mutex
	Sent []SentMail
	Err  error
}

// SendVerificationCode records the message or returns the configured error.
func (m *FakeMailer) SendVerificationCode(_ context.Context, to, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, SentMail{To: to, Code: code})
	return nil
}

// Last returns the most recent message, or nil.
func (m *FakeMailer) Last() *SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return nil
	}
	msg := m.Sent[len(m.Sent)-1]
	return &msg
}

// Count returns the number of recorded messages.
func (m *FakeMailer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewEchoContextWithHeaders creates an Echo context with custom headers.
func NewEchoContextWithHeaders(e *echo.Echo, method, path string, body io.Reader, headers map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}
