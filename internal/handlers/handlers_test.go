// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"codeberg.org/naturkirken/medlemsportal/internal/auth"
	"codeberg.org/naturkirken/medlemsportal/internal/handlers"
	"codeberg.org/naturkirken/medlemsportal/internal/services/payment"
	"codeberg.org/naturkirken/medlemsportal/internal/services/session"
	"codeberg.org/naturkirken/medlemsportal/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withClaims(c echo.Context, userID, email string) {
	req := c.Request()
	c.SetRequest(req.WithContext(auth.WithClaims(req.Context(), &session.Claims{UserID: userID, Email: email})))
}

func TestNew(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	h := handlers.New(repo)

	assert.NotNil(t, h)
}

func TestHealth(t *testing.T) {
	h := handlers.New(nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Health(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestProfile(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	member := testutil.NewTestMember(t, repo, "anna@example.com")
	h := handlers.New(repo)

	c, rec := testutil.NewEchoContext(echo.New(), http.MethodGet, "/api/profile", nil)
	withClaims(c, member.ID, member.Email)

	require.NoError(t, h.Profile(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "*********45", body["personnummer"])
	assert.Equal(t, member.ID, body["id"])
	assert.Equal(t, "anna@example.com", body["email"])
}

func TestProfile_FallsBackToEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	testutil.NewTestMember(t, repo, "anna@example.com")
	h := handlers.New(repo)

	c, rec := testutil.NewEchoContext(echo.New(), http.MethodGet, "/api/profile", nil)
	withClaims(c, "identity-not-yet-linked", "anna@example.com")

	require.NoError(t, h.Profile(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProfile_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	h := handlers.New(repo)

	c, _ := testutil.NewEchoContext(echo.New(), http.MethodGet, "/api/profile", nil)
	withClaims(c, "nobody", "nobody@example.com")

	err := h.Profile(c)

	require.Error(t, err)
}

func TestProfile_RequiresClaims(t *testing.T) {
	h := handlers.New(nil)
	c, _ := testutil.NewEchoContext(echo.New(), http.MethodGet, "/api/profile", nil)

	err := h.Profile(c)

	assert.ErrorIs(t, err, session.ErrMissingCredential)
}

func TestCheckout(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	member := testutil.NewTestMember(t, repo, "anna@example.com")
	proc := testutil.NewFakeProcessor()
	h := handlers.NewPayment(payment.NewInitiator(repo, proc, nil))

	body := `{"paymentMethod":"stripe","membershipData":{"first_name":"Anna","last_name":"Nordmann",` +
		`"phone":"+4791234567","personnummer":"01019012345","membership_type":"Hovedmedlem"}}`
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/api/payments/checkout", strings.NewReader(body))
	withClaims(c, member.ID, member.Email)

	require.NoError(t, h.Checkout(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), testutil.FakeCheckoutDomain)
	require.Len(t, proc.Sessions, 1)
	assert.Equal(t, member.ID, proc.Sessions[0].UserID)
}

func TestCheckout_RejectsUnknownFields(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	proc := testutil.NewFakeProcessor()
	h := handlers.NewPayment(payment.NewInitiator(repo, proc, nil))

	body := `{"paymentMethod":"stripe","membershipData":{"first_name":"Anna","is_admin":true}}`
	c, _ := testutil.NewEchoContext(echo.New(), http.MethodPost, "/api/payments/checkout", strings.NewReader(body))
	withClaims(c, "user-1", "anna@example.com")

	err := h.Checkout(c)

	require.Error(t, err)
	assert.Zero(t, proc.SessionCount())
}
