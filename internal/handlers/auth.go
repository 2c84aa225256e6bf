// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/naturkirken/medlemsportal/internal/models"
	"codeberg.org/naturkirken/medlemsportal/internal/services/identity"
	"codeberg.org/naturkirken/medlemsportal/internal/services/otp"
	"codeberg.org/naturkirken/medlemsportal/internal/services/session"
	"github.com/labstack/echo/v4"
)

// AuthHandlers contains the sign-in and session handlers.
type AuthHandlers struct {
	codes    *otp.Service
	provider identity.Provider
	sessions *session.Manager
}

// NewAuth creates a new AuthHandlers instance.
func NewAuth(codes *otp.Service, provider identity.Provider, sessions *session.Manager) *AuthHandlers {
	return &AuthHandlers{
		codes:    codes,
		provider: provider,
		sessions: sessions,
	}
}

// SendCodeRequest is the request body for requesting a sign-in code.
type SendCodeRequest struct {
	Email string `json:"email"`
}

// SendCode emails a sign-in code to a registered member.
func (h *AuthHandlers) SendCode(c echo.Context) error {
	var req SendCodeRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if err := h.codes.Issue(c.Request().Context(), req.Email); err != nil {
		if errors.Is(err, otp.ErrValidation) {
			return newAPIError(http.StatusBadRequest, CodeValidation, "error_email_required", err)
		}
		return err
	}

	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// VerifyCodeRequest is the request body for redeeming a sign-in code.
type VerifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// VerifyCodeResponse carries the token the client exchanges for a session.
type VerifyCodeResponse struct {
	Success       bool   `json:"success"`
	Type          string `json:"type"`
	TokenHash     string `json:"token_hash"`
	Email         string `json:"email"`
	NeedsPassword bool   `json:"needs_password,omitempty"`
}

// VerifyCode redeems a sign-in code.
func (h *AuthHandlers) VerifyCode(c echo.Context) error {
	var req VerifyCodeRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.codes.Verify(c.Request().Context(), req.Email, req.Code)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, VerifyCodeResponse{
		Success:       true,
		Type:          res.Type,
		TokenHash:     res.TokenHash,
		Email:         res.Email,
		NeedsPassword: res.NeedsPassword,
	})
}

// SessionResponse is returned when a session is established.
type SessionResponse struct {
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	ExpiresIn   int              `json:"expires_in"`
	ExpiresAt   int64            `json:"expires_at"`
	User        *models.Identity `json:"user"`
}

// Verify exchanges a magic link token for a session.
func (h *AuthHandlers) Verify(c echo.Context) error {
	var req identity.VerifyParams
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.provider.VerifyOTP(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return h.startSession(c, user)
}

// TokenRequest is the request body for password sign-in.
type TokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Token signs in with email and password.
func (h *AuthHandlers) Token(c echo.Context) error {
	if grant := c.QueryParam("grant_type"); grant != "" && grant != "password" {
		return newAPIError(http.StatusBadRequest, CodeInvalidRequest, "error_invalid_request",
			errors.New("unsupported grant type "+grant))
	}

	var req TokenRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Email == "" || req.Password == "" {
		return newAPIError(http.StatusBadRequest, CodeValidation, "error_invalid_credentials",
			errors.New("email and password are required"))
	}

	user, err := h.provider.SignInWithPassword(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return h.startSession(c, user)
}

// UpdateUserRequest is the request body for setting a password.
type UpdateUserRequest struct {
	Password string `json:"password"`
}

// UpdateUser sets the signed-in member's password.
func (h *AuthHandlers) UpdateUser(c echo.Context) error {
	cl, err := claims(c)
	if err != nil {
		return err
	}

	var req UpdateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.provider.UpdatePassword(c.Request().Context(), cl.UserID, req.Password)
	if err != nil {
		return err
	}

	slog.Info("password_updated", "user_id", user.ID)
	return c.JSON(http.StatusOK, map[string]any{"user": user})
}

// Logout clears the session cookie.
func (h *AuthHandlers) Logout(c echo.Context) error {
	c.SetCookie(h.sessions.Clear())
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandlers) startSession(c echo.Context, user *models.Identity) error {
	value, cl, err := h.sessions.Issue(user)
	if err != nil {
		return err
	}

	c.SetCookie(h.sessions.Cookie(value))
	slog.Info("session_started", "user_id", user.ID, "request_id", requestID(c))

	return c.JSON(http.StatusOK, SessionResponse{
		AccessToken: value,
		TokenType:   "bearer",
		ExpiresIn:   int(h.sessions.MaxAge().Seconds()),
		ExpiresAt:   cl.ExpiresAt.Unix(),
		User:        user,
	})
}
