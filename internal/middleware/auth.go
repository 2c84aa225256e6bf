// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package middleware

import (
	"log/slog"

	"codeberg.org/naturkirken/medlemsportal/internal/auth"
	"codeberg.org/naturkirken/medlemsportal/internal/services/session"
	"github.com/labstack/echo/v4"
)

// RequireAuth authenticates the bearer token or session cookie and stores the
// claims in the request context. Requests without a valid credential fail
// with session.ErrMissingCredential or session.ErrInvalidCredential.
func RequireAuth(sessions *session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := sessions.FromRequest(c.Request())
			if err != nil {
				slog.Debug("auth_rejected", "path", c.Path(), "error", err)
				return err
			}
			c.SetRequest(c.Request().WithContext(auth.WithClaims(c.Request().Context(), claims)))
			return next(c)
		}
	}
}
