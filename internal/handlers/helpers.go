// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"codeberg.org/naturkirken/medlemsportal/internal/auth"
	"codeberg.org/naturkirken/medlemsportal/internal/services/session"
	"github.com/labstack/echo/v4"
)

// bind decodes the request body into v.
func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return fmt.Errorf("%w: %w", errInvalidBody, err)
	}
	return nil
}

// bindStrict decodes a JSON body into v and rejects unknown fields and
// trailing data.
func bindStrict(c echo.Context, v any) error {
	dec := json.NewDecoder(c.Request().Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errInvalidBody, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data", errInvalidBody)
	}
	return nil
}

// claims returns the session claims set by the auth middleware.
func claims(c echo.Context) (*session.Claims, error) {
	cl := auth.GetClaims(c.Request().Context())
	if cl == nil {
		return nil, session.ErrMissingCredential
	}
	return cl, nil
}

func requestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}
