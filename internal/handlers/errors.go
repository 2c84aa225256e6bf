// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/naturkirken/medlemsportal/internal/i18n"
	"codeberg.org/naturkirken/medlemsportal/internal/services/identity"
	"codeberg.org/naturkirken/medlemsportal/internal/services/otp"
	"codeberg.org/naturkirken/medlemsportal/internal/services/payment"
	"codeberg.org/naturkirken/medlemsportal/internal/services/session"
	"github.com/labstack/echo/v4"
)

// Stable error codes returned to clients.
const (
	CodeAuthRequired      = "AUTH_REQUIRED"
	CodeAuthFailed        = "AUTH_FAILED"
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeMissingData       = "MISSING_DATA"
	CodeValidation        = "VALIDATION_ERROR"
	CodeConfig            = "CONFIG_ERROR"
	CodeAlreadySubscribed = "ALREADY_SUBSCRIBED"
	CodeInternal          = "INTERNAL_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeRateLimited       = "RATE_LIMITED"
	CodeInvalidCode       = "INVALID_CODE"
	CodeInvalidToken      = "INVALID_TOKEN"
	CodeInvalidCreds      = "INVALID_CREDENTIALS"
)

// notFoundBody is the body the sign-in form branches on to offer signup.
const notFoundBody = "not_found"

var errInvalidBody = errors.New("malformed request body")

// apiError is an error with a fixed response.
type apiError struct {
	err     error
	code    string
	message string // i18n key
	status  int
}

func (e *apiError) Error() string { return e.err.Error() }
func (e *apiError) Unwrap() error { return e.err }

func newAPIError(status int, code, message string, err error) *apiError {
	return &apiError{err: err, code: code, message: message, status: status}
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{errInvalidBody, http.StatusBadRequest, CodeInvalidRequest, "error_invalid_request"},
	{otp.ErrValidation, http.StatusBadRequest, CodeValidation, "error_email_code_required"},
	{otp.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited, "error_rate_limited"},
	{otp.ErrInvalidOrExpiredCode, http.StatusBadRequest, CodeInvalidCode, "error_invalid_code"},
	{otp.ErrTooManyAttempts, http.StatusTooManyRequests, CodeRateLimited, "error_code_locked"},
	{otp.ErrEmailDispatch, http.StatusInternalServerError, CodeInternal, "error_send_failed"},
	{otp.ErrIdentityResolution, http.StatusInternalServerError, CodeInternal, "error_verify_failed"},
	{session.ErrMissingCredential, http.StatusUnauthorized, CodeAuthRequired, "error_auth_required"},
	{session.ErrInvalidCredential, http.StatusUnauthorized, CodeAuthFailed, "error_auth_failed"},
	{identity.ErrUnsupportedOTPType, http.StatusBadRequest, CodeInvalidRequest, "error_invalid_request"},
	{identity.ErrInvalidToken, http.StatusUnauthorized, CodeInvalidToken, "error_invalid_token"},
	{identity.ErrInvalidCredentials, http.StatusUnauthorized, CodeInvalidCreds, "error_invalid_credentials"},
	{identity.ErrUserNotFound, http.StatusUnauthorized, CodeAuthFailed, "error_auth_failed"},
	{payment.ErrInvalidRequest, http.StatusBadRequest, CodeInvalidRequest, "error_invalid_request"},
	{payment.ErrMissingData, http.StatusBadRequest, CodeMissingData, "error_missing_data"},
	{payment.ErrConfig, http.StatusServiceUnavailable, CodeConfig, "error_config"},
	{payment.ErrAlreadySubscribed, http.StatusBadRequest, CodeAlreadySubscribed, "error_already_subscribed"},
}

// ErrorHandler is the Echo HTTP error handler. It maps service errors to a
// status, a stable code and a localized message. Internal error text is
// only logged.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := errorResponse(c, err)
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"request_id", requestID(c),
			"error", err,
		)
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, body)
	}
	if writeErr != nil {
		slog.Error("writing error response failed", "error", writeErr)
	}
}

func errorResponse(c echo.Context, err error) (int, map[string]any) {
	ctx := c.Request().Context()
	body := func(code, message string) map[string]any {
		return map[string]any{"error": i18n.T(ctx, message), "code": code}
	}

	if errors.Is(err, otp.ErrMemberNotFound) {
		return http.StatusNotFound, map[string]any{"error": notFoundBody}
	}

	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr.status, body(apiErr.code, apiErr.message)
	}

	var pwErr *identity.PasswordValidationError
	if errors.As(err, &pwErr) {
		resp := body(CodeValidation, "error_validation")
		details := make([]string, 0, len(pwErr.Rules))
		for _, rule := range pwErr.Rules {
			details = append(details, i18n.TData(ctx, rule, map[string]any{"MinLength": pwErr.MinLength}))
		}
		resp["details"] = details
		return http.StatusBadRequest, resp
	}

	var verr *payment.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, body(CodeValidation, "error_validation")
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, body(m.code, m.message)
		}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, httpErrorBody(he.Code, body)
	}

	return http.StatusInternalServerError, body(CodeInternal, "error_internal")
}

func httpErrorBody(status int, body func(code, message string) map[string]any) map[string]any {
	switch {
	case status == http.StatusTooManyRequests:
		return body(CodeRateLimited, "error_rate_limited")
	case status == http.StatusUnauthorized:
		return body(CodeAuthRequired, "error_auth_required")
	case status == http.StatusNotFound || status == http.StatusMethodNotAllowed:
		return body(CodeNotFound, "error_invalid_request")
	case status < http.StatusInternalServerError:
		return body(CodeInvalidRequest, "error_invalid_request")
	default:
		return body(CodeInternal, "error_internal")
	}
}
