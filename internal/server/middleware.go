// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package server

import (
	"fmt"
	"net/http"

	"codeberg.org/naturkirken/medlemsportal/internal/config"
	"codeberg.org/naturkirken/medlemsportal/internal/handlers"
	"codeberg.org/naturkirken/medlemsportal/internal/metrics"
	appmw "codeberg.org/naturkirken/medlemsportal/internal/middleware"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func setupMiddleware(e *echo.Echo, cfg *config.Config, rec metrics.Recorder) {
	e.HTTPErrorHandler = handlers.ErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(appmw.RequestLogger(rec))
	e.Use(middleware.Secure())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", max(cfg.Server.MaxBodySize, 1))))
	if cors := corsMiddleware(cfg); cors != nil {
		e.Use(cors)
	}
	e.Use(appmw.Locale())
}

// corsMiddleware allows the member SPA to call the API with credentials.
// Returns nil when no origins are configured.
func corsMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	if len(cfg.Server.AllowedOrigins) == 0 {
		return nil
	}
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderAuthorization,
			echo.HeaderContentType,
			"Accept-Language",
			echo.HeaderXRequestID,
		},
		AllowCredentials: true,
		MaxAge:           600,
	})
}
