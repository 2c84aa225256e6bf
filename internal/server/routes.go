// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package server

import (
	"codeberg.org/naturkirken/medlemsportal/internal/handlers"
	"codeberg.org/naturkirken/medlemsportal/internal/metrics"
	appmw "codeberg.org/naturkirken/medlemsportal/internal/middleware"
	"codeberg.org/naturkirken/medlemsportal/internal/ratelimit"
	"github.com/labstack/echo/v4"
)

func setupRoutes(e *echo.Echo, svc *Services, limiter *ratelimit.Limiter) {
	h := handlers.New(svc.Repo)
	authHandlers := handlers.NewAuth(svc.Codes, svc.Identity, svc.Sessions)
	paymentHandlers := handlers.NewPayment(svc.Payments)
	requireAuth := appmw.RequireAuth(svc.Sessions)

	// Public
	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler(svc.Gatherer)))

	// Sign-in codes, throttled per client IP
	codes := e.Group("/api/auth", limiter.Middleware())
	codes.POST("/send-code", authHandlers.SendCode)
	codes.POST("/verify-code", authHandlers.VerifyCode)

	// Session endpoints
	sessions := e.Group("/auth/v1")
	sessions.POST("/verify", authHandlers.Verify, limiter.Middleware())
	sessions.POST("/token", authHandlers.Token, limiter.Middleware())
	sessions.PUT("/user", authHandlers.UpdateUser, requireAuth)
	sessions.POST("/logout", authHandlers.Logout)

	// Member API
	api := e.Group("/api", requireAuth)
	api.GET("/profile", h.Profile)
	api.POST("/payments/checkout", paymentHandlers.Checkout)
}
