// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

// Package server wires the services into an Echo server and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"codeberg.org/naturkirken/medlemsportal/internal/config"
	"codeberg.org/naturkirken/medlemsportal/internal/database"
	"codeberg.org/naturkirken/medlemsportal/internal/i18n"
	"codeberg.org/naturkirken/medlemsportal/internal/metrics"
	"codeberg.org/naturkirken/medlemsportal/internal/ratelimit"
	"codeberg.org/naturkirken/medlemsportal/internal/repository"
	"codeberg.org/naturkirken/medlemsportal/internal/services/account"
	"codeberg.org/naturkirken/medlemsportal/internal/services/email"
	"codeberg.org/naturkirken/medlemsportal/internal/services/identity"
	"codeberg.org/naturkirken/medlemsportal/internal/services/otp"
	"codeberg.org/naturkirken/medlemsportal/internal/services/payment"
	"codeberg.org/naturkirken/medlemsportal/internal/services/session"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

// Services holds the wired application services.
type Services struct {
	Repo     *repository.Repository
	Identity *identity.Service
	Codes    *otp.Service
	Sessions *session.Manager
	Payments *payment.Initiator
	Metrics  metrics.Recorder
	Gatherer prometheus.Gatherer
}

// NewServices wires the services for cfg. A nil mailer sends email over
// SMTP, a nil processor uses Stripe when it is configured.
func NewServices(cfg *config.Config, db *sqlx.DB, mailer otp.Mailer, processor payment.Processor) (*Services, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.NewCollector(reg)

	if mailer == nil {
		smtp, err := email.NewService(&cfg.SMTP, cfg.Auth.CodeTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to init email: %w", err)
		}
		mailer = smtp
	}

	sessions, err := session.NewManager(&cfg.Session, strings.HasPrefix(cfg.Server.BaseURL, "https://"))
	if err != nil {
		return nil, fmt.Errorf("failed to init sessions: %w", err)
	}

	repo := repository.New(db)
	provider := identity.NewService(repo)
	resolver := account.NewResolver(provider, repo, rec)

	var payments *payment.Initiator
	if processor != nil {
		payments = payment.NewInitiator(repo, processor, rec)
	} else {
		payments = payment.NewInitiatorFromConfig(repo, cfg.Stripe, rec)
	}

	return &Services{
		Repo:     repo,
		Identity: provider,
		Codes:    otp.NewService(repo, mailer, resolver, rec, cfg.Auth),
		Sessions: sessions,
		Payments: payments,
		Metrics:  rec,
		Gatherer: reg,
	}, nil
}

// New builds the Echo server. The returned limiter must be stopped by the caller.
func New(cfg *config.Config, svc *Services) (*echo.Echo, *ratelimit.Limiter) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = newIPExtractor(cfg.Server.TrustedProxies)

	perMinute := cfg.Auth.IPRatePerMin
	if perMinute <= 0 {
		perMinute = 10
	}
	limiter := ratelimit.New(ratelimit.PerMinute(perMinute))

	setupMiddleware(e, cfg, svc.Metrics)
	setupRoutes(e, svc, limiter)

	return e, limiter
}

// newIPExtractor returns the client IP extractor used by the rate limiter and
// request logs. Forwarding headers are honored only from the given proxy
// CIDRs; without any, the connection address is used.
func newIPExtractor(proxies []string) echo.IPExtractor {
	var ranges []echo.TrustOption
	for _, cidr := range proxies {
		_, ipNet, err := net.ParseCIDR(strings.TrimSpace(cidr))
		if err != nil {
			slog.Error("ignoring invalid trusted proxy", "cidr", cidr, "error", err)
			continue
		}
		ranges = append(ranges, echo.TrustIPRange(ipNet))
	}
	if len(ranges) == 0 {
		return echo.ExtractIPDirect()
	}

	opts := append([]echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}, ranges...)
	return echo.ExtractIPFromXFFHeader(opts...)
}

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	// Database
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	// i18n
	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	svc, err := NewServices(cfg, db, nil, nil)
	if err != nil {
		return err
	}

	e, limiter := New(cfg, svc)
	defer limiter.Stop()

	return startWithGracefulShutdown(ctx, e, cfg)
}

func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, cfg *config.Config) error {
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("Server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case <-ctx.Done():
		slog.Info("shutting down server", "reason", ctx.Err())
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
