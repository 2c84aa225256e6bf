// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package config

import (
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

// configFile is set by the --config flag before the other flags read their TOML sources.
var configFile = "config.toml"

var tomlSrc = altsrc.NewStringPtrSourcer(&configFile)

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	Session  SessionConfig
	Stripe   StripeConfig
	Auth     AuthConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host           string
	Port           int
	BaseURL        string
	MaxBodySize    int      // in MB
	AllowedOrigins []string // CORS origins of the SPA
	TrustedProxies []string // CIDRs whose X-Forwarded-For is honored
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

// SMTPConfig configures the outbound email transport.
type SMTPConfig struct { //nolint:govet // fieldalignment not critical
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

type SessionConfig struct { //nolint:govet // fieldalignment not critical
	CookieName string // Session cookie name
	MaxAge     int    // Session max age in seconds
	HashKey    string // 32-byte hex string for HMAC signing
	BlockKey   string // 32-byte hex string for AES encryption (optional)
}

// StripeConfig configures the membership checkout.
type StripeConfig struct {
	SecretKey  string
	PriceID    string // recurring membership price
	SuccessURL string
	CancelURL  string
}

// Configured reports whether checkout sessions can be created.
func (c StripeConfig) Configured() bool {
	return c.SecretKey != "" && c.PriceID != ""
}

// AuthConfig configures the one-time code sign-in.
type AuthConfig struct {
	CodeTTL        time.Duration // lifetime of a verification code
	CodesPerWindow int           // max codes issued per email per window
	CodeWindow     time.Duration
	MaxAttempts    int // wrong guesses before a code is burned
	IPRatePerMin   int // auth endpoint requests per client IP and minute
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:           cmd.String("host"),
			Port:           int(cmd.Int("port")),
			BaseURL:        cmd.String("base-url"),
			MaxBodySize:    int(cmd.Int("max-body-size")),
			AllowedOrigins: cmd.StringSlice("allowed-origins"),
			TrustedProxies: cmd.StringSlice("trusted-proxies"),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
		Session: SessionConfig{
			CookieName: cmd.String("session-cookie-name"),
			MaxAge:     int(cmd.Int("session-max-age")),
			HashKey:    cmd.String("session-hash-key"),
			BlockKey:   cmd.String("session-block-key"),
		},
		Stripe: StripeConfig{
			SecretKey:  cmd.String("stripe-secret-key"),
			PriceID:    cmd.String("stripe-price-id"),
			SuccessURL: cmd.String("stripe-success-url"),
			CancelURL:  cmd.String("stripe-cancel-url"),
		},
		Auth: AuthConfig{
			CodeTTL:        cmd.Duration("code-ttl"),
			CodesPerWindow: int(cmd.Int("code-limit")),
			CodeWindow:     cmd.Duration("code-limit-window"),
			MaxAttempts:    int(cmd.Int("code-max-attempts")),
			IPRatePerMin:   int(cmd.Int("auth-rate-per-minute")),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}
	cfg.Server.BaseURL = strings.TrimSuffix(cfg.Server.BaseURL, "/")

	applyStripeDefaults(cfg)

	return cfg
}

// applyStripeDefaults derives checkout return URLs from the BaseURL.
func applyStripeDefaults(cfg *Config) {
	if cfg.Stripe.SuccessURL == "" {
		cfg.Stripe.SuccessURL = cfg.Server.BaseURL + "/medlemskap/takk?session_id={CHECKOUT_SESSION_ID}"
	}
	if cfg.Stripe.CancelURL == "" {
		cfg.Stripe.CancelURL = cfg.Server.BaseURL + "/medlemskap"
	}
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port

	scheme := "https"
	if IsLocalhost(host) {
		scheme = "http"
	}

	// Hide default ports in URL
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	// Check for *.localhost subdomains (e.g., app.localhost)
	return strings.HasSuffix(host, ".localhost")
}

// source creates a value source chain combining env vars and TOML config.
func source(env, key string) cli.ValueSourceChain {
	chain := cli.EnvVars(env)
	chain.Chain = append(chain.Chain, toml.TOML(key, tomlSrc))
	return chain
}

// Flags returns all configuration flags shared by the server commands.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Value:       "config.toml",
			Usage:       "Path to configuration file",
			Destination: &configFile,
			Sources:     cli.EnvVars("CONFIG"),
		},
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: source("HOST", "server.host"),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: source("PORT", "server.port"),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Public base URL of the website",
			Sources: source("BASE_URL", "server.base_url"),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: source("MAX_BODY_SIZE", "server.max_body_size"),
		},
		&cli.StringSliceFlag{
			Name:    "allowed-origins",
			Usage:   "Origins allowed to call the API (CORS)",
			Sources: source("ALLOWED_ORIGINS", "server.allowed_origins"),
		},
		&cli.StringSliceFlag{
			Name:    "trusted-proxies",
			Usage:   "Proxy CIDRs allowed to set X-Forwarded-For (empty: use the connection address)",
			Sources: source("TRUSTED_PROXIES", "server.trusted_proxies"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: source("LOG_LEVEL", "log.level"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: source("LOG_FORMAT", "log.format"),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/app.db",
			Usage:   "Database DSN",
			Sources: source("DATABASE_DSN", "database.dsn"),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP server host",
			Sources: source("SMTP_HOST", "smtp.host"),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP server port",
			Sources: source("SMTP_PORT", "smtp.port"),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: source("SMTP_USERNAME", "smtp.username"),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: source("SMTP_PASSWORD", "smtp.password"),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "Sender address for outgoing email",
			Sources: source("SMTP_FROM", "smtp.from"),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Usage:   "Sender display name for outgoing email",
			Sources: source("SMTP_FROM_NAME", "smtp.from_name"),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP",
			Sources: source("SMTP_TLS", "smtp.tls"),
		},
		// Session flags
		&cli.StringFlag{
			Name:    "session-cookie-name",
			Value:   "_session",
			Usage:   "Session cookie name",
			Sources: source("SESSION_COOKIE_NAME", "session.cookie_name"),
		},
		&cli.IntFlag{
			Name:    "session-max-age",
			Value:   604800, // 7 days in seconds
			Usage:   "Session max age in seconds",
			Sources: source("SESSION_MAX_AGE", "session.max_age"),
		},
		&cli.StringFlag{
			Name:    "session-hash-key",
			Usage:   "Session hash key (32-byte hex, auto-generated if empty in dev)",
			Sources: source("SESSION_HASH_KEY", "session.hash_key"),
		},
		&cli.StringFlag{
			Name:    "session-block-key",
			Usage:   "Session block key for encryption (32-byte hex, optional)",
			Sources: source("SESSION_BLOCK_KEY", "session.block_key"),
		},
		// Stripe flags
		&cli.StringFlag{
			Name:    "stripe-secret-key",
			Usage:   "Stripe secret API key",
			Sources: source("STRIPE_SECRET_KEY", "stripe.secret_key"),
		},
		&cli.StringFlag{
			Name:    "stripe-price-id",
			Usage:   "Stripe price ID of the membership subscription",
			Sources: source("STRIPE_PRICE_ID", "stripe.price_id"),
		},
		&cli.StringFlag{
			Name:    "stripe-success-url",
			Usage:   "Checkout success URL (defaults to base_url/medlemskap/takk)",
			Sources: source("STRIPE_SUCCESS_URL", "stripe.success_url"),
		},
		&cli.StringFlag{
			Name:    "stripe-cancel-url",
			Usage:   "Checkout cancel URL (defaults to base_url/medlemskap)",
			Sources: source("STRIPE_CANCEL_URL", "stripe.cancel_url"),
		},
		// Auth flags
		&cli.DurationFlag{
			Name:    "code-ttl",
			Value:   10 * time.Minute,
			Usage:   "Lifetime of a sign-in code",
			Sources: source("CODE_TTL", "auth.code_ttl"),
		},
		&cli.IntFlag{
			Name:    "code-limit",
			Value:   5,
			Usage:   "Maximum sign-in codes per email within the limit window",
			Sources: source("CODE_LIMIT", "auth.code_limit"),
		},
		&cli.DurationFlag{
			Name:    "code-limit-window",
			Value:   15 * time.Minute,
			Usage:   "Window for the per-email code limit",
			Sources: source("CODE_LIMIT_WINDOW", "auth.code_limit_window"),
		},
		&cli.IntFlag{
			Name:    "code-max-attempts",
			Value:   5,
			Usage:   "Wrong guesses allowed before a sign-in code is invalidated",
			Sources: source("CODE_MAX_ATTEMPTS", "auth.code_max_attempts"),
		},
		&cli.IntFlag{
			Name:    "auth-rate-per-minute",
			Value:   10,
			Usage:   "Auth endpoint requests per client IP and minute",
			Sources: source("AUTH_RATE_PER_MINUTE", "auth.rate_per_minute"),
		},
	}
}
