// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

// Package otp issues and verifies the six-digit sign-in codes sent by email.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"codeberg.org/naturkirken/medlemsportal/internal/config"
	"codeberg.org/naturkirken/medlemsportal/internal/metrics"
	"codeberg.org/naturkirken/medlemsportal/internal/models"
	"codeberg.org/naturkirken/medlemsportal/internal/repository"
	"codeberg.org/naturkirken/medlemsportal/internal/services/account"
)

const codeDigits = 6

var (
	ErrValidation           = errors.New("email and code are required")
	ErrMemberNotFound       = errors.New("no member registered for email")
	ErrRateLimited          = errors.New("too many codes requested")
	ErrEmailDispatch        = errors.New("sending verification email failed")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	ErrTooManyAttempts      = errors.New("too many wrong codes")
	ErrIdentityResolution   = errors.New("resolving identity failed")
)

// Mailer delivers a sign-in code to an address.
type Mailer interface {
	SendVerificationCode(ctx context.Context, to, code string) error
}

// Resolver turns a verified email into a redeemable sign-in token.
type Resolver interface {
	Resolve(ctx context.Context, email string) (*account.Resolution, error)
}

type Service struct {
	repo     *repository.Repository
	mailer   Mailer
	resolver Resolver
	metrics  metrics.Recorder
	cfg      config.AuthConfig
	now      func() time.Time
}

// NewService creates the code service. Zero values in cfg fall back to
// a ten minute lifetime, five codes per fifteen minutes and five wrong
// guesses per code.
func NewService(repo *repository.Repository, mailer Mailer, resolver Resolver, rec metrics.Recorder, cfg config.AuthConfig) *Service {
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 10 * time.Minute
	}
	if cfg.CodeWindow <= 0 {
		cfg.CodeWindow = 15 * time.Minute
	}
	if cfg.CodesPerWindow <= 0 {
		cfg.CodesPerWindow = 5
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Service{
		repo:     repo,
		mailer:   mailer,
		resolver: resolver,
		metrics:  rec,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Issue generates a code for a registered member and emails it.
// The code is never returned to the caller.
func (s *Service) Issue(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		s.metrics.CodeIssueFailed("validation")
		return ErrValidation
	}

	now := s.now()

	count, err := s.repo.CountVerificationCodesSince(ctx, email, now.Add(-s.cfg.CodeWindow))
	if err != nil {
		return fmt.Errorf("counting codes: %w", err)
	}
	if count >= s.cfg.CodesPerWindow {
		slog.Warn("code_rate_limited", "email", email, "count", count)
		s.metrics.CodeIssueFailed("rate_limited")
		return ErrRateLimited
	}

	exists, err := s.repo.MemberProfileExists(ctx, email)
	if err != nil {
		return fmt.Errorf("looking up member: %w", err)
	}
	if !exists {
		slog.Info("code_member_not_found", "email", email)
		s.metrics.CodeIssueFailed("not_found")
		return ErrMemberNotFound
	}

	if n, err := s.repo.InvalidateVerificationCodes(ctx, email, now); err != nil {
		slog.Warn("code_invalidate_failed", "email", email, "error", err)
	} else if n > 0 {
		slog.Debug("codes_invalidated", "email", email, "count", n)
	}

	code, err := GenerateCode()
	if err != nil {
		return fmt.Errorf("generating code: %w", err)
	}

	vc := &models.VerificationCode{
		Email:     email,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.CodeTTL),
	}
	if err := s.repo.CreateVerificationCode(ctx, vc); err != nil {
		return fmt.Errorf("storing code: %w", err)
	}

	if err := s.mailer.SendVerificationCode(ctx, email, code); err != nil {
		slog.Error("code_email_failed", "email", email, "code_id", vc.ID, "error", err)
		s.metrics.CodeIssueFailed("email")
		return fmt.Errorf("%w: %w", ErrEmailDispatch, err)
	}

	slog.Info("code_issued", "email", email, "code_id", vc.ID, "expires_at", vc.ExpiresAt)
	s.metrics.CodeIssued()
	return nil
}

// Verify redeems a code and resolves the identity for the email.
func (s *Service) Verify(ctx context.Context, email, code string) (*account.Resolution, error) {
	email = NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		s.metrics.CodeVerifyFailed("validation")
		return nil, ErrValidation
	}

	now := s.now()
	id, err := s.repo.RedeemVerificationCode(ctx, email, code, now)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, s.failedAttempt(ctx, email, now)
	}
	if err != nil {
		return nil, fmt.Errorf("redeeming code: %w", err)
	}

	res, err := s.resolver.Resolve(ctx, email)
	if err != nil {
		slog.Error("identity_resolution_failed", "email", email, "code_id", id, "error", err)
		s.metrics.CodeVerifyFailed("resolution")
		return nil, fmt.Errorf("%w: %w", ErrIdentityResolution, err)
	}

	slog.Info("code_verified", "email", email, "code_id", id, "type", res.Type)
	s.metrics.CodeVerified(res.Type)
	return res, nil
}

// failedAttempt counts a wrong guess. The guess that reaches the cap burns
// the outstanding code, so the member has to request a new one.
func (s *Service) failedAttempt(ctx context.Context, email string, now time.Time) error {
	attempts, err := s.repo.RecordFailedVerification(ctx, email, s.cfg.MaxAttempts, now)
	if err != nil {
		return fmt.Errorf("recording failed attempt: %w", err)
	}
	if attempts >= s.cfg.MaxAttempts {
		slog.Warn("code_locked", "email", email, "attempts", attempts)
		s.metrics.CodeVerifyFailed("too_many_attempts")
		return ErrTooManyAttempts
	}
	slog.Info("code_verify_failed", "email", email, "attempts", attempts)
	s.metrics.CodeVerifyFailed("invalid_code")
	return ErrInvalidOrExpiredCode
}

// GenerateCode returns a uniformly random numeric code.
func GenerateCode() (string, error) {
	limit := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}
