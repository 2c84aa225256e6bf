// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

// Package identity is the authentication provider: it owns identities,
// password credentials and single-use magic link tokens.
package identity

import (
	"context"
	"errors"
	"time"

	"codeberg.org/naturkirken/medlemsportal/internal/models"
)

// OTPTypeMagicLink is the only OTP type VerifyOTP accepts.
const OTPTypeMagicLink = "magiclink"

var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("token is invalid or has expired")
	ErrUnsupportedOTPType = errors.New("unsupported otp type")
)

// CreateUserParams holds the parameters for provisioning an identity.
// An empty Password provisions an identity with an unusable random password.
type CreateUserParams struct {
	Email        string
	Password     string
	EmailConfirm bool
	Metadata     models.IdentityMetadata
}

// MagicLink is a redeemable sign-in token. HashedToken is handed to the
// client, which exchanges it through VerifyOTP.
type MagicLink struct {
	UserID      string
	Email       string
	HashedToken string
	ExpiresAt   time.Time
}

// VerifyParams identifies the token to redeem.
type VerifyParams struct {
	Type      string `json:"type"`
	TokenHash string `json:"token_hash"`
}

// Provider is the contract the sign-in flow relies on.
type Provider interface {
	ListUsers(ctx context.Context, page, perPage int) ([]models.Identity, error)
	CreateUser(ctx context.Context, params CreateUserParams) (*models.Identity, error)
	GenerateMagicLink(ctx context.Context, email string) (*MagicLink, error)
	VerifyOTP(ctx context.Context, params VerifyParams) (*models.Identity, error)
	UpdatePassword(ctx context.Context, userID, password string) (*models.Identity, error)
	SignInWithPassword(ctx context.Context, email, password string) (*models.Identity, error)
}
