// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"codeberg.org/naturkirken/medlemsportal/internal/models"
	"codeberg.org/naturkirken/medlemsportal/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// TokenLength is the number of random bytes in a magic link token.
	TokenLength = 32
	// TokenExpiry is how long a magic link token can be redeemed.
	TokenExpiry = time.Hour
)

// dummyHash is compared against on unknown emails so sign-in timing does not reveal them.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

// Service is the SQL-backed Provider.
type Service struct {
	repo   *repository.Repository
	policy *PasswordPolicy
	now    func() time.Time
}

var _ Provider = (*Service)(nil)

// NewService creates a new identity service.
func NewService(repo *repository.Repository) *Service {
	return &Service{
		repo:   repo,
		policy: DefaultPasswordPolicy(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// PasswordPolicy returns the policy applied by UpdatePassword.
func (s *Service) PasswordPolicy() *PasswordPolicy {
	return s.policy
}

// ListUsers returns one page of identities. Pages start at 1.
func (s *Service) ListUsers(ctx context.Context, page, perPage int) ([]models.Identity, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 50
	}
	return s.repo.ListIdentities(ctx, (page-1)*perPage, perPage)
}

// CreateUser provisions a new identity.
func (s *Service) CreateUser(ctx context.Context, params CreateUserParams) (*models.Identity, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}

	password := params.Password
	if password == "" {
		placeholder, err := randomToken()
		if err != nil {
			return nil, err
		}
		password = placeholder
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := s.now()
	identity := &models.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Metadata:     params.Metadata,
		CreatedAt:    now,
	}
	if params.EmailConfirm {
		identity.EmailConfirmedAt = &now
	}

	if err := s.repo.CreateIdentity(ctx, identity); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("creating identity: %w", err)
	}

	slog.Info("identity_created", "user_id", identity.ID, "email", email)
	return identity, nil
}

// GenerateMagicLink creates a single-use sign-in token for the identity
// registered for email. Only a hash of the token is stored.
func (s *Service) GenerateMagicLink(ctx context.Context, email string) (*MagicLink, error) {
	identity, err := s.repo.GetIdentityByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	token, err := randomToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	link := &models.MagicLinkToken{
		IdentityID: identity.ID,
		TokenHash:  HashToken(token),
		ExpiresAt:  now.Add(TokenExpiry),
		CreatedAt:  now,
	}
	if err := s.repo.CreateMagicLinkToken(ctx, link); err != nil {
		return nil, fmt.Errorf("storing magic link: %w", err)
	}

	if n, err := s.repo.DeleteExpiredMagicLinkTokens(ctx, now); err != nil {
		slog.Warn("magic_link_cleanup_failed", "error", err)
	} else if n > 0 {
		slog.Debug("magic_link_cleanup", "deleted", n)
	}

	return &MagicLink{
		UserID:      identity.ID,
		Email:       identity.Email,
		HashedToken: token,
		ExpiresAt:   link.ExpiresAt,
	}, nil
}

// VerifyOTP redeems a magic link token and returns the signed-in identity.
// The email counts as confirmed once a token has been redeemed.
func (s *Service) VerifyOTP(ctx context.Context, params VerifyParams) (*models.Identity, error) {
	if params.Type != OTPTypeMagicLink {
		return nil, ErrUnsupportedOTPType
	}
	if params.TokenHash == "" {
		return nil, ErrInvalidToken
	}

	now := s.now()
	identityID, err := s.repo.ConsumeMagicLinkToken(ctx, HashToken(params.TokenHash), now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if err := s.repo.ConfirmIdentityEmail(ctx, identityID, now); err != nil {
		return nil, fmt.Errorf("confirming email: %w", err)
	}
	return s.signedIn(ctx, identityID, now)
}

// UpdatePassword sets a new password and clears the password setup flag.
func (s *Service) UpdatePassword(ctx context.Context, userID, password string) (*models.Identity, error) {
	identity, err := s.repo.GetIdentityByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if err := s.policy.Check(password, identity.Email); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	metadata := identity.Metadata
	metadata.NeedsPasswordSetup = false
	if err := s.repo.UpdateIdentityPassword(ctx, userID, string(hash), metadata); err != nil {
		return nil, err
	}

	identity.PasswordHash = string(hash)
	identity.Metadata = metadata
	return identity, nil
}

// SignInWithPassword authenticates with email and password.
func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (*models.Identity, error) {
	identity, err := s.repo.GetIdentityByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.signedIn(ctx, identity.ID, s.now())
}

func (s *Service) signedIn(ctx context.Context, identityID string, at time.Time) (*models.Identity, error) {
	if err := s.repo.TouchIdentitySignIn(ctx, identityID, at); err != nil {
		slog.Warn("identity_sign_in_touch_failed", "user_id", identityID, "error", err)
	}
	identity, err := s.repo.GetIdentityByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	return identity, nil
}

// HashToken computes the SHA-256 of a token for storage.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func randomToken() (string, error) {
	b := make([]byte, TokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
