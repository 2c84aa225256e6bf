// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

// Package account binds a verified email to an authentication identity and
// keeps the member profile keyed by that identity.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"codeberg.org/naturkirken/medlemsportal/internal/metrics"
	"codeberg.org/naturkirken/medlemsportal/internal/models"
	"codeberg.org/naturkirken/medlemsportal/internal/repository"
	"codeberg.org/naturkirken/medlemsportal/internal/services/identity"
)

// Resolution types.
const (
	TypeExistingUser = "existing_user"
	TypeNewUser      = "new_user"
)

// DefaultPageSize is the identity listing page size used while searching.
const DefaultPageSize = 200

// Resolution is the outcome of a successful sign-in.
type Resolution struct {
	Type          string `json:"type"`
	TokenHash     string `json:"token_hash"`
	Email         string `json:"email"`
	NeedsPassword bool   `json:"needs_password,omitempty"` // set only for new users
	UserID        string `json:"-"`
}

// Resolver finds or provisions the identity for a verified email.
type Resolver struct {
	provider identity.Provider
	repo     *repository.Repository
	metrics  metrics.Recorder
	pageSize int
}

// NewResolver creates a Resolver.
func NewResolver(provider identity.Provider, repo *repository.Repository, rec metrics.Recorder) *Resolver {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Resolver{
		provider: provider,
		repo:     repo,
		metrics:  rec,
		pageSize: DefaultPageSize,
	}
}

// SetPageSize overrides the identity listing page size.
func (r *Resolver) SetPageSize(n int) {
	if n > 0 {
		r.pageSize = n
	}
}

// Resolve returns a redeemable sign-in token for the identity registered for
// email, provisioning one on first sign-in. It never reports success unless
// the member profile is keyed by the identity.
func (r *Resolver) Resolve(ctx context.Context, email string) (*Resolution, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := r.findIdentity(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("looking up identity: %w", err)
	}

	resType := TypeExistingUser
	if user == nil {
		user, err = r.provision(ctx, email)
		if err != nil {
			return nil, err
		}
		if user.Metadata.NeedsPasswordSetup {
			resType = TypeNewUser
		}
	}

	if err := r.linkProfile(ctx, email, user.ID); err != nil {
		return nil, err
	}

	link, err := r.provider.GenerateMagicLink(ctx, user.Email)
	if err != nil {
		return nil, fmt.Errorf("generating sign-in token: %w", err)
	}

	if err := r.repo.TouchMemberLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		slog.Warn("member_login_touch_failed", "user_id", user.ID, "error", err)
	}

	slog.Info("identity_resolved", "user_id", user.ID, "email", email, "type", resType)
	return &Resolution{
		Type:          resType,
		TokenHash:     link.HashedToken,
		Email:         user.Email,
		NeedsPassword: resType == TypeNewUser,
		UserID:        user.ID,
	}, nil
}

// findIdentity scans every page of identities for a case-insensitive email match.
func (r *Resolver) findIdentity(ctx context.Context, email string) (*models.Identity, error) {
	for page := 1; ; page++ {
		users, err := r.provider.ListUsers(ctx, page, r.pageSize)
		if err != nil {
			return nil, err
		}
		for i := range users {
			if strings.EqualFold(users[i].Email, email) {
				return &users[i], nil
			}
		}
		if len(users) < r.pageSize {
			return nil, nil
		}
	}
}

// provision creates the identity for a first sign-in. A concurrent sign-in
// that created it first wins.
func (r *Resolver) provision(ctx context.Context, email string) (*models.Identity, error) {
	user, err := r.provider.CreateUser(ctx, identity.CreateUserParams{
		Email:        email,
		EmailConfirm: true,
		Metadata:     models.IdentityMetadata{NeedsPasswordSetup: true},
	})
	if errors.Is(err, identity.ErrUserExists) {
		existing, findErr := r.findIdentity(ctx, email)
		if findErr != nil {
			return nil, fmt.Errorf("looking up identity: %w", findErr)
		}
		if existing == nil {
			return nil, fmt.Errorf("identity for %s reported as existing but not listed", email)
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("creating identity: %w", err)
	}

	r.metrics.IdentityProvisioned()
	slog.Info("identity_provisioned", "user_id", user.ID, "email", email)
	return user, nil
}

// linkProfile re-keys the member profile to the identity ID. A member
// without a profile gets a minimal one.
func (r *Resolver) linkProfile(ctx context.Context, email, userID string) error {
	profile, err := r.repo.RekeyMemberProfile(ctx, email, userID)
	if errors.Is(err, repository.ErrNotFound) {
		slog.Warn("member_profile_missing", "user_id", userID, "email", email)
		if err := r.repo.UpsertMemberProfile(ctx, &models.MemberProfile{ID: userID, Email: email}); err != nil {
			return fmt.Errorf("creating member profile: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("re-keying member profile: %w", err)
	}
	slog.Debug("member_profile_linked", "user_id", profile.ID, "email", email)
	return nil
}
