// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package identity_test

import (
	"context"
	"fmt"
	"testing"

	"codeberg.org/naturkirken/medlemsportal/internal/models"
	"codeberg.org/naturkirken/medlemsportal/internal/repository"
	"codeberg.org/naturkirken/medlemsportal/internal/services/identity"
	"codeberg.org/naturkirken/medlemsportal/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*identity.Service, *repository.Repository) {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	return identity.NewService(repo), repo
}

func TestCreateUser(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, identity.CreateUserParams{
		Email:        " Anna@Example.com ",
		EmailConfirm: true,
		Metadata:     models.IdentityMetadata{NeedsPasswordSetup: true},
	})

	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "anna@example.com", user.Email)
	assert.NotNil(t, user.EmailConfirmedAt)
	assert.True(t, user.Metadata.NeedsPasswordSetup)

	stored, err := repo.GetIdentityByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.PasswordHash)
	assert.True(t, stored.Metadata.NeedsPasswordSetup)
}

func TestCreateUser_PlaceholderPasswordIsUnusable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateUser(ctx, identity.CreateUserParams{Email: "anna@example.com"})
	require.NoError(t, err)

	_, err = svc.SignInWithPassword(ctx, "anna@example.com", "")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
}

func TestCreateUser_Duplicate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateUser(ctx, identity.CreateUserParams{Email: "anna@example.com"})
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, identity.CreateUserParams{Email: "ANNA@example.com"})

	assert.ErrorIs(t, err, identity.ErrUserExists)
}

func TestCreateUser_InvalidEmail(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateUser(context.Background(), identity.CreateUserParams{Email: "not-an-email"})

	assert.ErrorIs(t, err, identity.ErrInvalidEmail)
}

func TestListUsers(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	for i := range 3 {
		testutil.NewTestIdentity(t, repo, fmt.Sprintf("user%d@example.com", i))
	}

	page1, err := svc.ListUsers(ctx, 1, 2)
	require.NoError(t, err)
	assert.Len(t, page1, 2)

	page2, err := svc.ListUsers(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page2, 1)

	all, err := svc.ListUsers(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGenerateMagicLinkAndVerify(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	user, err := svc.CreateUser(ctx, identity.CreateUserParams{Email: "anna@example.com"})
	require.NoError(t, err)

	link, err := svc.GenerateMagicLink(ctx, "Anna@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, link.UserID)
	assert.Len(t, link.HashedToken, 64)

	var stored string
	require.NoError(t, repo.DB().Get(&stored, `SELECT token_hash FROM magic_link_tokens WHERE identity_id = ?`, user.ID))
	assert.NotEqual(t, link.HashedToken, stored)
	assert.Equal(t, identity.HashToken(link.HashedToken), stored)

	verified, err := svc.VerifyOTP(ctx, identity.VerifyParams{Type: identity.OTPTypeMagicLink, TokenHash: link.HashedToken})
	require.NoError(t, err)
	assert.Equal(t, user.ID, verified.ID)
	assert.NotNil(t, verified.EmailConfirmedAt)
	assert.NotNil(t, verified.LastSignInAt)

	_, err = svc.VerifyOTP(ctx, identity.VerifyParams{Type: identity.OTPTypeMagicLink, TokenHash: link.HashedToken})
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestGenerateMagicLink_UnknownUser(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GenerateMagicLink(context.Background(), "nobody@example.com")

	assert.ErrorIs(t, err, identity.ErrUserNotFound)
}

func TestVerifyOTP_Rejects(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.VerifyOTP(ctx, identity.VerifyParams{Type: "signup", TokenHash: "abc"})
	assert.ErrorIs(t, err, identity.ErrUnsupportedOTPType)

	_, err = svc.VerifyOTP(ctx, identity.VerifyParams{Type: identity.OTPTypeMagicLink})
	assert.ErrorIs(t, err, identity.ErrInvalidToken)

	_, err = svc.VerifyOTP(ctx, identity.VerifyParams{Type: identity.OTPTypeMagicLink, TokenHash: "unknown"})
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestUpdatePasswordAndSignIn(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	user, err := svc.CreateUser(ctx, identity.CreateUserParams{
		Email:    "anna@example.com",
		Metadata: models.IdentityMetadata{NeedsPasswordSetup: true},
	})
	require.NoError(t, err)

	updated, err := svc.UpdatePassword(ctx, user.ID, "grønne skoger i mai")
	require.NoError(t, err)
	assert.False(t, updated.Metadata.NeedsPasswordSetup)

	signedIn, err := svc.SignInWithPassword(ctx, "anna@example.com", "grønne skoger i mai")
	require.NoError(t, err)
	assert.Equal(t, user.ID, signedIn.ID)
	assert.False(t, signedIn.Metadata.NeedsPasswordSetup)
	assert.NotNil(t, signedIn.LastSignInAt)

	_, err = svc.SignInWithPassword(ctx, "anna@example.com", "wrong password here")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
}

func TestUpdatePassword_Weak(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	user, err := svc.CreateUser(ctx, identity.CreateUserParams{Email: "anna@example.com"})
	require.NoError(t, err)

	_, err = svc.UpdatePassword(ctx, user.ID, "short")

	var pve *identity.PasswordValidationError
	require.ErrorAs(t, err, &pve)
	assert.Contains(t, pve.Rules, identity.RuleMinLength)
}

func TestUpdatePassword_UnknownUser(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.UpdatePassword(context.Background(), "missing", "grønne skoger i mai")

	assert.ErrorIs(t, err, identity.ErrUserNotFound)
}

func TestSignInWithPassword_UnknownEmail(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SignInWithPassword(context.Background(), "nobody@example.com", "whatever password")

	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
}
