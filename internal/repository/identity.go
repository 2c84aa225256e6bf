// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/naturkirken/medlemsportal/internal/models"
)

// ListIdentities returns a page of identities ordered by creation time.
func (r *Repository) ListIdentities(ctx context.Context, offset, limit int) ([]models.Identity, error) {
	var identities []models.Identity
	err := r.db.SelectContext(ctx, &identities,
		`SELECT * FROM auth_identities ORDER BY created_at, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	return identities, nil
}

// GetIdentityByID retrieves an identity by ID.
func (r *Repository) GetIdentityByID(ctx context.Context, id string) (*models.Identity, error) {
	var identity models.Identity
	if err := r.db.GetContext(ctx, &identity, `SELECT * FROM auth_identities WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &identity, nil
}

// GetIdentityByEmail retrieves an identity by email, ignoring case.
func (r *Repository) GetIdentityByEmail(ctx context.Context, email string) (*models.Identity, error) {
	var identity models.Identity
	err := r.db.GetContext(ctx, &identity,
		`SELECT * FROM auth_identities WHERE lower(email) = lower(?)`, email)
	if err != nil {
		return nil, wrapError(err)
	}
	return &identity, nil
}

// CreateIdentity inserts a new identity.
func (r *Repository) CreateIdentity(ctx context.Context, identity *models.Identity) error {
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO auth_identities (id, email, password_hash, email_confirmed_at, metadata, created_at, last_sign_in_at)
		VALUES (:id, :email, :password_hash, :email_confirmed_at, :metadata, :created_at, :last_sign_in_at)`,
		identity)
	return wrapError(err)
}

// UpdateIdentityPassword replaces the password hash and metadata of an identity.
func (r *Repository) UpdateIdentityPassword(ctx context.Context, id, passwordHash string, metadata models.IdentityMetadata) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE auth_identities SET password_hash = ?, metadata = ? WHERE id = ?`,
		passwordHash, metadata, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// ConfirmIdentityEmail sets the email confirmation time unless already set.
func (r *Repository) ConfirmIdentityEmail(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE auth_identities SET email_confirmed_at = COALESCE(email_confirmed_at, ?) WHERE id = ?`,
		at, id)
	return err
}

// TouchIdentitySignIn records a successful sign-in.
func (r *Repository) TouchIdentitySignIn(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE auth_identities SET last_sign_in_at = ? WHERE id = ?`, at, id)
	return err
}

// CreateMagicLinkToken inserts a new magic link token and sets its ID.
func (r *Repository) CreateMagicLinkToken(ctx context.Context, token *models.MagicLinkToken) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO magic_link_tokens (identity_id, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		token.IdentityID, token.TokenHash, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return wrapError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	token.ID = id
	return nil
}

// ConsumeMagicLinkToken marks an unused, unexpired token as used and returns
// the identity it belongs to. A token can be consumed once.
func (r *Repository) ConsumeMagicLinkToken(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	var identityID string
	err := r.db.GetContext(ctx, &identityID, `
		UPDATE magic_link_tokens SET used_at = ?
		WHERE token_hash = ? AND used_at IS NULL AND expires_at > ?
		RETURNING identity_id`,
		now, tokenHash, now)
	if err != nil {
		return "", wrapError(err)
	}
	return identityID, nil
}

// DeleteExpiredMagicLinkTokens removes tokens that expired before the given time.
func (r *Repository) DeleteExpiredMagicLinkTokens(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM magic_link_tokens WHERE expires_at < ?`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
