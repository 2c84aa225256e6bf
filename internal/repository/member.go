// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/naturkirken/medlemsportal/internal/models"
	"github.com/google/uuid"
)

const memberUpsert = `
	INSERT INTO member_profiles (
		id, email, first_name, middle_name, last_name, full_name, phone, address,
		postal_code, city, country, personnummer, gender, membership_type, theme_groups,
		newsletter_subscribed, community_opt_out, created_at, updated_at, last_login_at
	) VALUES (
		:id, :email, :first_name, :middle_name, :last_name, :full_name, :phone, :address,
		:postal_code, :city, :country, :personnummer, :gender, :membership_type, :theme_groups,
		:newsletter_subscribed, :community_opt_out, :created_at, :updated_at, :last_login_at
	)`

// CreateMemberProfile inserts a new profile. A missing ID is generated.
func (r *Repository) CreateMemberProfile(ctx context.Context, p *models.MemberProfile) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.ThemeGroups == nil {
		p.ThemeGroups = models.StringSet{}
	}
	_, err := r.db.NamedExecContext(ctx, memberUpsert, p)
	return wrapError(err)
}

// UpsertMemberProfile inserts the profile or overwrites the row with the same ID.
func (r *Repository) UpsertMemberProfile(ctx context.Context, p *models.MemberProfile) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.ThemeGroups == nil {
		p.ThemeGroups = models.StringSet{}
	}
	_, err := r.db.NamedExecContext(ctx, memberUpsert+`
	ON CONFLICT(id) DO UPDATE SET
		email = excluded.email,
		first_name = excluded.first_name,
		middle_name = excluded.middle_name,
		last_name = excluded.last_name,
		full_name = excluded.full_name,
		phone = excluded.phone,
		address = excluded.address,
		postal_code = excluded.postal_code,
		city = excluded.city,
		country = excluded.country,
		personnummer = excluded.personnummer,
		gender = excluded.gender,
		membership_type = excluded.membership_type,
		theme_groups = excluded.theme_groups,
		newsletter_subscribed = excluded.newsletter_subscribed,
		community_opt_out = excluded.community_opt_out,
		updated_at = excluded.updated_at,
		last_login_at = excluded.last_login_at`, p)
	return wrapError(err)
}

// GetMemberProfileByEmail retrieves the profile registered for an email.
func (r *Repository) GetMemberProfileByEmail(ctx context.Context, email string) (*models.MemberProfile, error) {
	var p models.MemberProfile
	if err := r.db.GetContext(ctx, &p, `SELECT * FROM member_profiles WHERE email = ?`, email); err != nil {
		return nil, wrapError(err)
	}
	return &p, nil
}

// GetMemberProfileByID retrieves a profile by ID.
func (r *Repository) GetMemberProfileByID(ctx context.Context, id string) (*models.MemberProfile, error) {
	var p models.MemberProfile
	if err := r.db.GetContext(ctx, &p, `SELECT * FROM member_profiles WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &p, nil
}

// MemberProfileExists checks if a profile is registered for the email.
func (r *Repository) MemberProfileExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM member_profiles WHERE email = ?)`, email)
	return exists, err
}

// DeleteMemberProfile deletes a profile by ID. Deleting a missing profile is not an error.
func (r *Repository) DeleteMemberProfile(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM member_profiles WHERE id = ?`, id)
	return err
}

// RekeyMemberProfile moves the profile registered for email to newID in a
// single transaction. A stray row already holding newID is replaced. All other
// field values are preserved.
func (r *Repository) RekeyMemberProfile(ctx context.Context, email, newID string) (*models.MemberProfile, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var p models.MemberProfile
	if err := tx.GetContext(ctx, &p, `SELECT * FROM member_profiles WHERE email = ?`, email); err != nil {
		return nil, wrapError(err)
	}

	if p.ID != newID {
		if _, err := tx.ExecContext(ctx, `DELETE FROM member_profiles WHERE id = ?`, newID); err != nil {
			return nil, fmt.Errorf("removing stray profile: %w", err)
		}
		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx,
			`UPDATE member_profiles SET id = ?, updated_at = ? WHERE id = ?`, newID, now, p.ID)
		if err != nil {
			return nil, fmt.Errorf("updating profile id: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return nil, fmt.Errorf("updating profile id: %d rows affected", n)
		}
		p.ID = newID
		p.UpdatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateMemberApplication stores the fields of a membership application on a profile.
func (r *Repository) UpdateMemberApplication(ctx context.Context, p *models.MemberProfile) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE member_profiles SET
			first_name = :first_name,
			middle_name = :middle_name,
			last_name = :last_name,
			full_name = :full_name,
			phone = :phone,
			address = :address,
			postal_code = :postal_code,
			city = :city,
			country = :country,
			personnummer = :personnummer,
			gender = :gender,
			membership_type = :membership_type,
			theme_groups = :theme_groups,
			newsletter_subscribed = :newsletter_subscribed,
			community_opt_out = :community_opt_out,
			updated_at = :updated_at
		WHERE id = :id`, p)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// TouchMemberLogin records a successful sign-in on the profile.
func (r *Repository) TouchMemberLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE member_profiles SET last_login_at = ? WHERE id = ?`, at, id)
	return err
}

// ProfileLink pairs a profile with the identity registered for the same email.
type ProfileLink struct {
	Email      string `db:"email"`
	ProfileID  string `db:"profile_id"`
	IdentityID string `db:"identity_id"`
}

// FindDuplicateMemberEmails returns emails held by more than one profile,
// compared case-insensitively.
func (r *Repository) FindDuplicateMemberEmails(ctx context.Context) ([]string, error) {
	var emails []string
	err := r.db.SelectContext(ctx, &emails, `
		SELECT lower(email) FROM member_profiles
		GROUP BY lower(email)
		HAVING COUNT(*) > 1
		ORDER BY lower(email)`)
	return emails, err
}

// FindUnlinkedMemberProfiles returns profiles whose email has an identity
// with a different ID, i.e. profiles that were never re-keyed.
func (r *Repository) FindUnlinkedMemberProfiles(ctx context.Context) ([]ProfileLink, error) {
	var links []ProfileLink
	err := r.db.SelectContext(ctx, &links, `
		SELECT m.email AS email, m.id AS profile_id, i.id AS identity_id
		FROM member_profiles m
		JOIN auth_identities i ON lower(i.email) = lower(m.email)
		WHERE m.id <> i.id
		ORDER BY m.email`)
	return links, err
}
