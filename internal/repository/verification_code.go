// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/naturkirken/medlemsportal/internal/models"
)

// InvalidateVerificationCodes marks every unused code for the email as used.
// Returns the number of codes invalidated.
func (r *Repository) InvalidateVerificationCodes(ctx context.Context, email string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE verification_codes SET used = 1, used_at = ? WHERE email = ? AND used = 0`,
		at, email)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CreateVerificationCode inserts a new code and sets its ID.
func (r *Repository) CreateVerificationCode(ctx context.Context, code *models.VerificationCode) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO verification_codes (email, code, created_at, expires_at, used) VALUES (?, ?, ?, ?, 0)`,
		code.Email, code.Code, code.CreatedAt, code.ExpiresAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	code.ID = id
	code.Used = false
	return nil
}

// RedeemVerificationCode marks the newest unused, unexpired code matching
// email and code as used and returns its ID. The check and the update are one
// statement, so a code can be redeemed at most once even under concurrent calls.
func (r *Repository) RedeemVerificationCode(ctx context.Context, email, code string, now time.Time) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, `
		UPDATE verification_codes SET used = 1, used_at = ?
		WHERE id = (
			SELECT id FROM verification_codes
			WHERE email = ? AND code = ? AND used = 0 AND expires_at > ?
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) AND used = 0
		RETURNING id`,
		now, email, code, now)
	if err != nil {
		return 0, wrapError(err)
	}
	return id, nil
}

// RecordFailedVerification counts a wrong guess against every outstanding
// code for the email and burns codes that reach maxAttempts. It returns the
// highest attempt count after the update, or 0 when no code is outstanding.
func (r *Repository) RecordFailedVerification(ctx context.Context, email string, maxAttempts int, now time.Time) (int, error) {
	var attempts []int
	err := r.db.SelectContext(ctx, &attempts, `
		UPDATE verification_codes
		SET attempts = attempts + 1,
			used = CASE WHEN attempts + 1 >= ? THEN 1 ELSE used END,
			used_at = CASE WHEN attempts + 1 >= ? THEN ? ELSE used_at END
		WHERE email = ? AND used = 0 AND expires_at > ?
		RETURNING attempts`,
		maxAttempts, maxAttempts, now, email, now)
	if err != nil {
		return 0, err
	}
	highest := 0
	for _, n := range attempts {
		highest = max(highest, n)
	}
	return highest, nil
}

// CountVerificationCodesSince returns how many codes were issued for the email since the given time.
func (r *Repository) CountVerificationCodesSince(ctx context.Context, email string, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM verification_codes WHERE email = ? AND created_at > ?`,
		email, since)
	return count, err
}

// ListVerificationCodes returns all codes for the email, newest first.
func (r *Repository) ListVerificationCodes(ctx context.Context, email string) ([]models.VerificationCode, error) {
	var codes []models.VerificationCode
	err := r.db.SelectContext(ctx, &codes,
		`SELECT * FROM verification_codes WHERE email = ? ORDER BY created_at DESC, id DESC`, email)
	if err != nil {
		return nil, err
	}
	return codes, nil
}
