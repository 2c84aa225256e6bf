// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package models

import "time"

// VerificationCode is a one-time sign-in code sent by email.
type VerificationCode struct { //nolint:govet // fieldalignment: readability over optimization
	ID        int64      `db:"id" json:"id"`
	Email     string     `db:"email" json:"email"`
	Code      string     `db:"code" json:"-"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	Used      bool       `db:"used" json:"used"`
	UsedAt    *time.Time `db:"used_at" json:"used_at,omitempty"`
	Attempts  int        `db:"attempts" json:"attempts"` // failed guesses against the code
}

// IsExpired reports whether the code is past its expiry at the given time.
func (c *VerificationCode) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
