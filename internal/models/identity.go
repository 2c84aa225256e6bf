// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// IdentityMetadata holds flags attached to an authentication identity.
type IdentityMetadata struct {
	NeedsPasswordSetup bool `json:"needs_password_setup,omitempty"`
}

// Value implements driver.Valuer.
func (m IdentityMetadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *IdentityMetadata) Scan(src any) error {
	*m = IdentityMetadata{}
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		return json.Unmarshal([]byte(v), m)
	case []byte:
		return json.Unmarshal(v, m)
	default:
		return fmt.Errorf("cannot scan %T into IdentityMetadata", src)
	}
}

// Identity is an authentication identity. Member profiles reference it by ID.
type Identity struct { //nolint:govet // fieldalignment: readability over optimization
	ID               string           `db:"id" json:"id"`
	Email            string           `db:"email" json:"email"`
	PasswordHash     string           `db:"password_hash" json:"-"`
	EmailConfirmedAt *time.Time       `db:"email_confirmed_at" json:"email_confirmed_at,omitempty"`
	Metadata         IdentityMetadata `db:"metadata" json:"user_metadata"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	LastSignInAt     *time.Time       `db:"last_sign_in_at" json:"last_sign_in_at,omitempty"`
}

// MagicLinkToken is a single-use token that can be exchanged for a session.
// Only the SHA-256 of the token hash handed to the client is stored.
type MagicLinkToken struct { //nolint:govet // fieldalignment: readability over optimization
	ID         int64      `db:"id" json:"id"`
	IdentityID string     `db:"identity_id" json:"identity_id"`
	TokenHash  string     `db:"token_hash" json:"-"`
	ExpiresAt  time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UsedAt     *time.Time `db:"used_at" json:"used_at,omitempty"`
}
