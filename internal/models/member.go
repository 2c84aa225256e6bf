// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// MembershipType is the kind of membership a member holds.
type MembershipType string

const (
	MembershipSupporting MembershipType = "Støttemedlem"
	MembershipFull       MembershipType = "Hovedmedlem"
	MembershipWithdrawn  MembershipType = "Utmeldt"
)

// Applicable reports whether the type can be requested in a membership application.
func (t MembershipType) Applicable() bool {
	return t == MembershipSupporting || t == MembershipFull
}

// Gender values accepted on member profiles.
type Gender string

const (
	GenderMale        Gender = "mann"
	GenderFemale      Gender = "kvinne"
	GenderOther       Gender = "annet"
	GenderUnspecified Gender = "uoppgitt"
)

// StringSet is a sorted, de-duplicated set of strings stored as a JSON array.
type StringSet []string

// NewStringSet builds a set, dropping blanks and duplicates.
func NewStringSet(values ...string) StringSet {
	set := make(StringSet, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" && !slices.Contains(set, v) {
			set = append(set, v)
		}
	}
	slices.Sort(set)
	return set
}

// Value implements driver.Valuer.
func (s StringSet) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (s *StringSet) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = StringSet{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into StringSet", src)
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return err
	}
	*s = NewStringSet(values...)
	return nil
}

// MemberProfile is a member's record in the member directory. Its ID equals
// the bound identity's ID once the member has signed in for the first time.
type MemberProfile struct { //nolint:govet // fieldalignment: readability over optimization
	ID                   string         `db:"id" json:"id"`
	Email                string         `db:"email" json:"email"`
	FirstName            string         `db:"first_name" json:"first_name"`
	MiddleName           string         `db:"middle_name" json:"middle_name"`
	LastName             string         `db:"last_name" json:"last_name"`
	FullName             string         `db:"full_name" json:"full_name"`
	Phone                string         `db:"phone" json:"phone"`
	Address              string         `db:"address" json:"address"`
	PostalCode           string         `db:"postal_code" json:"postal_code"`
	City                 string         `db:"city" json:"city"`
	Country              string         `db:"country" json:"country"`
	Personnummer         string         `db:"personnummer" json:"-"`
	Gender               Gender         `db:"gender" json:"gender"`
	MembershipType       MembershipType `db:"membership_type" json:"membership_type"`
	ThemeGroups          StringSet      `db:"theme_groups" json:"theme_groups"`
	NewsletterSubscribed bool           `db:"newsletter_subscribed" json:"newsletter_subscribed"`
	CommunityOptOut      bool           `db:"community_opt_out" json:"community_opt_out"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updated_at"`
	LastLoginAt          *time.Time     `db:"last_login_at" json:"last_login_at,omitempty"`
}

// MaskedPersonnummer returns the national ID with all but the last two digits hidden.
func (p *MemberProfile) MaskedPersonnummer() string {
	n := len(p.Personnummer)
	if n <= 2 {
		return strings.Repeat("*", n)
	}
	return strings.Repeat("*", n-2) + p.Personnummer[n-2:]
}

// JoinFullName builds a display name from the name parts.
func JoinFullName(first, middle, last string) string {
	return strings.Join(strings.Fields(first+" "+middle+" "+last), " ")
}
