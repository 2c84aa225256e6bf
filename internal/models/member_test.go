// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package models_test

import (
	"testing"
	"time"

	"codeberg.org/naturkirken/medlemsportal/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMembershipType_Applicable(t *testing.T) {
	assert.True(t, models.MembershipFull.Applicable())
	assert.True(t, models.MembershipSupporting.Applicable())
	assert.False(t, models.MembershipWithdrawn.Applicable())
	assert.False(t, models.MembershipType("Æresmedlem").Applicable())
}

func TestNewStringSet(t *testing.T) {
	set := models.NewStringSet("turgruppe", " bønn ", "", "turgruppe", "kajakk")

	assert.Equal(t, models.StringSet{"bønn", "kajakk", "turgruppe"}, set)
}

func TestStringSet_ValueAndScan(t *testing.T) {
	set := models.NewStringSet("b", "a")

	v, err := set.Value()
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, v)

	var scanned models.StringSet
	require.NoError(t, scanned.Scan(`["b","a","a"]`))
	assert.Equal(t, models.StringSet{"a", "b"}, scanned)

	require.NoError(t, scanned.Scan(nil))
	assert.Empty(t, scanned)

	assert.Error(t, scanned.Scan(42))
}

func TestStringSet_NilValue(t *testing.T) {
	var set models.StringSet

	v, err := set.Value()

	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestMaskedPersonnummer(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"01019012345", "*********45"},
		{"12", "**"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p := &models.MemberProfile{Personnummer: tt.in}
			assert.Equal(t, tt.want, p.MaskedPersonnummer())
		})
	}
}

func TestJoinFullName(t *testing.T) {
	assert.Equal(t, "Anna Marie Berg", models.JoinFullName("Anna", "Marie", "Berg"))
	assert.Equal(t, "Anna Berg", models.JoinFullName("Anna", "", "Berg"))
	assert.Empty(t, models.JoinFullName("", " ", ""))
}

func TestVerificationCode_IsExpired(t *testing.T) {
	now := time.Now()
	code := &models.VerificationCode{ExpiresAt: now.Add(time.Minute)}

	assert.False(t, code.IsExpired(now))
	assert.True(t, code.IsExpired(now.Add(time.Minute)))
	assert.True(t, code.IsExpired(now.Add(time.Hour)))
}

func TestIdentityMetadata_ValueAndScan(t *testing.T) {
	meta := models.IdentityMetadata{NeedsPasswordSetup: true}

	v, err := meta.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"needs_password_setup":true}`, v.(string))

	var scanned models.IdentityMetadata
	require.NoError(t, scanned.Scan([]byte(`{"needs_password_setup":true}`)))
	assert.True(t, scanned.NeedsPasswordSetup)

	require.NoError(t, scanned.Scan("{}"))
	assert.False(t, scanned.NeedsPasswordSetup)
}
