// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/naturkirken/medlemsportal/internal/database"
	"codeberg.org/naturkirken/medlemsportal/internal/models"
	"codeberg.org/naturkirken/medlemsportal/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func run(t *testing.T, dsn string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newCommand()
	cmd.Writer = &out
	cmd.ErrWriter = &out

	argv := append([]string{"app", "--config", filepath.Join(t.TempDir(), "none.toml"), "--database-dsn", dsn}, args...)
	err := cmd.Run(context.Background(), argv)
	return out.String(), err
}

func TestMigrateCommands(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "cli.db")

	out, err := run(t, dsn, "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version: 0")

	out, err = run(t, dsn, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version: 4")

	out, err = run(t, dsn, "migrate", "down")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version: 3")

	out, err = run(t, dsn, "migrate", "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version: 0")
}

func TestMembersAdd(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "cli.db")

	out, err := run(t, dsn, "members", "add",
		"--email", " Kari@Example.NO ",
		"--first-name", "Kari",
		"--last-name", "Nordmann",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "added member kari@example.no")

	db, err := database.Open(dsn)
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	p, err := repository.New(db).GetMemberProfileByEmail(context.Background(), "kari@example.no")
	require.NoError(t, err)
	assert.Equal(t, "Kari Nordmann", p.FullName)
	assert.Equal(t, models.MembershipSupporting, p.MembershipType)
	assert.Equal(t, models.GenderUnspecified, p.Gender)

	_, err = run(t, dsn, "members", "add", "--email", "kari@example.no")
	assert.ErrorContains(t, err, "already exists")
}

func TestMembersAdd_InvalidMembershipType(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "cli.db")

	_, err := run(t, dsn, "members", "add", "--email", "ola@example.no", "--membership-type", "Utmeldt")
	assert.ErrorContains(t, err, "unknown membership type")
}

func TestMembersCheck(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "cli.db")

	out, err := run(t, dsn, "members", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "ok")

	db, err := database.Open(dsn)
	require.NoError(t, err)
	// The unique index prevents duplicates from the application; simulate an
	// import that bypassed it.
	_, err = db.Exec(`DROP INDEX IF EXISTS idx_member_profiles_email`)
	require.NoError(t, err)
	for _, email := range []string{"dup@example.no", "DUP@example.no"} {
		_, err = db.Exec(`INSERT INTO member_profiles (id, email, membership_type, gender) VALUES (?, ?, ?, ?)`,
			"id-"+email, email, models.MembershipSupporting, models.GenderUnspecified)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	out, err = run(t, dsn, "members", "check")
	require.Error(t, err)
	var exitErr cli.ExitCoder
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.ExitCode())
	assert.Contains(t, out, "duplicate: dup@example.no")
}

func TestLoadDotEnv(t *testing.T) {
	require.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MEDLEMSPORTAL_TEST_VAR=from-dotenv\n"), 0o600))
	t.Setenv("MEDLEMSPORTAL_TEST_VAR", "")
	require.NoError(t, os.Unsetenv("MEDLEMSPORTAL_TEST_VAR"))

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "from-dotenv", os.Getenv("MEDLEMSPORTAL_TEST_VAR"))
}
