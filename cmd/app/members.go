// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"codeberg.org/naturkirken/medlemsportal/internal/database"
	"codeberg.org/naturkirken/medlemsportal/internal/models"
	"codeberg.org/naturkirken/medlemsportal/internal/repository"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

// errDuplicateMembers makes `members check` exit with status 1.
var errDuplicateMembers = cli.Exit("duplicate member profiles found", 1)

func membersCommand() *cli.Command {
	return &cli.Command{
		Name:  "members",
		Usage: "Inspect and seed member profiles",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add a member profile",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true, Usage: "Email address"},
					&cli.StringFlag{Name: "first-name", Usage: "First name"},
					&cli.StringFlag{Name: "middle-name", Usage: "Middle name"},
					&cli.StringFlag{Name: "last-name", Usage: "Last name"},
					&cli.StringFlag{Name: "phone", Usage: "Phone number"},
					&cli.StringFlag{
						Name:  "membership-type",
						Value: string(models.MembershipSupporting),
						Usage: "Membership type (Støttemedlem, Hovedmedlem)",
					},
				},
				Action: migratedDB(addMember),
			},
			{
				Name:   "check",
				Usage:  "Report duplicate and unlinked member profiles",
				Action: migratedDB(checkMembers),
			},
		},
	}
}

// migratedDB opens the configured database and applies pending migrations.
func migratedDB(fn func(ctx context.Context, cmd *cli.Command, repo *repository.Repository) error) cli.ActionFunc {
	return withDB(func(ctx context.Context, cmd *cli.Command, db *sqlx.DB) error {
		if err := database.RunMigrations(db.DB); err != nil {
			return err
		}
		return fn(ctx, cmd, repository.New(db))
	})
}

func addMember(ctx context.Context, cmd *cli.Command, repo *repository.Repository) error {
	email := strings.ToLower(strings.TrimSpace(cmd.String("email")))
	if email == "" {
		return errors.New("email is required")
	}
	membership := models.MembershipType(cmd.String("membership-type"))
	if !membership.Applicable() {
		return fmt.Errorf("unknown membership type %q", membership)
	}

	exists, err := repo.MemberProfileExists(ctx, email)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("a member with email %s already exists", email)
	}

	p := &models.MemberProfile{
		Email:          email,
		FirstName:      cmd.String("first-name"),
		MiddleName:     cmd.String("middle-name"),
		LastName:       cmd.String("last-name"),
		Phone:          cmd.String("phone"),
		Gender:         models.GenderUnspecified,
		MembershipType: membership,
	}
	p.FullName = models.JoinFullName(p.FirstName, p.MiddleName, p.LastName)

	if err := repo.CreateMemberProfile(ctx, p); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.Root().Writer, "added member %s (%s)\n", p.Email, p.ID)
	return err
}

func checkMembers(ctx context.Context, cmd *cli.Command, repo *repository.Repository) error {
	out := cmd.Root().Writer

	duplicates, err := repo.FindDuplicateMemberEmails(ctx)
	if err != nil {
		return err
	}
	unlinked, err := repo.FindUnlinkedMemberProfiles(ctx)
	if err != nil {
		return err
	}

	for _, email := range duplicates {
		_, _ = fmt.Fprintf(out, "duplicate: %s\n", email)
	}
	for _, link := range unlinked {
		_, _ = fmt.Fprintf(out, "unlinked: %s profile=%s identity=%s\n", link.Email, link.ProfileID, link.IdentityID)
	}

	if len(duplicates) > 0 {
		return errDuplicateMembers
	}
	if len(unlinked) == 0 {
		_, _ = fmt.Fprintln(out, "ok")
	}
	return nil
}
