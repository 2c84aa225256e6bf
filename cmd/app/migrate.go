// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"fmt"

	"codeberg.org/naturkirken/medlemsportal/internal/config"
	"codeberg.org/naturkirken/medlemsportal/internal/database"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the database schema",
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Action: withDB(func(_ context.Context, cmd *cli.Command, db *sqlx.DB) error {
					if err := database.RunMigrations(db.DB); err != nil {
						return err
					}
					return printVersion(cmd, db)
				}),
			},
			{
				Name:  "down",
				Usage: "Roll back the most recent migration",
				Action: withDB(func(_ context.Context, cmd *cli.Command, db *sqlx.DB) error {
					if err := database.MigrateDown(db.DB); err != nil {
						return err
					}
					return printVersion(cmd, db)
				}),
			},
			{
				Name:  "reset",
				Usage: "Roll back all migrations",
				Action: withDB(func(_ context.Context, cmd *cli.Command, db *sqlx.DB) error {
					if err := database.MigrateReset(db.DB); err != nil {
						return err
					}
					return printVersion(cmd, db)
				}),
			},
			{
				Name:  "status",
				Usage: "Print the current schema version",
				Action: withDB(func(_ context.Context, cmd *cli.Command, db *sqlx.DB) error {
					return printVersion(cmd, db)
				}),
			},
		},
	}
}

// withDB opens the configured database without migrating it.
func withDB(fn func(ctx context.Context, cmd *cli.Command, db *sqlx.DB) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg := config.NewFromCLI(cmd)
		db, err := database.Connect(cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() {
			_ = db.Close()
		}()
		return fn(ctx, cmd, db)
	}
}

func printVersion(cmd *cli.Command, db *sqlx.DB) error {
	version, err := database.MigrationVersion(db.DB)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.Root().Writer, "schema version: %d\n", version)
	return err
}
