// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"

	"codeberg.org/naturkirken/medlemsportal/internal/config"
	"codeberg.org/naturkirken/medlemsportal/internal/server"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := loadDotEnv(".env"); err != nil {
		log.Fatal(err)
	}

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		log.Fatal(err)
	}
}

// loadDotEnv loads environment variables from path when the file exists.
// Variables already set in the environment win.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "app",
		Usage:   "Naturkirken member portal",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Flags:   config.Flags(),
		Action:  server.Run,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the API server",
				Action: server.Run,
			},
			migrateCommand(),
			membersCommand(),
		},
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if err != nil {
				slog.Debug("command failed", "error", err)
			}
		},
	}
}
