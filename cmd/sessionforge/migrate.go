// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SessionForge Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/sessionforge/sessionforge/internal/config"
	"github.com/sessionforge/sessionforge/internal/store"
)

// migrateConfig holds configuration for the migrate subcommand.
type migrateConfig struct {
	down  bool
	steps int
	force int
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	mcfg := &migrateConfig{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Run database migrations against the PostgreSQL database.
With no flags, applies all pending migrations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, mcfg)
		},
	}

	cmd.Flags().BoolVar(&mcfg.down, "down", false, "roll back all migrations (destructive)")
	cmd.Flags().IntVar(&mcfg.steps, "steps", 0, "apply n migrations (negative rolls back)")
	cmd.Flags().IntVar(&mcfg.force, "force", -1, "force migration version without running migrations")

	return cmd
}

func runMigrate(cmd *cobra.Command, mcfg *migrateConfig) (err error) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	migrator, err := store.NewMigrator(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	switch {
	case mcfg.force >= 0:
		if err = migrator.Force(mcfg.force); err != nil {
			return err
		}
		cmd.Printf("Forced migration version to %d\n", mcfg.force)
	case mcfg.down:
		if err = migrator.Down(); err != nil {
			return err
		}
		cmd.Println("Rolled back all migrations")
	case mcfg.steps != 0:
		if err = migrator.Steps(mcfg.steps); err != nil {
			return err
		}
		cmd.Printf("Applied %d migration steps\n", mcfg.steps)
	default:
		cmd.Println("Running migrations...")
		if err = migrator.Up(); err != nil {
			return err
		}
		cmd.Println("Migrations completed successfully")
	}

	version, dirty, verr := migrator.Version()
	if verr != nil {
		return verr
	}
	if dirty {
		return oops.Code("MIGRATION_DIRTY").
			With("version", version).
			Errorf("schema is dirty at version %d; fix the database and use --force", version)
	}

	name, nerr := store.MigrationName(version)
	if nerr != nil {
		return nerr
	}
	if name != "" {
		cmd.Printf("Schema at version %d (%s)\n", version, name)
	} else {
		cmd.Printf("Schema at version %d\n", version)
	}
	return nil
}
