// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SessionForge Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/sessionforge/sessionforge/internal/auth"
	authpg "github.com/sessionforge/sessionforge/internal/auth/postgres"
	"github.com/sessionforge/sessionforge/internal/config"
	"github.com/sessionforge/sessionforge/internal/store"
)

// Default timeout for the seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed subcommand.
type seedConfig struct {
	name     string
	email    string
	password string
	timeout  time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	scfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create an initial user account",
		Long: `Creates an initial user account with the given credentials.
This command is idempotent - if a user with the email already exists,
it is left untouched.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, scfg)
		},
	}

	cmd.Flags().StringVar(&scfg.name, "name", "", "display name for the user")
	cmd.Flags().StringVar(&scfg.email, "email", "", "email address for the user")
	cmd.Flags().StringVar(&scfg.password, "password", "", "initial password for the user")
	cmd.Flags().DurationVar(&scfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	_ = cmd.MarkFlagRequired("name")     //nolint:errcheck // flag exists
	_ = cmd.MarkFlagRequired("email")    //nolint:errcheck // flag exists
	_ = cmd.MarkFlagRequired("password") //nolint:errcheck // flag exists

	return cmd
}

func runSeed(cmd *cobra.Command, scfg *seedConfig) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	// Use cmd.Context() to respect SIGINT/SIGTERM signals.
	ctx, cancel := context.WithTimeout(cmd.Context(), scfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	pool, err := store.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	hasher := auth.NewArgon2idHasher()
	hash, err := hasher.Hash(scfg.password)
	if err != nil {
		return oops.Code("SEED_FAILED").With("operation", "hash password").Wrap(err)
	}

	user, err := auth.NewUser(scfg.name, scfg.email, hash)
	if err != nil {
		return err
	}

	users := authpg.NewUserRepository(pool)
	if err := users.Create(ctx, user); err != nil {
		var oopsErr oops.OopsError
		if errors.As(err, &oopsErr) && oopsErr.Code() == "USER_ALREADY_EXISTS" {
			cmd.Println("User already exists, skipping seed")
			existing, getErr := users.GetByEmail(ctx, user.Email)
			if getErr != nil {
				slog.Warn("could not verify existing seed user",
					"email", user.Email,
					"error", getErr)
			} else if existing.Name != user.Name {
				slog.Warn("seed user name mismatch",
					"email", user.Email,
					"expected", user.Name,
					"actual", existing.Name)
			}
			return nil
		}
		return err
	}

	cmd.Printf("Created user %s (%s)\n", user.Name, user.ID)
	return nil
}
