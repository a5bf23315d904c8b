// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SessionForge Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/sessionforge/sessionforge/internal/auth"
	authpg "github.com/sessionforge/sessionforge/internal/auth/postgres"
	"github.com/sessionforge/sessionforge/internal/config"
	"github.com/sessionforge/sessionforge/internal/store"
)

// Default timeout for the one-shot sweep command.
const defaultSweepTimeout = time.Minute

// sweepConfig holds configuration for the sweep subcommand.
type sweepConfig struct {
	timeout time.Duration
}

// NewSweepCmd creates the sweep subcommand.
func NewSweepCmd() *cobra.Command {
	scfg := &sweepConfig{}

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired refresh tokens and reset requests",
		Long: `Delete expired refresh tokens and password reset requests once and
exit. The serve command runs the same sweep on an interval.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSweep(cmd, scfg)
		},
	}

	cmd.Flags().DurationVar(&scfg.timeout, "timeout", defaultSweepTimeout, "timeout for database operations (e.g., 30s, 1m)")

	return cmd
}

func runSweep(cmd *cobra.Command, scfg *sweepConfig) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), scfg.timeout)
	defer cancel()

	pool, err := store.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	sweeper, err := auth.NewSweeper(
		authpg.NewSessionStore(pool),
		authpg.NewPasswordResetRepository(pool),
		cfg.Sweep.Interval,
		slog.Default(),
	)
	if err != nil {
		return err
	}

	if err := sweeper.SweepOnce(ctx); err != nil {
		return err
	}
	cmd.Println("Sweep completed")
	return nil
}
