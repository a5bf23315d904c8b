// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SessionForge Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sessionforge/sessionforge/internal/auth"
	authpg "github.com/sessionforge/sessionforge/internal/auth/postgres"
	"github.com/sessionforge/sessionforge/internal/config"
	"github.com/sessionforge/sessionforge/internal/logging"
	"github.com/sessionforge/sessionforge/pkg/errutil"
)

// NewServeCmd creates the serve subcommand. deps can be nil for
// production defaults.
func NewServeCmd(deps *ServeDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run session maintenance",
		Long: `Run session maintenance: applies pending migrations, starts the
expired-token sweeper and the observability endpoint, and runs until
interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, deps.withDefaults())
		},
	}
}

func runServe(cmd *cobra.Command, deps *ServeDeps) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("sessionforge", version, cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	migrator, err := deps.MigratorFactory(cfg.Database.URL)
	if err != nil {
		return err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close() //nolint:errcheck // migration error takes precedence
		return err
	}
	if err := migrator.Close(); err != nil {
		return err
	}

	pool, err := deps.PoolFactory(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	sessions := authpg.NewSessionStore(pool)
	resets := authpg.NewPasswordResetRepository(pool)

	sweeper, err := auth.NewSweeper(sessions, resets, cfg.Sweep.Interval, logger)
	if err != nil {
		return err
	}

	obsServer := deps.ObservabilityServerFactory(cfg.Metrics.Addr, func() bool {
		return pool.Ping(ctx) == nil
	})
	obsErrs, err := obsServer.Start()
	if err != nil {
		return err
	}
	logger.Info("observability server started", "addr", obsServer.Addr())

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Run(ctx)
	}()

	logger.Info("session maintenance running", "sweep_interval", cfg.Sweep.Interval.String())

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-obsErrs:
		errutil.LogError(logger, "observability server failed", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := obsServer.Stop(shutdownCtx); err != nil {
		errutil.LogError(logger, "observability server shutdown failed", err)
	}
	<-sweepDone

	logger.Info("session service stopped")
	return nil
}
