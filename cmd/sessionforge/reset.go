// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SessionForge Contributors

package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/sessionforge/sessionforge/internal/auth"
	"github.com/sessionforge/sessionforge/internal/auth/jwt"
	authpg "github.com/sessionforge/sessionforge/internal/auth/postgres"
	"github.com/sessionforge/sessionforge/internal/config"
	"github.com/sessionforge/sessionforge/internal/store"
)

// Default timeout for reset subcommands.
const defaultResetTimeout = 30 * time.Second

// NewResetCmd creates the reset subcommand group.
func NewResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Manage password resets",
		Long: `Request and confirm password resets. A request issues a one-time
token; confirm consumes it, changes the password, and revokes all of
the user's sessions.`,
	}

	cmd.AddCommand(newResetRequestCmd())
	cmd.AddCommand(newResetConfirmCmd())

	return cmd
}

func newResetRequestCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "request",
		Short: "Issue a password reset token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, pool, ctx, cancel, err := buildResetService(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			defer pool.Close()

			token, err := svc.RequestReset(ctx, email)
			if err != nil {
				return err
			}
			// Empty token means unknown email. The service keeps that
			// indistinguishable for callers; the operator CLI prints
			// the token since the operator already has DB access.
			if token != "" {
				cmd.Printf("Reset token (valid %s): %s\n", auth.ResetTokenExpiry, token)
			} else {
				cmd.Println("If the account exists, a reset token was issued")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address of the account")
	_ = cmd.MarkFlagRequired("email") //nolint:errcheck // flag exists

	return cmd
}

func newResetConfirmCmd() *cobra.Command {
	var token, password string

	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Consume a reset token and set a new password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, pool, ctx, cancel, err := buildResetService(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			defer pool.Close()

			if err := svc.ResetPassword(ctx, token, password); err != nil {
				return err
			}
			cmd.Println("Password changed; all sessions revoked")
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "reset token from a prior request")
	cmd.Flags().StringVar(&password, "password", "", "new password")
	_ = cmd.MarkFlagRequired("token")    //nolint:errcheck // flag exists
	_ = cmd.MarkFlagRequired("password") //nolint:errcheck // flag exists

	return cmd
}

// buildResetService wires a PasswordResetService against the
// configured database. Callers own the returned pool and cancel func.
func buildResetService(cmd *cobra.Command) (*auth.PasswordResetService, *pgxpool.Pool, context.Context, context.CancelFunc, error) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), defaultResetTimeout)

	pool, err := store.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		cancel()
		return nil, nil, nil, nil, err
	}

	signer, err := jwt.NewSigner([]byte(cfg.Tokens.SigningSecret), cfg.Tokens.Issuer, cfg.Tokens.AccessTTL, cfg.Tokens.RefreshTTL)
	if err != nil {
		pool.Close()
		cancel()
		return nil, nil, nil, nil, err
	}

	users := authpg.NewUserRepository(pool)
	sessions := authpg.NewSessionStore(pool)
	resets := authpg.NewPasswordResetRepository(pool)
	hasher := auth.NewArgon2idHasher()

	service, err := auth.NewService(users, sessions, hasher, signer)
	if err != nil {
		pool.Close()
		cancel()
		return nil, nil, nil, nil, err
	}

	resetService, err := auth.NewPasswordResetService(users, resets, service, hasher)
	if err != nil {
		pool.Close()
		cancel()
		return nil, nil, nil, nil, err
	}

	return resetService, pool, ctx, cancel, nil
}
