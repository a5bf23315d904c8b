package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the SessionForge CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessionforge",
		Short: "SessionForge - session lifecycle service",
		Long: `SessionForge manages authentication sessions: credential login,
refresh token rotation, logout, and mass revocation, backed by PostgreSQL.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd(nil))
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSweepCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewResetCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}
