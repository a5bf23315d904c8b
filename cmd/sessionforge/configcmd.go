// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SessionForge Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sessionforge/sessionforge/internal/config"
	"github.com/sessionforge/sessionforge/internal/xdg"
)

// NewConfigCmd creates the config subcommand.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage SessionForge configuration",
	}

	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file with the default settings",
		Long: `Writes a config file populated with the default settings to the
XDG config directory, or to the path given with --config. The signing
secret is intentionally left out; supply it via the
SESSIONFORGE_SIGNING_SECRET environment variable.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	path := configFile
	if path == "" {
		if err := xdg.EnsureDir(xdg.ConfigDir()); err != nil {
			return oops.Code("CONFIG_INIT_FAILED").Wrap(err)
		}
		path = xdg.DefaultConfigFile()
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return oops.Code("CONFIG_INIT_FAILED").
				With("path", path).
				Errorf("config file already exists, use --force to overwrite")
		}
	}

	data, err := renderDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return oops.Code("CONFIG_INIT_FAILED").With("path", path).Wrap(err)
	}

	cmd.Printf("Wrote config to %s\n", path)
	return nil
}

// renderDefaultConfig marshals the default settings to YAML. Durations
// render as strings ("15m") so the file stays hand-editable.
func renderDefaultConfig() ([]byte, error) {
	def := config.Default()

	doc := map[string]any{
		"database": map[string]any{
			"url": def.Database.URL,
		},
		"tokens": map[string]any{
			"issuer":      def.Tokens.Issuer,
			"access_ttl":  def.Tokens.AccessTTL.String(),
			"refresh_ttl": def.Tokens.RefreshTTL.String(),
		},
		"metrics": map[string]any{
			"addr": def.Metrics.Addr,
		},
		"sweep": map[string]any{
			"interval": def.Sweep.Interval.String(),
		},
		"log": map[string]any{
			"level":  def.Log.Level,
			"format": def.Log.Format,
		},
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, oops.Code("CONFIG_INIT_FAILED").With("operation", "marshal defaults").Wrap(err)
	}
	return data, nil
}
