// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SessionForge Contributors

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sessionforge/sessionforge/internal/config"
	"github.com/sessionforge/sessionforge/internal/store"
)

// statusTimeout bounds each probe request.
const statusTimeout = 3 * time.Second

// ServiceStatus holds the probed state of the running service.
type ServiceStatus struct {
	Live          bool   `json:"live"`
	Ready         bool   `json:"ready"`
	SchemaVersion uint   `json:"schema_version"`
	SchemaDirty   bool   `json:"schema_dirty"`
	SchemaName    string `json:"schema_name,omitempty"`
	Error         string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status subcommand.
type statusConfig struct {
	jsonOutput bool
}

// newStatusCmd creates the status subcommand with all flags configured.
func newStatusCmd() *cobra.Command {
	scfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of the running session service",
		Long:  `Probe the observability endpoint and report schema version and health.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, scfg)
		},
	}

	cmd.Flags().BoolVar(&scfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, scfg *statusConfig) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	status := probeStatus(cfg)

	if scfg.jsonOutput {
		out, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		cmd.Println(string(out))
		return nil
	}

	cmd.Println(formatStatusTable(status))
	return nil
}

// probeStatus queries the health endpoints and the migration state.
// Probe failures are reported in the result, not returned as errors;
// a down service is a valid status.
func probeStatus(cfg config.Config) ServiceStatus {
	var status ServiceStatus

	client := &http.Client{Timeout: statusTimeout}
	status.Live = probeOK(client, "http://"+cfg.Metrics.Addr+"/healthz/liveness")
	status.Ready = probeOK(client, "http://"+cfg.Metrics.Addr+"/healthz/readiness")

	migrator, err := store.NewMigrator(cfg.Database.URL)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	defer migrator.Close() //nolint:errcheck // read-only probe

	version, dirty, err := migrator.Version()
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.SchemaVersion = version
	status.SchemaDirty = dirty

	if name, err := store.MigrationName(version); err == nil {
		status.SchemaName = name
	}

	return status
}

// probeOK returns true when the endpoint answers 200.
func probeOK(client *http.Client, url string) bool {
	resp, err := client.Get(url) //nolint:noctx // short timeout via client
	if err != nil {
		return false
	}
	defer resp.Body.Close() //nolint:errcheck // probe only
	return resp.StatusCode == http.StatusOK
}

// formatStatusTable renders the status as an aligned key/value table.
func formatStatusTable(status ServiceStatus) string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)

	rows := map[string]string{
		"live":           yesNo(status.Live),
		"ready":          yesNo(status.Ready),
		"schema version": fmt.Sprintf("%d", status.SchemaVersion),
		"schema dirty":   yesNo(status.SchemaDirty),
	}
	if status.SchemaName != "" {
		rows["schema name"] = status.SchemaName
	}
	if status.Error != "" {
		rows["error"] = status.Error
	}

	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%s\n", k, rows[k])
	}
	_ = w.Flush() //nolint:errcheck // strings.Builder cannot fail

	return strings.TrimRight(sb.String(), "\n")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
