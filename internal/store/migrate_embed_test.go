// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SessionForge Contributors

package store

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsFS_EmbeddedFiles(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err, "should read embedded migrations directory")

	// 3 migrations, each with up and down = 6 files.
	assert.Len(t, entries, 6, "should have 6 migration files (3 up + 3 down)")

	fileNames := make(map[string]bool)
	for _, entry := range entries {
		fileNames[entry.Name()] = true
	}

	expectedFiles := []string{
		"000001_users.up.sql",
		"000001_users.down.sql",
		"000002_refresh_tokens.up.sql",
		"000002_refresh_tokens.down.sql",
		"000003_password_resets.up.sql",
		"000003_password_resets.down.sql",
	}
	for _, expected := range expectedFiles {
		assert.True(t, fileNames[expected], "should contain %s", expected)
	}

	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)
	for _, entry := range entries {
		assert.True(t, pattern.MatchString(entry.Name()),
			"file %s should match pattern NNNNNN_name.(up|down).sql", entry.Name())
	}
}

func TestAllMigrationVersions(t *testing.T) {
	versions, err := allMigrationVersions()
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2, 3}, versions)

	// The cached slice must not be mutable through the returned copy.
	versions[0] = 99
	again, err := allMigrationVersions()
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2, 3}, again)
}
