// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SessionForge Contributors

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeDeps_WithDefaults_NilReceiver(t *testing.T) {
	var deps *ServeDeps
	out := deps.withDefaults()

	require.NotNil(t, out)
	assert.NotNil(t, out.PoolFactory)
	assert.NotNil(t, out.MigratorFactory)
	assert.NotNil(t, out.ObservabilityServerFactory)
}

func TestServeDeps_WithDefaults_KeepsOverrides(t *testing.T) {
	called := false
	deps := &ServeDeps{
		MigratorFactory: func(string) (Migrator, error) {
			called = true
			return nil, nil
		},
	}

	out := deps.withDefaults()

	_, err := out.MigratorFactory("postgres://ignored")
	require.NoError(t, err)
	assert.True(t, called, "custom factory should survive withDefaults")
	assert.NotNil(t, out.PoolFactory, "unset fields still get defaults")
}
