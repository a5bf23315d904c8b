package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sessionforge/sessionforge/internal/observability"
	"github.com/sessionforge/sessionforge/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// PoolFactory opens a database connection pool.
	// Default: store.NewPool
	PoolFactory func(ctx context.Context, databaseURL string) (*pgxpool.Pool, error)

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer
}

// withDefaults fills nil fields with their default implementations.
func (d *ServeDeps) withDefaults() *ServeDeps {
	out := &ServeDeps{}
	if d != nil {
		*out = *d
	}
	if out.PoolFactory == nil {
		out.PoolFactory = store.NewPool
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(databaseURL string) (Migrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, rc observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, rc)
		}
	}
	return out
}

// Migrator interface wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Version() (version uint, dirty bool, err error)
	Close() error
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// Default shutdown grace period for the serve command.
const shutdownTimeout = 10 * time.Second
