// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/motiveme/motiveme/internal/observability"
	"github.com/motiveme/motiveme/internal/session/redisstore"
	"github.com/motiveme/motiveme/internal/store"
	"github.com/motiveme/motiveme/internal/xdg"
)

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
	Status() (*store.Status, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// ServeDeps contains injectable dependencies for the serve command.
// Nil fields use their default implementations.
type ServeDeps struct {
	// PoolFactory opens the PostgreSQL pool.
	// Default: store.Connect
	PoolFactory func(ctx context.Context, cfg store.PoolConfig) (*pgxpool.Pool, error)

	// MigratorFactory opens a migrator for --auto-migrate.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// RedisFactory connects the redis session backend.
	// Default: redisstore.NewClient
	RedisFactory func(ctx context.Context, opts redisstore.Options) (*redis.Client, error)

	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker) ObservabilityServer

	// CertsDirGetter returns the directory for generated certificates.
	// Default: xdg.CertsDir
	CertsDirGetter func() (string, error)
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.PoolFactory == nil {
		out.PoolFactory = store.Connect
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = openMigrator
	}
	if out.RedisFactory == nil {
		out.RedisFactory = redisstore.NewClient
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, ready)
		}
	}
	if out.CertsDirGetter == nil {
		out.CertsDirGetter = xdg.CertsDir
	}
	return &out
}

func openMigrator(databaseURL string) (Migrator, error) {
	return store.NewMigrator(databaseURL)
}
