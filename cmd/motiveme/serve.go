// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

package main

import (
	"context"
	cryptotls "crypto/tls"
	"errors"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/motiveme/motiveme/internal/api"
	"github.com/motiveme/motiveme/internal/auth"
	"github.com/motiveme/motiveme/internal/auth/postgres"
	"github.com/motiveme/motiveme/internal/config"
	"github.com/motiveme/motiveme/internal/i18n"
	"github.com/motiveme/motiveme/internal/logging"
	"github.com/motiveme/motiveme/internal/session"
	"github.com/motiveme/motiveme/internal/session/redisstore"
	"github.com/motiveme/motiveme/internal/store"
	"github.com/motiveme/motiveme/internal/tls"
	"github.com/motiveme/motiveme/internal/xdg"
)

const (
	serviceName     = "motiveme"
	janitorInterval = 15 * time.Minute
	shutdownTimeout = 10 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var autoMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the account API",
		Long: `Run the JSON account API, plus the metrics and health listener when
metrics.addr is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, cfg, autoMigrate, nil)
		},
	}
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "apply pending migrations before serving")
	return cmd
}

// runServe wires every component and blocks until ctx is cancelled or a
// listener fails.
func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config, autoMigrate bool, deps *ServeDeps) error {
	deps = deps.withDefaults()
	logger := logging.SetDefault(serviceName, version, cfg.Log.Format, cfg.Log.Level)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.InfoContext(ctx, "starting",
		"environment", cfg.Environment,
		"addr", cfg.HTTP.Addr,
		"session_backend", cfg.Session.Backend)

	if autoMigrate {
		if err := migrateUp(deps, cfg.Database.URL); err != nil {
			return err
		}
	}

	pool, err := deps.PoolFactory(ctx, store.PoolConfig{
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
		Retries:  cfg.Database.ConnectRetries,
	})
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.InfoContext(ctx, "connected to database")

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var obsServer ObservabilityServer
	var recorder auth.EventRecorder
	var observer api.HTTPObserver
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, pool.Ping)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		recorder = obsServer.Metrics()
		observer = obsServer.Metrics()
	}

	sessionStore, closeStore, err := newSessionStore(ctx, cfg, pool, deps)
	if err != nil {
		stopServer(obsServer, "observability")
		return err
	}
	defer closeStore()
	if expirer, ok := sessionStore.(session.Expirer); ok {
		go session.RunJanitor(ctx, expirer, janitorInterval)
	}

	handler, err := buildHandler(cfg, pool, sessionStore, recorder, observer, logger)
	if err != nil {
		stopServer(obsServer, "observability")
		return err
	}

	tlsConfig, err := apiTLSConfig(cfg, deps.CertsDirGetter)
	if err != nil {
		stopServer(obsServer, "observability")
		return err
	}

	apiServer := api.NewServer(cfg.HTTP.Addr, handler, tlsConfig)
	apiErrCh, err := apiServer.Start()
	if err != nil {
		stopServer(obsServer, "observability")
		return err
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "api")

	cmd.Printf("MotiveMe API listening on %s\n", apiServer.Addr())
	<-ctx.Done()
	logger.Info("shutting down")

	stopServer(apiServer, "api")
	stopServer(obsServer, "observability")
	logger.Info("shutdown complete")

	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return nil
}

// buildHandler assembles the service graph behind the API router.
func buildHandler(
	cfg *config.Config,
	pool postgres.Pool,
	sessionStore session.Store,
	recorder auth.EventRecorder,
	observer api.HTTPObserver,
	logger *slog.Logger,
) (*gin.Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var opts []auth.ServiceOption
	if recorder != nil {
		opts = append(opts, auth.WithEventRecorder(recorder))
	}
	svc, err := auth.NewAuthServiceWithLogger(
		postgres.NewUserRepository(pool),
		postgres.NewCredentialRepository(pool),
		postgres.NewTransactor(pool),
		auth.NewArgon2idHasher(hasherParams(cfg)),
		logger,
		opts...,
	)
	if err != nil {
		return nil, err
	}

	manager, err := session.NewManager(sessionStore, sessionConfig(cfg))
	if err != nil {
		return nil, err
	}

	logger.Info("sessions configured",
		"backend", cfg.Session.Backend,
		"cookie", manager.CookieName(),
		"lifetime", manager.Lifetime().String())

	bundle, err := i18n.Load(cfg.I18n.DefaultLocale)
	if err != nil {
		return nil, err
	}
	locales := make([]string, 0, len(bundle.Supported()))
	for _, tag := range bundle.Supported() {
		locales = append(locales, tag.String())
	}
	logger.Info("locales loaded", "default", bundle.Default().String(), "locales", locales)

	return api.NewRouter(api.NewHandler(svc, manager, bundle, logger), api.RouterConfig{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RequestTimeout: cfg.HTTP.RequestTimeout.Std(),
		Metrics:        observer,
		Logger:         logger,
	})
}

func hasherParams(cfg *config.Config) auth.Argon2Params {
	return auth.Argon2Params{
		Time:      cfg.Auth.Hasher.Time,
		MemoryKiB: cfg.Auth.Hasher.MemoryKiB,
		Threads:   cfg.Auth.Hasher.Threads,
	}
}

func sessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		Cookie: session.CookieConfig{
			Name:     cfg.Session.CookieName,
			Path:     "/",
			Domain:   cfg.Session.Domain,
			Secure:   cfg.SessionSecure(),
			SameSite: cfg.SameSite(),
		},
		Lifetime: cfg.Session.Lifetime.Std(),
	}
}

// newSessionStore opens the configured backend. The returned func releases
// it.
func newSessionStore(ctx context.Context, cfg *config.Config, pool postgres.Pool, deps *ServeDeps) (session.Store, func(), error) {
	switch cfg.Session.Backend {
	case config.BackendMemory:
		return session.NewMemoryStore(), func() {}, nil
	case config.BackendRedis:
		client, err := deps.RedisFactory(ctx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TLS:      cfg.Redis.TLS,
		})
		if err != nil {
			return nil, nil, err
		}
		return redisstore.New(client, ""), func() { closeQuietly(client, "redis") }, nil
	case config.BackendPostgres:
		return postgres.NewSessionStore(pool), func() {}, nil
	default:
		return nil, nil, oops.Code("CONFIG_INVALID").
			With("session_backend", cfg.Session.Backend).
			Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}

// apiTLSConfig returns nil for plain HTTP, the configured key pair, or a
// generated development certificate.
func apiTLSConfig(cfg *config.Config, certsDir func() (string, error)) (*cryptotls.Config, error) {
	t := cfg.HTTP.TLS
	switch {
	case t.CertFile != "":
		return tls.LoadServerTLS(t.CertFile, t.KeyFile)
	case t.SelfSigned:
		dir, err := certsDir()
		if err != nil {
			return nil, err
		}
		if err := xdg.EnsureDir(dir); err != nil {
			return nil, err
		}
		certFile, keyFile, err := tls.EnsureDevCertificate(dir)
		if err != nil {
			return nil, err
		}
		slog.Info("using development certificate", "cert_file", certFile)
		return tls.LoadServerTLS(certFile, keyFile)
	default:
		return nil, nil
	}
}

func migrateUp(deps *ServeDeps, databaseURL string) (err error) {
	m, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	if err := m.Up(); err != nil {
		return err
	}
	v, _, err := m.Version()
	if err != nil {
		return err
	}
	slog.Info("schema up to date", "version", v)
	return nil
}

type stopper interface {
	Stop(ctx context.Context) error
}

// stopServer stops s with a bounded context. A nil s is skipped.
func stopServer(s stopper, name string) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		slog.Warn("error stopping server", "server", name, "error", err)
	}
}

func closeQuietly(c io.Closer, name string) {
	if err := c.Close(); err != nil {
		slog.Debug("close failed", "resource", name, "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports a serve failure. It
// exits when the channel closes or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelCauseFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel(oops.Code("SERVER_FAILED").With("server", serverName).Wrap(err))
		}
	case <-ctx.Done():
	}
}

var _ postgres.Pool = (*pgxpool.Pool)(nil)
