// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motiveme/motiveme/internal/auth/postgres"
	"github.com/motiveme/motiveme/internal/config"
	"github.com/motiveme/motiveme/internal/logging"
	"github.com/motiveme/motiveme/internal/session"
	"github.com/motiveme/motiveme/internal/session/redisstore"
	"github.com/motiveme/motiveme/internal/tls"
	"github.com/motiveme/motiveme/pkg/errutil"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func serveRequest(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestSessionConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Session.CookieName = "sid"
	cfg.Session.Domain = "motiveme.app"

	sc := sessionConfig(&cfg)
	assert.Equal(t, "sid", sc.Cookie.Name)
	assert.Equal(t, "motiveme.app", sc.Cookie.Domain)
	assert.Equal(t, "/", sc.Cookie.Path)
	assert.False(t, sc.Cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, sc.Cookie.SameSite)
	assert.Equal(t, 7*24*time.Hour, sc.Lifetime)

	cfg.Environment = config.EnvProduction
	assert.True(t, sessionConfig(&cfg).Cookie.Secure)
}

func TestHasherParams(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.Hasher.Time = 3
	cfg.Auth.Hasher.MemoryKiB = 2048
	cfg.Auth.Hasher.Threads = 2

	p := hasherParams(&cfg)
	assert.Equal(t, uint32(3), p.Time)
	assert.Equal(t, uint32(2048), p.MemoryKiB)
	assert.Equal(t, uint8(2), p.Threads)
}

func TestNewSessionStore(t *testing.T) {
	ctx := context.Background()
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	t.Run("memory", func(t *testing.T) {
		cfg := config.Default()
		cfg.Session.Backend = config.BackendMemory
		s, closeFn, err := newSessionStore(ctx, &cfg, pool, (&ServeDeps{}).withDefaults())
		require.NoError(t, err)
		defer closeFn()
		assert.IsType(t, &session.MemoryStore{}, s)
	})

	t.Run("postgres", func(t *testing.T) {
		cfg := config.Default()
		s, closeFn, err := newSessionStore(ctx, &cfg, pool, (&ServeDeps{}).withDefaults())
		require.NoError(t, err)
		defer closeFn()
		assert.IsType(t, &postgres.SessionStore{}, s)
		_, ok := s.(session.Expirer)
		assert.True(t, ok)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := config.Default()
		cfg.Session.Backend = config.BackendRedis
		cfg.Redis.Addr = mr.Addr()

		var got redisstore.Options
		deps := (&ServeDeps{
			RedisFactory: func(ctx context.Context, opts redisstore.Options) (*redis.Client, error) {
				got = opts
				return redisstore.NewClient(ctx, opts)
			},
		}).withDefaults()

		s, closeFn, err := newSessionStore(ctx, &cfg, pool, deps)
		require.NoError(t, err)
		defer closeFn()
		assert.IsType(t, &redisstore.Store{}, s)
		assert.Equal(t, mr.Addr(), got.Addr)
	})

	t.Run("redis unreachable", func(t *testing.T) {
		cfg := config.Default()
		cfg.Session.Backend = config.BackendRedis
		deps := (&ServeDeps{
			RedisFactory: func(context.Context, redisstore.Options) (*redis.Client, error) {
				return nil, errors.New("connection refused")
			},
		}).withDefaults()

		_, _, err := newSessionStore(ctx, &cfg, pool, deps)
		require.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := config.Default()
		cfg.Session.Backend = "floppy"
		_, _, err := newSessionStore(ctx, &cfg, pool, (&ServeDeps{}).withDefaults())
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})
}

func TestAPITLSConfig(t *testing.T) {
	noDir := func() (string, error) { return "", errors.New("unused") }

	t.Run("plain http", func(t *testing.T) {
		cfg := config.Default()
		got, err := apiTLSConfig(&cfg, noDir)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("self-signed", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "certs")
		cfg := config.Default()
		cfg.HTTP.TLS.SelfSigned = true

		got, err := apiTLSConfig(&cfg, func() (string, error) { return dir, nil })
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.FileExists(t, filepath.Join(dir, tls.ServerCertFile))
	})

	t.Run("explicit files", func(t *testing.T) {
		dir := t.TempDir()
		certFile, keyFile, err := tls.EnsureDevCertificate(dir)
		require.NoError(t, err)

		cfg := config.Default()
		cfg.HTTP.TLS.CertFile = certFile
		cfg.HTTP.TLS.KeyFile = keyFile
		got, err := apiTLSConfig(&cfg, noDir)
		require.NoError(t, err)
		assert.Len(t, got.Certificates, 1)
	})

	t.Run("missing files", func(t *testing.T) {
		cfg := config.Default()
		cfg.HTTP.TLS.CertFile = "/nonexistent/api.crt"
		cfg.HTTP.TLS.KeyFile = "/nonexistent/api.key"
		_, err := apiTLSConfig(&cfg, noDir)
		errutil.AssertErrorCode(t, err, "TLS_LOAD_FAILED")
	})
}

func TestBuildHandlerServesHealth(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	cfg := config.Default()
	engine, err := buildHandler(&cfg, pool, session.NewMemoryStore(), nil, nil, nil)
	require.NoError(t, err)

	rec := serveRequest(engine, http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "MotiveMe API is running")
}

func TestBuildHandlerLogsSessionAndLocaleSetup(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	var buf bytes.Buffer
	logger := logging.Setup(serviceName, "test", "json", "info", &buf)

	cfg := config.Default()
	cfg.Session.CookieName = "mm_sid"
	cfg.I18n.DefaultLocale = "en"
	_, err = buildHandler(&cfg, pool, session.NewMemoryStore(), nil, nil, logger)
	require.NoError(t, err)

	entries := map[string]map[string]any{}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var e map[string]any
		require.NoError(t, json.Unmarshal(line, &e))
		if msg, ok := e["msg"].(string); ok {
			entries[msg] = e
		}
	}

	sessions := entries["sessions configured"]
	require.NotNil(t, sessions, buf.String())
	assert.Equal(t, "mm_sid", sessions["cookie"])
	assert.Equal(t, (7 * 24 * time.Hour).String(), sessions["lifetime"])
	assert.Equal(t, config.BackendPostgres, sessions["backend"])

	locales := entries["locales loaded"]
	require.NotNil(t, locales, buf.String())
	assert.Equal(t, "en", locales["default"])
	assert.ElementsMatch(t, []any{"en", "fr"}, locales["locales"])
}

func TestMigrateUpHelper(t *testing.T) {
	f := &fakeMigrator{version: 4}
	deps := (&ServeDeps{
		MigratorFactory: func(string) (Migrator, error) { return f, nil },
	}).withDefaults()

	require.NoError(t, migrateUp(deps, "postgres://x"))
	assert.Equal(t, []string{"up"}, f.calls)
	assert.True(t, f.closed)
}

func TestMonitorServerErrors(t *testing.T) {
	t.Run("error cancels with cause", func(t *testing.T) {
		ctx, cancel := context.WithCancelCause(context.Background())
		defer cancel(nil)
		errCh := make(chan error, 1)
		errCh <- errors.New("listener died")

		monitorServerErrors(ctx, cancel, errCh, "api")
		require.Error(t, context.Cause(ctx))
		errutil.AssertErrorCode(t, context.Cause(ctx), "SERVER_FAILED")
	})

	t.Run("closed channel leaves context alone", func(t *testing.T) {
		ctx, cancel := context.WithCancelCause(context.Background())
		defer cancel(nil)
		errCh := make(chan error)
		close(errCh)

		monitorServerErrors(ctx, cancel, errCh, "api")
		assert.NoError(t, ctx.Err())
	})
}
