// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motiveme/motiveme/internal/api"
	"github.com/motiveme/motiveme/internal/auth"
	"github.com/motiveme/motiveme/internal/auth/authtest"
	"github.com/motiveme/motiveme/internal/i18n"
	"github.com/motiveme/motiveme/internal/logging"
	"github.com/motiveme/motiveme/internal/session"
)

type observation struct {
	route  string
	method string
	status int
}

type fakeObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (f *fakeObserver) ObserveHTTP(route, method string, status int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.obs = append(f.obs, observation{route, method, status})
}

func newEngine(t *testing.T, cfg api.RouterConfig, logger *slog.Logger) *gin.Engine {
	t.Helper()
	store := authtest.NewStore()
	svc, err := auth.NewAuthService(store.Users(), store.Credentials(), store, authtest.NewHasher())
	require.NoError(t, err)
	manager, err := session.NewManager(session.NewMemoryStore(), session.DefaultConfig())
	require.NoError(t, err)
	bundle, err := i18n.Load("en")
	require.NoError(t, err)

	engine, err := api.NewRouter(api.NewHandler(svc, manager, bundle, logger), cfg)
	require.NoError(t, err)
	return engine
}

func serve(engine http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestCORS(t *testing.T) {
	engine := newEngine(t, api.RouterConfig{
		AllowedOrigins: []string{"http://localhost:5000", "https://*.motiveme.app"},
	}, nil)

	t.Run("allowed origin gets credentialed headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "https://web.motiveme.app")
		rec := serve(engine, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://web.motiveme.app", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
		assert.Contains(t, rec.Header().Values("Vary"), "Origin")
	})

	t.Run("other origins get no allow headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := serve(engine, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight answered with 204", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/auth/signup", nil)
		req.Header.Set("Origin", "http://localhost:5000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := serve(engine, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "http://localhost:5000", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
	})
}

func TestNewCORSRejectsBadPattern(t *testing.T) {
	_, err := api.NewCORS([]string{"http://[localhost"})
	require.Error(t, err)
}

func TestRequestID(t *testing.T) {
	engine := newEngine(t, api.RouterConfig{}, nil)

	t.Run("minted when absent", func(t *testing.T) {
		rec := serve(engine, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		_, err := ulid.ParseStrict(rec.Header().Get(api.RequestIDHeader))
		require.NoError(t, err)
	})

	t.Run("valid client id reused", func(t *testing.T) {
		id := ulid.Make().String()
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set(api.RequestIDHeader, id)
		rec := serve(engine, req)
		assert.Equal(t, id, rec.Header().Get(api.RequestIDHeader))
	})

	t.Run("garbage client id replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set(api.RequestIDHeader, "<script>")
		rec := serve(engine, req)
		assert.NotEqual(t, "<script>", rec.Header().Get(api.RequestIDHeader))
	})
}

func TestAccessLogCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.Setup("motiveme", "test", "json", "debug", &buf)
	engine := newEngine(t, api.RouterConfig{Logger: logger}, logger)

	rec := serve(engine, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var entry map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var e map[string]any
		require.NoError(t, json.Unmarshal(line, &e))
		if e["msg"] == "http request" {
			entry = e
		}
	}
	require.NotNil(t, entry, buf.String())
	assert.Equal(t, "/api/health", entry["route"])
	assert.InDelta(t, http.StatusOK, entry["status"], 0)
	assert.Equal(t, rec.Header().Get(api.RequestIDHeader), entry["request_id"])
}

func TestMetricsMiddleware(t *testing.T) {
	observer := &fakeObserver{}
	engine := newEngine(t, api.RouterConfig{Metrics: observer}, nil)

	serve(engine, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	serve(engine, httptest.NewRequest(http.MethodGet, "/api/users/123", nil))
	serve(engine, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	observer.mu.Lock()
	defer observer.mu.Unlock()
	assert.Equal(t, []observation{
		{"/api/health", http.MethodGet, http.StatusOK},
		{"/api/users/:id", http.MethodGet, http.StatusUnauthorized},
		{"unmatched", http.MethodGet, http.StatusNotFound},
	}, observer.obs)
}

func TestRecoveryRendersInternalError(t *testing.T) {
	engine := newEngine(t, api.RouterConfig{}, slog.New(slog.DiscardHandler))
	engine.GET("/api/panic", func(*gin.Context) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/api/panic", nil)
	req.Header.Set("Accept-Language", "en")
	rec := serve(engine, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
}

func TestTimeoutSetsDeadline(t *testing.T) {
	engine := newEngine(t, api.RouterConfig{RequestTimeout: time.Second}, nil)

	var deadline time.Time
	var ok bool
	engine.GET("/api/deadline", func(c *gin.Context) {
		deadline, ok = c.Request.Context().Deadline()
		c.Status(http.StatusOK)
	})

	serve(engine, httptest.NewRequest(http.MethodGet, "/api/deadline", nil))
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)
}

func TestTimeoutDisabled(t *testing.T) {
	engine := gin.New()
	engine.Use(api.Timeout(0))

	var ok bool
	engine.GET("/", func(c *gin.Context) {
		_, ok = c.Request.Context().Deadline()
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequestWithContext(context.Background(), http.MethodGet, "/", nil)
	serve(engine, req)
	assert.False(t, ok)
}
