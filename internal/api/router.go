// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/trace"
)

// RouterConfig configures the middleware stack.
type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	// Metrics may be nil.
	Metrics HTTPObserver
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
	Logger         *slog.Logger
}

// NewRouter builds the gin engine serving h.
func NewRouter(h *Handler, cfg RouterConfig) (*gin.Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = h.logger
	}
	cors, err := NewCORS(cfg.AllowedOrigins)
	if err != nil {
		return nil, err
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(nil); err != nil {
		return nil, oops.Code("HTTP_ROUTER_FAILED").With("operation", "set trusted proxies").Wrap(err)
	}

	engine.Use(h.Recovery(), RequestID(), Tracing(cfg.TracerProvider), AccessLog(logger))
	if cfg.Metrics != nil {
		engine.Use(Metrics(cfg.Metrics))
	}
	engine.Use(cors.Handler(), Timeout(cfg.RequestTimeout))

	engine.NoRoute(h.NotFound)

	api := engine.Group("/api")
	api.GET("/health", h.Health)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/signup", h.Signup)
		authGroup.POST("/signin", h.Signin)
		authGroup.GET("/session", h.Session)
		authGroup.POST("/signout", h.Signout)
	}

	users := api.Group("/users")
	{
		users.GET("/:id", h.GetUser)
		users.PATCH("/:id", h.UpdateProfile)
	}

	return engine, nil
}
