// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

package redisstore_test

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/motiveme/motiveme/internal/session"
)

func readWithToken(ctx context.Context, m *session.Manager, token string) (*session.Identity, error) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: m.CookieName(), Value: token})
	return m.Scope(httptest.NewRecorder(), req).Read(ctx)
}
