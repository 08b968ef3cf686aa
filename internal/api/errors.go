// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"

	"github.com/motiveme/motiveme/internal/auth"
	"github.com/motiveme/motiveme/pkg/errutil"
)

// Message keys owned by the HTTP layer.
const (
	msgInvalidBody = "request.invalid_body"
	msgNotFound    = "request.not_found"
)

// Localizer renders catalog messages. *i18n.Bundle satisfies it.
type Localizer interface {
	Match(acceptLanguage string) language.Tag
	Message(locale language.Tag, key string, args ...any) string
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind auth.Kind) int {
	switch kind {
	case auth.KindValidation:
		return http.StatusBadRequest
	case auth.KindConflict:
		return http.StatusConflict
	case auth.KindInvalidCredentials, auth.KindUnauthorized:
		return http.StatusUnauthorized
	case auth.KindForbidden:
		return http.StatusForbidden
	case auth.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) localize(c *gin.Context, key string, args ...any) string {
	locale := h.messages.Match(c.GetHeader("Accept-Language"))
	return h.messages.Message(locale, key, args...)
}

// respondMessage aborts with status and a localized error body.
func (h *Handler) respondMessage(c *gin.Context, status int, key string, args ...any) {
	c.AbortWithStatusJSON(status, errorResponse{Error: h.localize(c, key, args...)})
}

// respondError classifies err and renders it. Internal failures are logged
// with their full context; the body only ever carries the catalog text.
func (h *Handler) respondError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	kind := auth.KindOf(err)
	if kind == auth.KindInternal {
		errutil.LogErrorContext(ctx, h.logger, "request failed", err)
	} else {
		h.logger.DebugContext(ctx, "request rejected",
			append([]any{"kind", kind.String()}, errutil.Attrs(err)...)...)
	}
	_ = c.Error(err) //nolint:errcheck // recorded for middleware only
	key, args := auth.MessageOf(err)
	h.respondMessage(c, StatusFor(kind), key, args...)
}
