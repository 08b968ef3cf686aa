// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireOops stops the test unless err is an oops error.
func requireOops(t *testing.T, err error) oops.OopsError {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T: %v", err, err)
	return oopsErr
}

// AssertErrorCode asserts the innermost oops code in err's chain.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	assert.Equal(t, code, requireOops(t, err).Code(), "error: %v", err)
}

// AssertErrorContext asserts one entry of the context merged across err's chain.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	ctx := requireOops(t, err).Context()
	if assert.Contains(t, ctx, key, "context: %v", ctx) {
		assert.Equal(t, value, ctx[key], "context key %q", key)
	}
}

// AssertErrorFields asserts the code and each key/value pair of kv.
//
//	errutil.AssertErrorFields(t, err, "PROFILE_INVALID", "field", "points")
func AssertErrorFields(t *testing.T, err error, code string, kv ...any) {
	t.Helper()
	require.Zero(t, len(kv)%2, "odd key/value list: %v", kv)
	AssertErrorCode(t, err, code)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		require.True(t, ok, "context key %v is not a string", kv[i])
		AssertErrorContext(t, err, key, kv[i+1])
	}
}
