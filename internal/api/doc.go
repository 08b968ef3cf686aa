// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

// Package api serves the JSON account API over gin.
//
// Routes:
//
//	GET   /api/health
//	POST  /api/auth/signup
//	POST  /api/auth/signin
//	GET   /api/auth/session
//	POST  /api/auth/signout
//	GET   /api/users/:id
//	PATCH /api/users/:id
//
// Failures are rendered as {"error": "..."} in the language negotiated from
// Accept-Language.
package api
