// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SessionForge Contributors

package auth

import "errors"

// Sentinel errors shared by all store and repository implementations.
// Services match on these with errors.Is and translate them into
// caller-facing oops codes.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateToken is returned by SessionStore.Insert when the
	// token value is already present.
	ErrDuplicateToken = errors.New("duplicate refresh token")

	// ErrUnknownRecord is returned by SessionStore.Update when the
	// record's ID is not present. Updates never upsert.
	ErrUnknownRecord = errors.New("unknown refresh token record")
)

// invalidCredentials is the single message surfaced for every login
// credential failure. Unknown email and wrong password are deliberately
// indistinguishable to callers.
const invalidCredentials = "invalid email or password"

// invalidRefresh is the single message surfaced for every refresh
// failure: bad signature, unknown token, revoked, expired, or missing
// user. Callers must not learn which check rejected the token.
const invalidRefresh = "invalid refresh token"
