// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SessionForge Contributors

package auth

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// SessionStore is the durable record of issued refresh tokens.
//
// Implementations must make each operation atomic with respect to a
// single record. The lifecycle service does not assume cross-record
// transactions; it serializes read-modify-write sequences per user
// itself. Implementations must not hand out aliases of stored records.
type SessionStore interface {
	// FindByToken returns the record whose Token equals the given
	// value. Returns ErrNotFound when absent.
	FindByToken(ctx context.Context, token string) (*RefreshToken, error)

	// FindActiveByUser returns all records for the user that are
	// neither revoked nor expired.
	FindActiveByUser(ctx context.Context, userID ulid.ULID) ([]*RefreshToken, error)

	// Insert stores a new record. Returns ErrDuplicateToken when a
	// non-purged record already holds the same token value.
	Insert(ctx context.Context, record *RefreshToken) error

	// Update persists changes to an existing record. Returns
	// ErrUnknownRecord when the record's ID is absent; it never
	// upserts.
	Update(ctx context.Context, record *RefreshToken) error

	// DeleteExpired removes records past their expiry and returns the
	// count. Housekeeping only; never called on the request path.
	DeleteExpired(ctx context.Context) (int64, error)
}
