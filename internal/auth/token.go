// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SessionForge Contributors

package auth

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultRefreshTokenTTL is used when configuration does not override it.
const DefaultRefreshTokenTTL = 7 * 24 * time.Hour

// RefreshToken represents one issued session. Records are never
// physically deleted on the request path; revocation marks them so the
// rotation chain stays traceable until the expiry sweep removes them.
type RefreshToken struct {
	ID              ulid.ULID
	UserID          ulid.ULID
	Token           string
	ExpiresAt       time.Time
	CreatedAt       time.Time
	IsRevoked       bool
	RevokedAt       *time.Time
	ReplacedByToken string
}

// NewRefreshToken creates a validated RefreshToken. The expiry must be
// strictly in the future at construction time.
func NewRefreshToken(userID ulid.ULID, token string, expiresAt time.Time) (*RefreshToken, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("TOKEN_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if token == "" {
		return nil, oops.Code("TOKEN_INVALID_VALUE").Errorf("token value cannot be empty")
	}
	now := time.Now()
	if !expiresAt.After(now) {
		return nil, oops.Code("TOKEN_INVALID_EXPIRY").
			With("expires_at", expiresAt).
			Errorf("expiry must be in the future")
	}

	return &RefreshToken{
		ID:        ulid.Make(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

// IsActive reports whether the token can still be redeemed:
// not revoked and not past its expiry.
func (t *RefreshToken) IsActive() bool {
	return t.IsActiveAt(time.Now())
}

// IsActiveAt reports whether the token would be active at the given
// instant. Useful for deterministic tests.
func (t *RefreshToken) IsActiveAt(at time.Time) bool {
	return !t.IsRevoked && at.Before(t.ExpiresAt)
}

// IsExpired reports whether the token is past its expiry, independent
// of revocation.
func (t *RefreshToken) IsExpired() bool {
	return !time.Now().Before(t.ExpiresAt)
}

// Revoke marks the token revoked at the given instant. Revocation is
// monotonic: a second call is a no-op and reports false.
func (t *RefreshToken) Revoke(at time.Time) bool {
	if t.IsRevoked {
		return false
	}
	t.IsRevoked = true
	t.RevokedAt = &at
	return true
}

// RevokeAndReplace revokes the token as part of rotation, linking the
// successor token value. A token rotates at most once: an already
// revoked token or an already set successor is an error.
func (t *RefreshToken) RevokeAndReplace(at time.Time, successor string) error {
	if successor == "" {
		return oops.Code("TOKEN_INVALID_SUCCESSOR").Errorf("successor token cannot be empty")
	}
	if t.ReplacedByToken != "" {
		return oops.Code("TOKEN_ALREADY_ROTATED").
			With("token_id", t.ID.String()).
			Errorf("token was already rotated")
	}
	if !t.Revoke(at) {
		return oops.Code("TOKEN_ALREADY_REVOKED").
			With("token_id", t.ID.String()).
			Errorf("token is already revoked")
	}
	t.ReplacedByToken = successor
	return nil
}

// Clone returns a deep copy. Stores hand out clones so callers cannot
// mutate persisted state behind the store's back.
func (t *RefreshToken) Clone() *RefreshToken {
	c := *t
	if t.RevokedAt != nil {
		at := *t.RevokedAt
		c.RevokedAt = &at
	}
	return &c
}

// TokenPair is what a successful login or refresh returns.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// TokenSigner issues and validates tokens. Signing mechanics are an
// external capability; this core only needs issuance and the ability
// to extract the owning identity from a structurally valid refresh
// token.
type TokenSigner interface {
	// Issue produces a signed access/refresh pair for the user.
	Issue(user *User) (*TokenPair, error)

	// ValidateRefresh checks the refresh token's signature and
	// structure and returns the owning user ID. The token's store
	// record, not its embedded expiry, is authoritative for liveness.
	ValidateRefresh(token string) (ulid.ULID, error)
}
