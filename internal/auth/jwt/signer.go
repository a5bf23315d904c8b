// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SessionForge Contributors

// Package jwt provides the default TokenSigner: HS256-signed access
// and refresh tokens.
package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/sessionforge/sessionforge/internal/auth"
)

// Default token lifetimes.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = auth.DefaultRefreshTokenTTL
)

// tokenUse values distinguish access tokens from refresh tokens so one
// can never be presented where the other is expected.
const (
	useAccess  = "access"
	useRefresh = "refresh"
)

// claims is the claim set for both token kinds.
type claims struct {
	Email string `json:"email,omitempty"`
	Use   string `json:"use"`
	jwt.RegisteredClaims
}

// Signer issues and validates HS256-signed tokens. It implements
// auth.TokenSigner. The refresh token is opaque to the rest of the
// system; only this signer looks inside it.
type Signer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewSigner creates a Signer. The secret must be non-empty; TTLs fall
// back to the defaults when zero.
func NewSigner(secret []byte, issuer string, accessTTL, refreshTTL time.Duration) (*Signer, error) {
	if len(secret) == 0 {
		return nil, oops.Code("SIGNER_NO_SECRET").Errorf("signing secret cannot be empty")
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &Signer{
		secret:     secret,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// Issue produces a signed access/refresh pair for the user. The pair's
// ExpiresAt is the refresh token's expiry - the session lifetime.
func (s *Signer) Issue(user *auth.User) (*auth.TokenPair, error) {
	if user == nil {
		return nil, oops.Code("SIGNER_NIL_USER").Errorf("user cannot be nil")
	}

	now := time.Now()
	refreshExpiry := now.Add(s.refreshTTL)

	access, err := s.sign(claims{
		Email: user.Email,
		Use:   useAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	})
	if err != nil {
		return nil, oops.Code("SIGNER_ISSUE_FAILED").With("token_use", useAccess).Wrap(err)
	}

	// The refresh token carries a unique ID so two pairs issued within
	// the same second never collide on token value.
	refresh, err := s.sign(claims{
		Use: useRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Subject:   user.ID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExpiry),
		},
	})
	if err != nil {
		return nil, oops.Code("SIGNER_ISSUE_FAILED").With("token_use", useRefresh).Wrap(err)
	}

	return &auth.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    refreshExpiry,
	}, nil
}

// ValidateRefresh checks the token's signature and structure and
// returns the owning user ID. Expiry of the embedded claim is checked
// here too, but the store record stays authoritative for liveness.
func (s *Signer) ValidateRefresh(token string) (ulid.ULID, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return ulid.ULID{}, oops.Code("SIGNER_INVALID_TOKEN").Wrap(err)
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || c.Use != useRefresh {
		return ulid.ULID{}, oops.Code("SIGNER_INVALID_TOKEN").Errorf("not a refresh token")
	}

	userID, err := ulid.Parse(c.Subject)
	if err != nil {
		return ulid.ULID{}, oops.Code("SIGNER_INVALID_TOKEN").
			With("subject", c.Subject).
			Wrap(err)
	}

	return userID, nil
}

func (s *Signer) sign(c claims) (string, error) {
	//nolint:wrapcheck // callers wrap with context-specific codes
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}

// Compile-time interface check.
var _ auth.TokenSigner = (*Signer)(nil)
