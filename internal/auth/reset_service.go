// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SessionForge Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// PasswordResetService handles the token-based password reset flow:
// a time-boxed, single-use reset token is issued against an email,
// then exchanged together with the new password. Sending the token to
// the user (email delivery) is not this service's job.
type PasswordResetService struct {
	users    UserRepository
	resets   PasswordResetRepository
	sessions *Service
	hasher   PasswordHasher
}

// NewPasswordResetService creates a new PasswordResetService. The
// session service is used to revoke all sessions after a successful
// reset.
func NewPasswordResetService(
	users UserRepository,
	resets PasswordResetRepository,
	sessions *Service,
	hasher PasswordHasher,
) (*PasswordResetService, error) {
	if users == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("user repository is required")
	}
	if resets == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("reset repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("session service is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("password hasher is required")
	}
	return &PasswordResetService{
		users:    users,
		resets:   resets,
		sessions: sessions,
		hasher:   hasher,
	}, nil
}

// RequestReset issues a reset token for the given email. If the user
// exists, the token hash is stored and the plaintext returned for
// delivery. If the user does not exist, an empty token and nil error
// are returned so the endpoint cannot be used for email enumeration.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) (string, error) {
	if err := ValidateEmail(email); err != nil {
		return "", err
	}

	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	token, hash, err := GenerateResetToken()
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate reset token").
			Wrap(err)
	}

	reset, err := NewPasswordReset(user.ID, hash, time.Now().Add(ResetTokenExpiry))
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "create reset record").
			Wrap(err)
	}

	if err := s.resets.Create(ctx, reset); err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "persist reset record").
			Wrap(err)
	}

	return token, nil
}

// ValidateToken validates a reset token and returns the owning user
// ID. Invalid, expired, and unknown tokens all fail.
func (s *PasswordResetService) ValidateToken(ctx context.Context, token string) (ulid.ULID, error) {
	if token == "" {
		return ulid.ULID{}, oops.Code("RESET_TOKEN_EMPTY").Errorf("reset token cannot be empty")
	}

	reset, err := s.resets.GetByTokenHash(ctx, hashResetToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ulid.ULID{}, oops.Code("RESET_TOKEN_INVALID").Errorf("reset token not found")
		}
		return ulid.ULID{}, oops.Code("RESET_VALIDATE_FAILED").
			With("operation", "get reset by token hash").
			Wrap(err)
	}

	if reset.IsExpired() {
		return ulid.ULID{}, oops.Code("RESET_TOKEN_EXPIRED").Errorf("reset token has expired")
	}

	return reset.UserID, nil
}

// ResetPassword exchanges a valid reset token and a new password for a
// credential change. All of the user's reset tokens are consumed and
// all active sessions revoked: the token is single-use and a changed
// credential invalidates outstanding sessions.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if newPassword == "" {
		return oops.Code("RESET_PASSWORD_EMPTY").Errorf("new password cannot be empty")
	}

	userID, err := s.ValidateToken(ctx, token)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "hash new password").
			Wrap(err)
	}

	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "update password").
			Wrap(err)
	}

	// Cleanup after the credential is already replaced: failures here
	// must not fail the reset, the password change went through.
	s.sessions.logBestEffort("consume_reset_tokens", s.resets.DeleteByUser(ctx, userID))
	s.sessions.logBestEffort("revoke_sessions_after_reset", s.sessions.RevokeAllSessions(ctx, userID))

	return nil
}
